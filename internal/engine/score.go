package engine

import (
	"fmt"
	"strings"

	"github.com/pavelanni/auditkit/internal/model"
)

// QuestionScore is one question's contribution to a score result.
type QuestionScore struct {
	SectionID string  `json:"section_id"`
	Raw       float64 `json:"raw"`
	Scored    bool    `json:"scored"`
	Points    float64 `json:"points,omitempty"`
	MaxPoints float64 `json:"max_points,omitempty"`
}

// AnswerIssue reports an answer whose shape did not match its question.
// Malformed answers are excluded from scoring, never fatal: an in-progress
// audit must not be blocked by one bad field.
type AnswerIssue struct {
	QuestionID string `json:"question_id"`
	Reason     string `json:"reason"`
}

// ScoreResult is the outcome of scoring an answer set against a template.
// Overall and the per-section values are percentages in [0,100].
type ScoreResult struct {
	Overall    float64                  `json:"overall"`
	BySection  map[string]float64       `json:"by_section"`
	ByQuestion map[string]QuestionScore `json:"by_question"`
	Passed     bool                     `json:"passed"`
	Complete   bool                     `json:"complete"`
	Actions    []model.ActionItem       `json:"actions,omitempty"`
	Issues     []AnswerIssue            `json:"issues,omitempty"`
}

type sectionTotals struct {
	id     string
	weight float64
	rawSum float64
	count  float64
	wRaw   float64
	wSum   float64
	points float64
	maxPts float64
}

// Score computes per-question, per-section, and overall results for the
// given answers. Hidden questions and N/A answers are excluded entirely;
// unanswered visible-required questions clear Complete but scoring still
// proceeds over what was answered, so partial scoring of in-progress audits
// is valid.
func Score(t *model.Template, answers model.AnswerSet) ScoreResult {
	vis := ResolveVisibility(t, answers)
	res := ScoreResult{
		BySection:  make(map[string]float64),
		ByQuestion: make(map[string]QuestionScore),
		Complete:   true,
	}

	totals := make(map[string]*sectionTotals)
	var order []string
	allPass := true

	for _, ref := range t.Flatten() {
		q := ref.Question
		if vis[q.ID] == Hidden {
			continue
		}
		required := vis[q.ID] == VisibleRequired

		a, ok := answers[q.ID]
		if !ok || !a.Recorded() {
			if required {
				res.Complete = false
			}
			continue
		}
		// N/A answers drop out of the denominator entirely.
		if a.NotApplicable || (q.Type == model.TypeYesNoNA && isNA(a)) {
			continue
		}
		if q.EvidenceRequired && len(a.Evidence) == 0 {
			res.Complete = false
		}

		raw, rawOK, issue := rawScore(q, a)
		if issue != "" {
			res.Issues = append(res.Issues, AnswerIssue{QuestionID: q.ID, Reason: issue})
			if required {
				res.Complete = false
			}
			continue
		}

		st := totals[ref.Section.ID]
		if st == nil {
			st = &sectionTotals{id: ref.Section.ID, weight: ref.Section.Weight}
			totals[ref.Section.ID] = st
			order = append(order, ref.Section.ID)
		}

		qs := QuestionScore{SectionID: ref.Section.ID}
		participates := false
		if t.ScoringMethod == model.ScoringPoints {
			awarded, maxPts, ptsOK := pointsFor(q, a, raw, rawOK)
			if ptsOK {
				qs.Raw = awarded / maxPts
				qs.Points = awarded
				qs.MaxPoints = maxPts
				qs.Scored = true
				st.points += awarded
				st.maxPts += maxPts
				participates = true
			}
		} else if rawOK {
			qs.Raw = raw
			qs.Scored = true
			st.rawSum += raw
			st.count++
			st.wRaw += q.Weight * raw
			st.wSum += q.Weight
			participates = true
		}
		res.ByQuestion[q.ID] = qs

		if participates {
			if qs.Raw != 1 {
				allPass = false
			}
			if qs.Raw == 0 && q.AutoAction {
				res.Actions = append(res.Actions, model.ActionItem{
					QuestionID: q.ID,
					SectionID:  ref.Section.ID,
					RiskLevel:  q.RiskLevel,
					Detail:     fmt.Sprintf("non-compliant answer to %q", q.Prompt),
				})
			}
		}
	}

	var num, den float64
	var pctSum, pctCount float64
	for _, secID := range order {
		st := totals[secID]
		var pct float64
		scored := false
		switch t.ScoringMethod {
		case model.ScoringWeighted:
			if st.wSum > 0 {
				pct = st.wRaw / st.wSum * 100
				scored = true
			}
		case model.ScoringPoints:
			if st.maxPts > 0 {
				pct = st.points / st.maxPts * 100
				scored = true
			}
		default: // equal and pass_fail both report the unweighted mean
			if st.count > 0 {
				pct = st.rawSum / st.count * 100
				scored = true
			}
		}
		if !scored {
			continue
		}
		res.BySection[secID] = pct
		pctSum += pct
		pctCount++
		switch t.ScoringMethod {
		case model.ScoringWeighted:
			num += st.weight * pct
			den += st.weight
		case model.ScoringPoints:
			num += st.points
			den += st.maxPts
		default:
			num += pct
			den++
		}
	}

	switch t.ScoringMethod {
	case model.ScoringPassFail:
		// The gating value is the boolean AND; percentages above are
		// reported for diagnostics only.
		if allPass {
			res.Overall = 100
		}
		res.Passed = allPass
	case model.ScoringPoints:
		if den > 0 {
			res.Overall = num / den * 100
		}
		res.Passed = res.Overall >= t.PassThreshold
	default:
		if den > 0 {
			res.Overall = num / den
		} else if pctCount > 0 {
			// All participating section weights were zero; fall back to the
			// unweighted mean rather than reporting nothing.
			res.Overall = pctSum / pctCount
		}
		res.Passed = res.Overall >= t.PassThreshold
	}

	return res
}

func isNA(a model.Answer) bool {
	if a.Text == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(*a.Text)) {
	case "na", "n/a", "not applicable":
		return true
	}
	return false
}

// rawScore computes a question's raw score in [0,1]. ok is false for
// questions that collect data without contributing to the numeric score;
// a non-empty issue marks an answer whose shape does not fit the question.
func rawScore(q *model.Question, a model.Answer) (raw float64, ok bool, issue string) {
	switch q.Type {
	case model.TypeYesNo, model.TypeYesNoNA:
		return boolish(a, "yes", "no")
	case model.TypePassFail:
		return boolish(a, "pass", "fail")
	case model.TypeScale5:
		return scaled(a, 1, 5)
	case model.TypeScale10:
		return scaled(a, 1, 10)
	case model.TypeSingleChoice:
		return choiceScore(q, a, true)
	case model.TypeChecklist:
		return choiceScore(q, a, false)
	default:
		// Text, numeric, date, photo, and signature answers carry no
		// correctness semantics; only their completion is checked.
		return 0, false, ""
	}
}

func boolish(a model.Answer, yes, no string) (float64, bool, string) {
	if a.Bool != nil {
		if *a.Bool {
			return 1, true, ""
		}
		return 0, true, ""
	}
	if a.Text != nil {
		switch strings.ToLower(strings.TrimSpace(*a.Text)) {
		case yes, "true":
			return 1, true, ""
		case no, "false":
			return 0, true, ""
		}
		return 0, false, fmt.Sprintf("expected %s/%s, got %q", yes, no, *a.Text)
	}
	return 0, false, fmt.Sprintf("expected %s/%s answer", yes, no)
}

func scaled(a model.Answer, min, max float64) (float64, bool, string) {
	v, ok := a.Numeric()
	if !ok {
		return 0, false, fmt.Sprintf("expected a number between %.0f and %.0f", min, max)
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return (v - min) / (max - min), true, ""
}

func choiceScore(q *model.Question, a model.Answer, single bool) (float64, bool, string) {
	if len(a.Selected) == 0 {
		return 0, false, "expected an option selection"
	}
	if single && len(a.Selected) > 1 {
		return 0, false, "multiple selections for a single-choice question"
	}
	byID := make(map[string]model.Option, len(q.Options))
	for _, o := range q.Options {
		byID[o.ID] = o
	}
	for _, id := range a.Selected {
		if _, found := byID[id]; !found {
			return 0, false, fmt.Sprintf("unknown option %q", id)
		}
	}

	var correct int
	for _, o := range q.Options {
		if o.Correct {
			correct++
		}
	}
	// Without correctness flags the question is data collection only.
	if correct == 0 {
		return 0, false, ""
	}

	hit := 0
	for _, id := range a.Selected {
		if byID[id].Correct {
			hit++
		}
	}
	return float64(hit) / float64(correct), true, ""
}

// pointsFor computes awarded and maximum attainable points for one question
// under points scoring. Choice questions award the selected options' scores
// against the best attainable total; other scorable questions award their
// raw score against their weight. A question whose maximum is zero is
// excluded from the denominator.
func pointsFor(q *model.Question, a model.Answer, raw float64, rawOK bool) (awarded, maxPts float64, ok bool) {
	if q.Type.IsChoice() {
		if q.Type == model.TypeSingleChoice {
			for _, o := range q.Options {
				if o.Score > maxPts {
					maxPts = o.Score
				}
			}
		} else {
			for _, o := range q.Options {
				if o.Score > 0 {
					maxPts += o.Score
				}
			}
		}
		if maxPts <= 0 {
			return 0, 0, false
		}
		byID := make(map[string]model.Option, len(q.Options))
		for _, o := range q.Options {
			byID[o.ID] = o
		}
		for _, id := range a.Selected {
			awarded += byID[id].Score
		}
		if awarded < 0 {
			awarded = 0
		}
		if awarded > maxPts {
			awarded = maxPts
		}
		return awarded, maxPts, true
	}
	if !rawOK || q.Weight <= 0 {
		return 0, 0, false
	}
	return raw * q.Weight, q.Weight, true
}
