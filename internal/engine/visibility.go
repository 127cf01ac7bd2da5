package engine

import (
	"strconv"

	"github.com/pavelanni/auditkit/internal/model"
)

// Visibility is a question's resolved state for a given answer set.
type Visibility string

const (
	VisibleRequired Visibility = "visible_required"
	VisibleOptional Visibility = "visible_optional"
	Hidden          Visibility = "hidden"
)

// ResolveVisibility walks the template in document order and computes each
// question's visibility against the recorded answers. A question with a
// failed (or transitively hidden) condition resolves hidden; hidden
// questions are excluded from both completion checks and scoring.
//
// A single forward pass suffices because validated rules only reference
// strictly earlier questions.
func ResolveVisibility(t *model.Template, answers model.AnswerSet) map[string]Visibility {
	vis := make(map[string]Visibility)
	for _, ref := range t.Flatten() {
		q := ref.Question
		own := VisibleOptional
		if q.Required {
			own = VisibleRequired
		}

		c := q.Condition
		if c == nil || !c.Enabled {
			vis[q.ID] = own
			continue
		}

		// Hidden propagates downstream: a dependent of a hidden question is
		// hidden no matter what its own rule would say. A reference the
		// validator would reject (unknown or forward) also resolves hidden.
		refVis, ok := vis[c.QuestionID]
		if !ok || refVis == Hidden {
			vis[q.ID] = Hidden
			continue
		}

		if evalRule(c, answers[c.QuestionID]) {
			vis[q.ID] = own
		} else {
			vis[q.ID] = Hidden
		}
	}
	return vis
}

// evalRule evaluates a conditional rule against the referenced question's
// answer. An unrecorded or shape-mismatched answer makes the rule false.
func evalRule(c *model.ConditionalRule, a model.Answer) bool {
	switch c.Operator {
	case model.OpEquals:
		s, ok := a.Scalar()
		return ok && s == c.Value
	case model.OpNotEquals:
		s, ok := a.Scalar()
		return ok && s != c.Value
	case model.OpContains:
		return a.Contains(c.Value)
	case model.OpGreaterThan:
		n, ok := a.Numeric()
		lit, err := strconv.ParseFloat(c.Value, 64)
		return ok && err == nil && n > lit
	case model.OpLessThan:
		n, ok := a.Numeric()
		lit, err := strconv.ParseFloat(c.Value, 64)
		return ok && err == nil && n < lit
	}
	return false
}
