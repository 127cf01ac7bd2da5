// Package engine implements the audit template core: structural validation,
// conditional visibility resolution, scoring, and lifecycle control. All
// entry points are pure functions over in-memory template snapshots; nothing
// here mutates its input except the explicit lifecycle transitions.
package engine

import (
	"fmt"

	"github.com/pavelanni/auditkit/internal/model"
)

// Code is a stable diagnostic code for one validation check.
type Code string

const (
	CodeNoSections           Code = "template.no_sections"
	CodeSectionOrder         Code = "section.order_conflict"
	CodeZeroWeight           Code = "template.zero_weight"
	CodeThresholdRange       Code = "template.threshold_out_of_range"
	CodePointsUnscorable     Code = "question.points_unscorable"
	CodeNoOptions            Code = "question.no_options"
	CodeDuplicateOptionLabel Code = "question.duplicate_option_label"
	CodeDuplicateOptionID    Code = "question.duplicate_option_id"
	CodeEvidenceKindMissing  Code = "question.evidence_kind_missing"
	CodeRuleSelfReference    Code = "rule.self_reference"
	CodeRuleForwardReference Code = "rule.forward_reference"
	CodeRuleUnknownReference Code = "rule.unknown_reference"
)

// Diagnostic points at one offending entity. Section and Question are
// 1-based positions; zero means the diagnostic applies one level up.
type Diagnostic struct {
	Code     Code   `json:"code"`
	Section  int    `json:"section,omitempty"`
	Question int    `json:"question,omitempty"`
	Message  string `json:"message"`
}

// Path renders the diagnostic's location, e.g. "sections[2].questions[1]".
func (d Diagnostic) Path() string {
	switch {
	case d.Section == 0:
		return "template"
	case d.Question == 0:
		return fmt.Sprintf("sections[%d]", d.Section)
	default:
		return fmt.Sprintf("sections[%d].questions[%d]", d.Section, d.Question)
	}
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	OK     bool         `json:"ok"`
	Errors []Diagnostic `json:"errors,omitempty"`
}

// Validate checks a template for internal consistency. It never mutates its
// argument and is deterministic: the same template yields the same result.
// A template that fails validation cannot be published.
func Validate(t *model.Template) ValidationResult {
	var errs []Diagnostic

	if len(t.Sections) == 0 {
		errs = append(errs, Diagnostic{
			Code:    CodeNoSections,
			Message: "template has no sections; at least one is required to publish",
		})
	}

	if t.PassThreshold < 0 || t.PassThreshold > 100 {
		errs = append(errs, Diagnostic{
			Code:    CodeThresholdRange,
			Message: fmt.Sprintf("pass threshold %.1f is outside [0,100]", t.PassThreshold),
		})
	}

	// Section ordering must be strictly increasing; duplicates are an error,
	// gaps are not.
	seen := make(map[int]int)
	prev := 0
	for si, sec := range t.Sections {
		if at, dup := seen[sec.Order]; dup {
			errs = append(errs, Diagnostic{
				Code:    CodeSectionOrder,
				Section: si + 1,
				Message: fmt.Sprintf("section order %d duplicates section %d", sec.Order, at),
			})
		} else if si > 0 && sec.Order <= prev {
			errs = append(errs, Diagnostic{
				Code:    CodeSectionOrder,
				Section: si + 1,
				Message: fmt.Sprintf("section order %d is not greater than preceding order %d", sec.Order, prev),
			})
		}
		seen[sec.Order] = si + 1
		prev = sec.Order
	}

	if t.ScoringMethod == model.ScoringWeighted && len(t.Sections) > 0 && t.TotalQuestionWeight() <= 0 {
		errs = append(errs, Diagnostic{
			Code:    CodeZeroWeight,
			Message: "weighted scoring requires at least one question with weight > 0",
		})
	}

	refs := t.Flatten()
	posByID := make(map[string]int, len(refs))
	for i, ref := range refs {
		posByID[ref.Question.ID] = i
	}

	for i, ref := range refs {
		q := ref.Question
		errs = append(errs, validateQuestion(t, ref, q)...)
		if q.Condition != nil && q.Condition.Enabled {
			if d := validateRule(q, posByID, i, ref); d != nil {
				errs = append(errs, *d)
			}
		}
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func validateQuestion(t *model.Template, ref model.QuestionRef, q *model.Question) []Diagnostic {
	var errs []Diagnostic
	diag := func(code Code, msg string) {
		errs = append(errs, Diagnostic{Code: code, Section: ref.SectionPos, Question: ref.QuestionPos, Message: msg})
	}

	if q.Type.IsChoice() {
		if len(q.Options) == 0 {
			diag(CodeNoOptions, fmt.Sprintf("%s question %q has no options", q.Type, q.Prompt))
		}
		labels := make(map[string]bool)
		ids := make(map[string]bool)
		for _, o := range q.Options {
			if labels[o.Label] {
				diag(CodeDuplicateOptionLabel, fmt.Sprintf("duplicate option label %q", o.Label))
			}
			labels[o.Label] = true
			if ids[o.ID] {
				diag(CodeDuplicateOptionID, fmt.Sprintf("duplicate option id %q", o.ID))
			}
			ids[o.ID] = true
		}
		if t.ScoringMethod == model.ScoringPoints && len(q.Options) > 0 {
			scorable := false
			for _, o := range q.Options {
				if o.Score != 0 {
					scorable = true
					break
				}
			}
			if !scorable {
				diag(CodePointsUnscorable, fmt.Sprintf("points scoring requires an option with a non-zero score on %q", q.Prompt))
			}
		}
	}

	if q.EvidenceRequired && q.EvidenceKind == "" {
		diag(CodeEvidenceKindMissing, fmt.Sprintf("question %q requires evidence but has no evidence kind", q.Prompt))
	}

	return errs
}

func validateRule(q *model.Question, posByID map[string]int, pos int, ref model.QuestionRef) *Diagnostic {
	c := q.Condition
	diag := func(code Code, msg string) *Diagnostic {
		return &Diagnostic{Code: code, Section: ref.SectionPos, Question: ref.QuestionPos, Message: msg}
	}
	if c.QuestionID == q.ID {
		return diag(CodeRuleSelfReference, "conditional rule references its own question")
	}
	target, ok := posByID[c.QuestionID]
	if !ok {
		return diag(CodeRuleUnknownReference, fmt.Sprintf("conditional rule references unknown question %q", c.QuestionID))
	}
	if target >= pos {
		return diag(CodeRuleForwardReference, "conditional rule references a later question")
	}
	return nil
}
