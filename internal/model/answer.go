package model

import (
	"strconv"
	"strings"
)

// Answer is a recorded response to one question. Exactly one of the value
// fields is expected to be set, matching the question's type; the scoring
// engine reports (rather than rejects) answers whose shape does not match.
type Answer struct {
	QuestionID    string   `json:"question_id"`
	NotApplicable bool     `json:"not_applicable,omitempty"`
	Bool          *bool    `json:"bool,omitempty"`
	Text          *string  `json:"text,omitempty"`
	Number        *float64 `json:"number,omitempty"`
	Selected      []string `json:"selected,omitempty"`
	Evidence      []string `json:"evidence,omitempty"`
}

// AnswerSet maps question IDs to recorded answers.
type AnswerSet map[string]Answer

// Recorded reports whether any value (including an N/A marker) is present.
func (a Answer) Recorded() bool {
	return a.NotApplicable || a.Bool != nil || a.Text != nil || a.Number != nil || len(a.Selected) > 0
}

// Scalar returns the answer as a comparison string: the text value, a
// boolean rendered as "true"/"false", a number in its shortest form, or a
// single selected option ID. Returns false when no scalar form exists.
func (a Answer) Scalar() (string, bool) {
	switch {
	case a.Text != nil:
		return *a.Text, true
	case a.Bool != nil:
		return strconv.FormatBool(*a.Bool), true
	case a.Number != nil:
		return strconv.FormatFloat(*a.Number, 'f', -1, 64), true
	case len(a.Selected) == 1:
		return a.Selected[0], true
	}
	return "", false
}

// Numeric returns the answer as a number, parsing text values if needed.
// Returns false for non-numeric answers.
func (a Answer) Numeric() (float64, bool) {
	if a.Number != nil {
		return *a.Number, true
	}
	if a.Text != nil {
		v, err := strconv.ParseFloat(*a.Text, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// Contains reports whether the answer contains the given literal: set
// membership for selections, substring match for text.
func (a Answer) Contains(literal string) bool {
	if len(a.Selected) > 0 {
		for _, id := range a.Selected {
			if id == literal {
				return true
			}
		}
		return false
	}
	if a.Text != nil {
		return literal != "" && strings.Contains(*a.Text, literal)
	}
	return false
}

// BoolAnswer builds a boolean answer.
func BoolAnswer(questionID string, v bool) Answer {
	return Answer{QuestionID: questionID, Bool: &v}
}

// TextAnswer builds a text answer.
func TextAnswer(questionID, v string) Answer {
	return Answer{QuestionID: questionID, Text: &v}
}

// NumberAnswer builds a numeric answer.
func NumberAnswer(questionID string, v float64) Answer {
	return Answer{QuestionID: questionID, Number: &v}
}

// ChoiceAnswer builds a selection answer from option IDs.
func ChoiceAnswer(questionID string, optionIDs ...string) Answer {
	return Answer{QuestionID: questionID, Selected: optionIDs}
}

// NAAnswer builds a not-applicable answer.
func NAAnswer(questionID string) Answer {
	return Answer{QuestionID: questionID, NotApplicable: true}
}
