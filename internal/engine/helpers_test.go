package engine

import (
	"testing"

	"github.com/pavelanni/auditkit/internal/model"
)

// fireSafetyTemplate builds a small valid template used across tests:
// one section, two yes/no questions (q1 weight 1, q2 weight 3).
func fireSafetyTemplate() *model.Template {
	return &model.Template{
		ID:            "tpl-fire",
		Name:          "Fire Safety Walkthrough",
		Version:       "1.0.0",
		State:         model.StateDraft,
		ScoringMethod: model.ScoringWeighted,
		PassThreshold: 50,
		Sections: []model.Section{
			{
				ID:     "sec-1",
				Title:  "Extinguishers",
				Order:  1,
				Weight: 1,
				Questions: []model.Question{
					{ID: "q1", Prompt: "Extinguisher present?", Type: model.TypeYesNo, Required: true, Weight: 1},
					{ID: "q2", Prompt: "Inspection tag current?", Type: model.TypeYesNo, Required: true, Weight: 3},
				},
			},
		},
	}
}

func yes(t *testing.T, qID string) model.Answer {
	t.Helper()
	return model.TextAnswer(qID, "yes")
}

func no(t *testing.T, qID string) model.Answer {
	t.Helper()
	return model.TextAnswer(qID, "no")
}

func answers(as ...model.Answer) model.AnswerSet {
	set := make(model.AnswerSet, len(as))
	for _, a := range as {
		set[a.QuestionID] = a
	}
	return set
}

func hasCode(result ValidationResult, code Code) bool {
	for _, d := range result.Errors {
		if d.Code == code {
			return true
		}
	}
	return false
}
