package store

import (
	"fmt"

	"github.com/pavelanni/auditkit/internal/model"
)

// ExportAllResults builds export-ready audit results across all templates.
func (s *Store) ExportAllResults() ([]model.AuditResult, error) {
	summaries, err := s.ListTemplates()
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var results []model.AuditResult
	for _, ts := range summaries {
		audits, err := s.ListAuditsForTemplate(ts.ID)
		if err != nil {
			return nil, fmt.Errorf("list audits for %s: %w", ts.ID, err)
		}
		for _, a := range audits {
			ar := model.AuditResult{
				AuditID:      a.ID,
				TemplateID:   ts.ID,
				TemplateName: ts.Name,
				Version:      ts.Version,
				Status:       a.Status,
				StartedAt:    a.StartedAt,
				CompletedAt:  a.CompletedAt,
			}

			result, err := s.GetResult(a.ID)
			if err != nil {
				return nil, fmt.Errorf("get result for %s: %w", a.ID, err)
			}
			if result != nil {
				ar.Overall = result.Overall
				ar.Passed = result.Passed
				ar.Complete = result.Complete
			}

			actions, err := s.ListActions(a.ID)
			if err != nil {
				return nil, fmt.Errorf("list actions for %s: %w", a.ID, err)
			}
			for _, ca := range actions {
				ar.Actions = append(ar.Actions, model.ActionItem{
					QuestionID: ca.QuestionID,
					SectionID:  ca.SectionID,
					RiskLevel:  ca.RiskLevel,
					Detail:     ca.Detail,
				})
			}

			results = append(results, ar)
		}
	}

	return results, nil
}
