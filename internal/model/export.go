package model

import "time"

// AuditExport is the top-level JSON structure for audit result export.
type AuditExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Results    []AuditResult `json:"results"`
}

// AuditResult holds one completed audit's data for export.
type AuditResult struct {
	AuditID      string       `json:"audit_id"`
	TemplateID   string       `json:"template_id"`
	TemplateName string       `json:"template_name"`
	Version      string       `json:"version"`
	Status       AuditStatus  `json:"status"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Overall      float64      `json:"overall"`
	Passed       bool         `json:"passed"`
	Complete     bool         `json:"complete"`
	Actions      []ActionItem `json:"actions,omitempty"`
}

// ActionItem identifies a failed question that must generate a corrective
// action. The engine only emits these; creating the action is the caller's job.
type ActionItem struct {
	QuestionID string    `json:"question_id"`
	SectionID  string    `json:"section_id"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
	Detail     string    `json:"detail"`
}

// CorrectiveAction is a persisted corrective action created from an ActionItem.
type CorrectiveAction struct {
	ID         string    `json:"id"`
	AuditID    string    `json:"audit_id"`
	QuestionID string    `json:"question_id"`
	SectionID  string    `json:"section_id"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
	Detail     string    `json:"detail"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
