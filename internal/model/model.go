package model

import "time"

// LifecycleState represents a template's position in its editing lifecycle.
type LifecycleState string

const (
	// StateDraft is a freely editable, unpublished template.
	StateDraft LifecycleState = "draft"
	// StatePublished is a validated template available for audits.
	StatePublished LifecycleState = "published"
	// StateArchived is a retired template; archiving is terminal.
	StateArchived LifecycleState = "archived"
)

// ScoringMethod selects how per-question results aggregate into a final score.
type ScoringMethod string

const (
	ScoringWeighted ScoringMethod = "weighted"
	ScoringEqual    ScoringMethod = "equal"
	ScoringPassFail ScoringMethod = "pass_fail"
	ScoringPoints   ScoringMethod = "points"
)

// QuestionType determines a question's answer shape and scoring eligibility.
type QuestionType string

const (
	TypeYesNo        QuestionType = "yes_no"
	TypeYesNoNA      QuestionType = "yes_no_na"
	TypePassFail     QuestionType = "pass_fail"
	TypeScale5       QuestionType = "scale_1_5"
	TypeScale10      QuestionType = "scale_1_10"
	TypeSingleChoice QuestionType = "single_choice"
	TypeChecklist    QuestionType = "checklist"
	TypeShortText    QuestionType = "short_text"
	TypeLongText     QuestionType = "long_text"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	TypePhoto        QuestionType = "photo"
	TypeSignature    QuestionType = "signature"
)

// IsChoice reports whether the type carries selectable options.
func (t QuestionType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeChecklist
}

// ConditionOperator is the comparison applied by a conditional rule.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
)

// EvidenceKind is the kind of attachment an evidence-required question expects.
type EvidenceKind string

const (
	EvidencePhoto     EvidenceKind = "photo"
	EvidenceDocument  EvidenceKind = "document"
	EvidenceSignature EvidenceKind = "signature"
	EvidenceAny       EvidenceKind = "any"
)

// RiskLevel classifies the severity of a non-compliant answer.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Template is the versioned definition of an audit: an owned tree of
// sections and questions plus the rules for scoring a completed run.
type Template struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Version       string         `json:"version"`
	State         LifecycleState `json:"state"`
	Category      string         `json:"category,omitempty"`
	Standards     []string       `json:"standards,omitempty"`
	Sections      []Section      `json:"sections"`
	ScoringMethod ScoringMethod  `json:"scoring_method"`
	PassThreshold float64        `json:"pass_threshold"`
	Locked        bool           `json:"locked"`
	Author        string         `json:"author,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Section is an ordered, weighted grouping of questions within a template.
type Section struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Order       int        `json:"order"`
	Weight      float64    `json:"weight"`
	Questions   []Question `json:"questions"`
}

// Question is a single scorable or data-collecting prompt.
type Question struct {
	ID               string           `json:"id"`
	Prompt           string           `json:"prompt"`
	Guidance         string           `json:"guidance,omitempty"`
	Type             QuestionType     `json:"type"`
	Required         bool             `json:"required"`
	Weight           float64          `json:"weight"`
	Options          []Option         `json:"options,omitempty"`
	Condition        *ConditionalRule `json:"condition,omitempty"`
	EvidenceRequired bool             `json:"evidence_required"`
	EvidenceKind     EvidenceKind     `json:"evidence_kind,omitempty"`
	StandardRef      string           `json:"standard_ref,omitempty"`
	RiskLevel        RiskLevel        `json:"risk_level,omitempty"`
	AutoAction       bool             `json:"auto_action"`
	Tags             []string         `json:"tags,omitempty"`
}

// Option is a selectable value for choice-type questions.
type Option struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Value   string  `json:"value,omitempty"`
	Score   float64 `json:"score"`
	Correct bool    `json:"correct"`
}

// ConditionalRule makes a question's visibility depend on the answer to an
// earlier question. The referenced question must occur strictly earlier in
// flattened document order; the validator rejects anything else.
type ConditionalRule struct {
	Enabled    bool              `json:"enabled"`
	Operator   ConditionOperator `json:"operator"`
	QuestionID string            `json:"question_id"`
	Value      string            `json:"value"`
}

// QuestionRef locates a question inside its template. Positions are 1-based
// so they can double as diagnostic paths.
type QuestionRef struct {
	SectionPos  int
	QuestionPos int
	Section     *Section
	Question    *Question
}

// Flatten returns the template's questions in document order: sections in
// slice order, questions in slice order within each section. The validator,
// visibility resolver, and scoring engine all walk this order.
func (t *Template) Flatten() []QuestionRef {
	var refs []QuestionRef
	for si := range t.Sections {
		sec := &t.Sections[si]
		for qi := range sec.Questions {
			refs = append(refs, QuestionRef{
				SectionPos:  si + 1,
				QuestionPos: qi + 1,
				Section:     sec,
				Question:    &sec.Questions[qi],
			})
		}
	}
	return refs
}

// FindQuestion returns the question with the given ID, or nil.
func (t *Template) FindQuestion(id string) *Question {
	for si := range t.Sections {
		for qi := range t.Sections[si].Questions {
			if t.Sections[si].Questions[qi].ID == id {
				return &t.Sections[si].Questions[qi]
			}
		}
	}
	return nil
}

// FindSection returns the section with the given ID, or nil.
func (t *Template) FindSection(id string) *Section {
	for si := range t.Sections {
		if t.Sections[si].ID == id {
			return &t.Sections[si]
		}
	}
	return nil
}

// TotalQuestionWeight sums question weights across all sections.
func (t *Template) TotalQuestionWeight() float64 {
	var sum float64
	for _, ref := range t.Flatten() {
		sum += ref.Question.Weight
	}
	return sum
}

// TemplateSummary is the list-page projection of a template.
type TemplateSummary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	State         LifecycleState `json:"state"`
	Category      string         `json:"category,omitempty"`
	ScoringMethod ScoringMethod  `json:"scoring_method"`
	Locked        bool           `json:"locked"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Summary builds the list projection for a template.
func (t *Template) Summary() TemplateSummary {
	return TemplateSummary{
		ID:            t.ID,
		Name:          t.Name,
		Version:       t.Version,
		State:         t.State,
		Category:      t.Category,
		ScoringMethod: t.ScoringMethod,
		Locked:        t.Locked,
		UpdatedAt:     t.UpdatedAt,
	}
}

// AuditStatus represents the state of a recorded audit run.
type AuditStatus string

const (
	AuditInProgress AuditStatus = "in_progress"
	AuditCompleted  AuditStatus = "completed"
)

// Audit is one run of a template: the answer set recorded so far.
type Audit struct {
	ID          string      `json:"id"`
	TemplateID  string      `json:"template_id"`
	Status      AuditStatus `json:"status"`
	Auditor     string      `json:"auditor,omitempty"`
	Answers     AnswerSet   `json:"answers"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
