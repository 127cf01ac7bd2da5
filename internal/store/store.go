package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '1.0.0',
		state TEXT NOT NULL DEFAULT 'draft',
		category TEXT NOT NULL DEFAULT '',
		scoring_method TEXT NOT NULL DEFAULT 'weighted',
		locked INTEGER NOT NULL DEFAULT 0,
		doc TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audits (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		auditor TEXT NOT NULL DEFAULT '',
		answers TEXT NOT NULL DEFAULT '{}',
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (template_id) REFERENCES templates(id)
	);

	CREATE TABLE IF NOT EXISTS audit_results (
		audit_id TEXT NOT NULL UNIQUE,
		overall REAL NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		complete INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '{}',
		FOREIGN KEY (audit_id) REFERENCES audits(id)
	);

	CREATE TABLE IF NOT EXISTS corrective_actions (
		id TEXT PRIMARY KEY,
		audit_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		section_id TEXT NOT NULL,
		risk_level TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (audit_id) REFERENCES audits(id)
	);

	CREATE TABLE IF NOT EXISTS template_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveTemplate upserts the full template document in a single statement, so
// either the whole document is written or none of it.
func (s *Store) SaveTemplate(t *model.Template) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO templates (id, name, version, state, category, scoring_method, locked, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			state = excluded.state,
			category = excluded.category,
			scoring_method = excluded.scoring_method,
			locked = excluded.locked,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.Version, t.State, t.Category, t.ScoringMethod, t.Locked, string(doc), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTemplate returns a template by ID. Returns sql.ErrNoRows when missing.
func (s *Store) GetTemplate(id string) (*model.Template, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM templates WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		return nil, err
	}
	var t model.Template
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("unmarshal template %s: %w", id, err)
	}
	return &t, nil
}

// ListTemplates returns summaries for all templates, newest first.
func (s *Store) ListTemplates() ([]model.TemplateSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, name, version, state, category, scoring_method, locked, updated_at
		 FROM templates ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []model.TemplateSummary
	for rows.Next() {
		var ts model.TemplateSummary
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.Version, &ts.State, &ts.Category, &ts.ScoringMethod, &ts.Locked, &ts.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}

// DeleteTemplate removes a template and everything recorded against it.
func (s *Store) DeleteTemplate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM corrective_actions WHERE audit_id IN (SELECT id FROM audits WHERE template_id = ?)`, id,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM audit_results WHERE audit_id IN (SELECT id FROM audits WHERE template_id = ?)`, id,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM audits WHERE template_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// TemplateCount returns the number of stored templates.
func (s *Store) TemplateCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM templates`).Scan(&count)
	return count, err
}

// CreateAudit starts a new audit run against a template.
func (s *Store) CreateAudit(templateID, auditor string) (*model.Audit, error) {
	a := &model.Audit{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Status:     model.AuditInProgress,
		Auditor:    auditor,
		Answers:    model.AnswerSet{},
		StartedAt:  time.Now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO audits (id, template_id, status, auditor, answers, started_at) VALUES (?, ?, ?, ?, '{}', ?)`,
		a.ID, a.TemplateID, a.Status, a.Auditor, a.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAudit returns an audit by ID. Returns sql.ErrNoRows when missing.
func (s *Store) GetAudit(id string) (*model.Audit, error) {
	var a model.Audit
	var answers string
	err := s.db.QueryRow(
		`SELECT id, template_id, status, auditor, answers, started_at, completed_at FROM audits WHERE id = ?`, id,
	).Scan(&a.ID, &a.TemplateID, &a.Status, &a.Auditor, &answers, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers for audit %s: %w", id, err)
	}
	return &a, nil
}

// SaveAnswers replaces an audit's recorded answer set.
func (s *Store) SaveAnswers(auditID string, answers model.AnswerSet) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.db.Exec(`UPDATE audits SET answers = ? WHERE id = ?`, string(data), auditID)
	return err
}

// ListAuditsForTemplate returns all audits for a template, newest first.
func (s *Store) ListAuditsForTemplate(templateID string) ([]model.Audit, error) {
	rows, err := s.db.Query(
		`SELECT id, template_id, status, auditor, answers, started_at, completed_at
		 FROM audits WHERE template_id = ? ORDER BY started_at DESC`, templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var audits []model.Audit
	for rows.Next() {
		var a model.Audit
		var answers string
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.Status, &a.Auditor, &answers, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers for audit %s: %w", a.ID, err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// CompleteAudit marks the audit completed and records its score snapshot and
// corrective actions in one transaction.
func (s *Store) CompleteAudit(auditID string, result engine.ScoreResult) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(
		`UPDATE audits SET status = ?, completed_at = ? WHERE id = ?`,
		model.AuditCompleted, now, auditID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO audit_results (audit_id, overall, passed, complete, detail)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(audit_id) DO UPDATE SET
			overall = excluded.overall,
			passed = excluded.passed,
			complete = excluded.complete,
			detail = excluded.detail`,
		auditID, result.Overall, result.Passed, result.Complete, string(detail),
	); err != nil {
		return err
	}
	for _, item := range result.Actions {
		if _, err := tx.Exec(
			`INSERT INTO corrective_actions (id, audit_id, question_id, section_id, risk_level, detail, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'open', ?)`,
			uuid.NewString(), auditID, item.QuestionID, item.SectionID, item.RiskLevel, item.Detail, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetResult returns the recorded score snapshot for an audit, or nil.
func (s *Store) GetResult(auditID string) (*engine.ScoreResult, error) {
	var detail string
	err := s.db.QueryRow(`SELECT detail FROM audit_results WHERE audit_id = ?`, auditID).Scan(&detail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result engine.ScoreResult
	if err := json.Unmarshal([]byte(detail), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result for audit %s: %w", auditID, err)
	}
	return &result, nil
}

// ListActions returns the corrective actions recorded for an audit.
func (s *Store) ListActions(auditID string) ([]model.CorrectiveAction, error) {
	rows, err := s.db.Query(
		`SELECT id, audit_id, question_id, section_id, risk_level, detail, status, created_at
		 FROM corrective_actions WHERE audit_id = ? ORDER BY created_at, id`, auditID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []model.CorrectiveAction
	for rows.Next() {
		var ca model.CorrectiveAction
		if err := rows.Scan(&ca.ID, &ca.AuditID, &ca.QuestionID, &ca.SectionID, &ca.RiskLevel, &ca.Detail, &ca.Status, &ca.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, ca)
	}
	return actions, rows.Err()
}
