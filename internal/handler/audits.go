package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/model"
)

// handleCreateAudit starts an audit run against a published template.
func (h *Handler) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		Auditor    string `json:"auditor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	t, err := h.store.GetTemplate(req.TemplateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if t.State != model.StatePublished {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: fmt.Sprintf("template %s is %s, only published templates can be audited", t.ID, t.State),
		})
		return
	}
	a, err := h.store.CreateAudit(t.ID, req.Auditor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAudit(auditID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleSaveAnswers replaces the audit's answer set. The body is a map of
// question ID to answer; IDs in the map win over IDs inside the answers.
func (h *Handler) handleSaveAnswers(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAudit(auditID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if a.Status != model.AuditInProgress {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "audit is already completed"})
		return
	}

	var answers model.AnswerSet
	if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode answers: %v", err)})
		return
	}
	for id, ans := range answers {
		ans.QuestionID = id
		answers[id] = ans
	}

	if err := h.store.SaveAnswers(a.ID, answers); err != nil {
		h.writeError(w, r, err)
		return
	}
	a.Answers = answers
	writeJSON(w, http.StatusOK, a)
}

// loadAuditWithTemplate fetches an audit together with its template.
func (h *Handler) loadAuditWithTemplate(r *http.Request) (*model.Audit, *model.Template, error) {
	a, err := h.store.GetAudit(auditID(r))
	if err != nil {
		return nil, nil, err
	}
	t, err := h.store.GetTemplate(a.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("load template %s for audit %s: %w", a.TemplateID, a.ID, err)
	}
	return a, t, nil
}

func (h *Handler) handleVisibility(w http.ResponseWriter, r *http.Request) {
	a, t, err := h.loadAuditWithTemplate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.ResolveVisibility(t, a.Answers))
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	a, t, err := h.loadAuditWithTemplate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.Score(t, a.Answers))
}

// handleCompleteAudit scores the audit and records the snapshot plus any
// corrective actions. Completing an already completed audit returns the
// stored result unchanged.
func (h *Handler) handleCompleteAudit(w http.ResponseWriter, r *http.Request) {
	a, t, err := h.loadAuditWithTemplate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if a.Status == model.AuditCompleted {
		result, err := h.store.GetResult(a.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	result := engine.Score(t, a.Answers)
	if err := h.store.CompleteAudit(a.ID, result); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListActions(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.GetAudit(auditID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	actions, err := h.store.ListActions(auditID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []model.CorrectiveAction{}
	}
	writeJSON(w, http.StatusOK, actions)
}
