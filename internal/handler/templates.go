package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/model"
)

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListTemplates()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []model.TemplateSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleCreateTemplate accepts a full template document. New templates always
// start in draft regardless of what the client sent.
func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode template: %v", err)})
		return
	}
	if t.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "template name is required"})
		return
	}
	now := time.Now()
	t.State = model.StateDraft
	t.Locked = false
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Version == "" {
		t.Version = "1.0.0"
	}
	t.EnsureIDs()

	if err := h.store.SaveTemplate(&t); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate replaces the template's structural document. Lifecycle
// fields are carried over from the stored copy, so a client cannot publish or
// unlock a template through an update.
func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := engine.EnsureMutable(current); err != nil {
		h.writeError(w, r, err)
		return
	}

	var incoming model.Template
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode template: %v", err)})
		return
	}
	incoming.ID = current.ID
	incoming.State = current.State
	incoming.Locked = current.Locked
	incoming.CreatedAt = current.CreatedAt
	incoming.UpdatedAt = time.Now()
	incoming.EnsureIDs()

	if err := h.store.SaveTemplate(&incoming); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, incoming)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := engine.EnsureMutable(t); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteTemplate(t.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateTemplate runs validation and reports every diagnostic, even
// for drafts that are nowhere near publishable.
func (h *Handler) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result := engine.Validate(t)
	writeJSON(w, http.StatusOK, struct {
		OK          bool             `json:"ok"`
		Diagnostics []diagnosticView `json:"diagnostics"`
	}{
		OK:          result.OK,
		Diagnostics: localizeDiagnostics(r, result.Errors),
	})
}

func (h *Handler) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, engine.Publish)
}

func (h *Handler) handleArchiveTemplate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, engine.Archive)
}

func (h *Handler) handleSetLocked(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.transition(w, r, func(t *model.Template) error {
			return engine.SetLocked(t, locked)
		})
	}
}

// transition loads the template, applies a lifecycle move, and persists it.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, move func(*model.Template) error) {
	t, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := move(t); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.SaveTemplate(t); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDuplicateTemplate deep-copies the template into a fresh draft with
// new identifiers throughout.
func (h *Handler) handleDuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cp := t.Clone()
	cp.Name = t.Name + " (copy)"
	if err := h.store.SaveTemplate(cp); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (h *Handler) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.GetTemplate(templateID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	audits, err := h.store.ListAuditsForTemplate(templateID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if audits == nil {
		audits = []model.Audit{}
	}
	writeJSON(w, http.StatusOK, audits)
}
