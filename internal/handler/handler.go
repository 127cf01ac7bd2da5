package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/i18n"
	"github.com/pavelanni/auditkit/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
}

// New creates a new Handler.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", h.handleListTemplates)
		r.Post("/", h.handleCreateTemplate)
		r.Route("/{templateID}", func(r chi.Router) {
			r.Get("/", h.handleGetTemplate)
			r.Put("/", h.handleUpdateTemplate)
			r.Delete("/", h.handleDeleteTemplate)
			r.Post("/validate", h.handleValidateTemplate)
			r.Post("/publish", h.handlePublishTemplate)
			r.Post("/archive", h.handleArchiveTemplate)
			r.Post("/lock", h.handleSetLocked(true))
			r.Post("/unlock", h.handleSetLocked(false))
			r.Post("/duplicate", h.handleDuplicateTemplate)
			r.Get("/audits", h.handleListAudits)
		})
	})
	r.Route("/api/audits", func(r chi.Router) {
		r.Post("/", h.handleCreateAudit)
		r.Route("/{auditID}", func(r chi.Router) {
			r.Get("/", h.handleGetAudit)
			r.Put("/answers", h.handleSaveAnswers)
			r.Get("/visibility", h.handleVisibility)
			r.Get("/score", h.handleScore)
			r.Post("/complete", h.handleCompleteAudit)
			r.Get("/actions", h.handleListActions)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error       string           `json:"error"`
	Diagnostics []diagnosticView `json:"diagnostics,omitempty"`
}

// diagnosticView pairs an engine diagnostic with its localized message for
// the editing UI.
type diagnosticView struct {
	Code      engine.Code `json:"code"`
	Path      string      `json:"path"`
	Section   int         `json:"section,omitempty"`
	Question  int         `json:"question,omitempty"`
	Message   string      `json:"message"`
	Localized string      `json:"localized"`
}

func localizeDiagnostics(r *http.Request, errs []engine.Diagnostic) []diagnosticView {
	views := make([]diagnosticView, len(errs))
	for i, d := range errs {
		views[i] = diagnosticView{
			Code:      d.Code,
			Path:      d.Path(),
			Section:   d.Section,
			Question:  d.Question,
			Message:   d.Message,
			Localized: i18n.T(r.Context(), string(d.Code)),
		}
	}
	return views
}

// writeError maps core errors onto HTTP status codes: missing rows to 404,
// lock and transition violations to 409, failed validation to 422.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var npe *engine.NotPublishableError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, engine.ErrTemplateLocked):
		writeJSON(w, http.StatusConflict, errorResponse{Error: i18n.T(r.Context(), "TemplateLocked")})
	case errors.Is(err, engine.ErrTemplateArchived):
		writeJSON(w, http.StatusConflict, errorResponse{Error: i18n.T(r.Context(), "TemplateArchived")})
	case errors.Is(err, engine.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &npe):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       npe.Error(),
			Diagnostics: localizeDiagnostics(r, npe.Result.Errors),
		})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func templateID(r *http.Request) string {
	return chi.URLParam(r, "templateID")
}

func auditID(r *http.Request) string {
	return chi.URLParam(r, "auditID")
}
