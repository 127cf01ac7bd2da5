package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/i18n"
	"github.com/pavelanni/auditkit/internal/model"
	"github.com/pavelanni/auditkit/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := i18n.Init("en"); err != nil {
		t.Fatalf("init i18n: %v", err)
	}

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	New(s).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with a JSON body and decodes the JSON response
// into out (when out is non-nil).
func doJSON(t *testing.T, srv *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

func checklistTemplate() *model.Template {
	return &model.Template{
		Name:          "Warehouse Safety",
		Version:       "1.0.0",
		ScoringMethod: model.ScoringWeighted,
		PassThreshold: 60,
		Sections: []model.Section{
			{
				Title:  "Exits",
				Order:  1,
				Weight: 1,
				Questions: []model.Question{
					{ID: "q1", Prompt: "Exit routes clear?", Type: model.TypeYesNo, Required: true, Weight: 1, AutoAction: true, RiskLevel: model.RiskHigh},
					{ID: "q2", Prompt: "Exit signs lit?", Type: model.TypeYesNo, Required: true, Weight: 1},
				},
			},
		},
	}
}

// createTemplate posts a template and returns the stored copy.
func createTemplate(t *testing.T, srv *httptest.Server, tpl *model.Template) model.Template {
	t.Helper()
	var created model.Template
	resp := doJSON(t, srv, http.MethodPost, "/api/templates", tpl, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create template: status %d", resp.StatusCode)
	}
	return created
}

func publishTemplate(t *testing.T, srv *httptest.Server, id string) model.Template {
	t.Helper()
	var published model.Template
	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+id+"/publish", nil, &published)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish template: status %d", resp.StatusCode)
	}
	return published
}

func TestTemplateCRUD(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, checklistTemplate())
	if created.ID == "" {
		t.Fatal("created template has no ID")
	}
	if created.State != model.StateDraft {
		t.Errorf("created template state = %q, want draft", created.State)
	}

	var got model.Template
	resp := doJSON(t, srv, http.MethodGet, "/api/templates/"+created.ID, nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get template: status %d", resp.StatusCode)
	}
	if got.Name != "Warehouse Safety" {
		t.Errorf("template name = %q", got.Name)
	}

	got.Name = "Warehouse Safety v2"
	resp = doJSON(t, srv, http.MethodPut, "/api/templates/"+created.ID, got, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update template: status %d", resp.StatusCode)
	}
	if got.Name != "Warehouse Safety v2" {
		t.Errorf("updated name = %q", got.Name)
	}

	var summaries []model.TemplateSummary
	doJSON(t, srv, http.MethodGet, "/api/templates", nil, &summaries)
	if len(summaries) != 1 {
		t.Fatalf("ListTemplates returned %d summaries, want 1", len(summaries))
	}

	resp = doJSON(t, srv, http.MethodDelete, "/api/templates/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete template: status %d", resp.StatusCode)
	}
	resp = doJSON(t, srv, http.MethodGet, "/api/templates/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted template: status %d, want 404", resp.StatusCode)
	}
}

func TestTemplateNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/api/templates/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestValidateReportsLocalizedDiagnostics(t *testing.T) {
	srv := newTestServer(t)

	empty := &model.Template{Name: "Empty", ScoringMethod: model.ScoringWeighted, PassThreshold: 50}
	created := createTemplate(t, srv, empty)

	var report struct {
		OK          bool             `json:"ok"`
		Diagnostics []diagnosticView `json:"diagnostics"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/validate", nil, &report)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate: status %d", resp.StatusCode)
	}
	if report.OK {
		t.Fatal("empty template reported as valid")
	}
	found := false
	for _, d := range report.Diagnostics {
		if d.Code == engine.CodeNoSections {
			found = true
			if d.Localized != "Add at least one section before publishing." {
				t.Errorf("localized message = %q", d.Localized)
			}
		}
	}
	if !found {
		t.Errorf("diagnostics missing %s: %+v", engine.CodeNoSections, report.Diagnostics)
	}
}

func TestPublishInvalidTemplate(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, &model.Template{Name: "Empty", ScoringMethod: model.ScoringWeighted})

	var errResp errorResponse
	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/publish", nil, &errResp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("publish invalid template: status %d, want 422", resp.StatusCode)
	}
	if len(errResp.Diagnostics) == 0 {
		t.Error("422 response carries no diagnostics")
	}
}

func TestLockedTemplateRejectsEdits(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, checklistTemplate())
	publishTemplate(t, srv, created.ID)

	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/lock", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock template: status %d", resp.StatusCode)
	}

	created.Name = "Changed"
	resp = doJSON(t, srv, http.MethodPut, "/api/templates/"+created.ID, created, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("update locked template: status %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/unlock", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlock template: status %d", resp.StatusCode)
	}
	resp = doJSON(t, srv, http.MethodPut, "/api/templates/"+created.ID, created, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update unlocked template: status %d", resp.StatusCode)
	}
}

func TestArchiveIsTerminal(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, checklistTemplate())
	publishTemplate(t, srv, created.ID)

	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/archive", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("archive: status %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodPut, "/api/templates/"+created.ID, created, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("update archived template: status %d, want 409", resp.StatusCode)
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/publish", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("re-publish archived template: status %d, want 409", resp.StatusCode)
	}
}

func TestDuplicateTemplate(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, checklistTemplate())
	publishTemplate(t, srv, created.ID)

	var dup model.Template
	resp := doJSON(t, srv, http.MethodPost, "/api/templates/"+created.ID+"/duplicate", nil, &dup)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("duplicate: status %d", resp.StatusCode)
	}
	if dup.ID == created.ID {
		t.Error("duplicate kept the original ID")
	}
	if dup.State != model.StateDraft {
		t.Errorf("duplicate state = %q, want draft", dup.State)
	}
	if dup.Name != "Warehouse Safety (copy)" {
		t.Errorf("duplicate name = %q", dup.Name)
	}
}

func TestAuditFlow(t *testing.T) {
	srv := newTestServer(t)

	created := createTemplate(t, srv, checklistTemplate())
	published := publishTemplate(t, srv, created.ID)

	// Audits can only run against published templates.
	draft := createTemplate(t, srv, checklistTemplate())
	resp := doJSON(t, srv, http.MethodPost, "/api/audits",
		map[string]string{"template_id": draft.ID, "auditor": "sam"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("audit of draft template: status %d, want 409", resp.StatusCode)
	}

	var audit model.Audit
	resp = doJSON(t, srv, http.MethodPost, "/api/audits",
		map[string]string{"template_id": published.ID, "auditor": "sam"}, &audit)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create audit: status %d", resp.StatusCode)
	}
	if audit.Status != model.AuditInProgress {
		t.Errorf("new audit status = %q", audit.Status)
	}

	answers := model.AnswerSet{
		"q1": model.TextAnswer("q1", "no"),
		"q2": model.TextAnswer("q2", "yes"),
	}
	resp = doJSON(t, srv, http.MethodPut, "/api/audits/"+audit.ID+"/answers", answers, &audit)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save answers: status %d", resp.StatusCode)
	}

	var vis map[string]engine.Visibility
	doJSON(t, srv, http.MethodGet, "/api/audits/"+audit.ID+"/visibility", nil, &vis)
	if vis["q1"] != engine.VisibleRequired {
		t.Errorf("q1 visibility = %q", vis["q1"])
	}

	var score engine.ScoreResult
	doJSON(t, srv, http.MethodGet, "/api/audits/"+audit.ID+"/score", nil, &score)
	if score.Overall != 50 {
		t.Errorf("preview Overall = %v, want 50", score.Overall)
	}

	var result engine.ScoreResult
	resp = doJSON(t, srv, http.MethodPost, "/api/audits/"+audit.ID+"/complete", nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete audit: status %d", resp.StatusCode)
	}
	if result.Passed {
		t.Error("50% against a 60% threshold reported as passed")
	}
	if !result.Complete {
		t.Error("fully answered audit reported incomplete")
	}

	// q1 was non-compliant and flagged for auto actions.
	var actions []model.CorrectiveAction
	doJSON(t, srv, http.MethodGet, "/api/audits/"+audit.ID+"/actions", nil, &actions)
	if len(actions) != 1 {
		t.Fatalf("got %d corrective actions, want 1", len(actions))
	}
	if actions[0].QuestionID != "q1" || actions[0].RiskLevel != model.RiskHigh {
		t.Errorf("unexpected action: %+v", actions[0])
	}

	// Saving answers after completion is rejected.
	resp = doJSON(t, srv, http.MethodPut, "/api/audits/"+audit.ID+"/answers", answers, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("save answers on completed audit: status %d, want 409", resp.StatusCode)
	}

	// Re-completing returns the stored snapshot.
	var again engine.ScoreResult
	resp = doJSON(t, srv, http.MethodPost, "/api/audits/"+audit.ID+"/complete", nil, &again)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-complete audit: status %d", resp.StatusCode)
	}
	if again.Overall != result.Overall {
		t.Errorf("re-complete Overall = %v, want %v", again.Overall, result.Overall)
	}

	var audits []model.Audit
	doJSON(t, srv, http.MethodGet, "/api/templates/"+published.ID+"/audits", nil, &audits)
	if len(audits) != 1 {
		t.Errorf("template has %d audits, want 1", len(audits))
	}
}

func TestConditionalVisibilityOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	tpl := checklistTemplate()
	tpl.Sections[0].Questions = append(tpl.Sections[0].Questions, model.Question{
		ID:     "q3",
		Prompt: "Describe the obstruction",
		Type:   model.TypeShortText,
		Condition: &model.ConditionalRule{
			Enabled:    true,
			Operator:   model.OpEquals,
			QuestionID: "q1",
			Value:      "no",
		},
	})
	created := createTemplate(t, srv, tpl)
	published := publishTemplate(t, srv, created.ID)

	var audit model.Audit
	doJSON(t, srv, http.MethodPost, "/api/audits",
		map[string]string{"template_id": published.ID}, &audit)

	var vis map[string]engine.Visibility
	doJSON(t, srv, http.MethodGet, "/api/audits/"+audit.ID+"/visibility", nil, &vis)
	if vis["q3"] != engine.Hidden {
		t.Errorf("q3 with unanswered trigger = %q, want hidden", vis["q3"])
	}

	doJSON(t, srv, http.MethodPut, "/api/audits/"+audit.ID+"/answers",
		model.AnswerSet{"q1": model.TextAnswer("q1", "no")}, nil)
	doJSON(t, srv, http.MethodGet, "/api/audits/"+audit.ID+"/visibility", nil, &vis)
	if vis["q3"] != engine.VisibleOptional {
		t.Errorf("q3 with matching trigger = %q, want visible_optional", vis["q3"])
	}
}
