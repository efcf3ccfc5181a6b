package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/lead"
	"github.com/hpungsan/leadvault/internal/storage"
	"github.com/hpungsan/leadvault/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTest(t *testing.T, cfg *config.Config) (*store.Store, http.Handler) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	home := t.TempDir()
	backend, err := storage.Open(cfg, home)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	now := func() time.Time { return testNow }
	st := store.New(backend, store.Options{Config: cfg, Home: home, Now: now})
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	router := NewRouter(st, Options{
		Version: "test",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     now,
	})
	return st, router
}

// seedLead creates a lead and returns it.
func seedLead(t *testing.T, st *store.Store, input store.CreateInput) *lead.Lead {
	t.Helper()
	l, err := st.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("seed lead %q: %v", input.Name, err)
	}
	return l
}

func postForm(router http.Handler, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- HandleList ---

func TestRoot_RedirectsToLeads(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/leads" {
		t.Errorf("Location = %q, want /leads", loc)
	}
}

func TestHandleList_Default(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme Corp", URL: "acme.com", Tags: "saas, b2b"})

	rec := get(router, "/leads", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "Acme Corp", "https://acme.com", "acme.com", "saas", "just now", `id="metric-total">1<`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestHandleList_EmptyState(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/leads", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "No leads yet") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(body, `id="delete-btn" disabled`) {
		t.Error("expected clear button to be disabled on an empty vault")
	}
}

func TestHandleList_StageFilter(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Won Deal", URL: "won.com", Stage: "won"})
	seedLead(t, st, store.CreateInput{Name: "Cold Lead", URL: "cold.com"})

	rec := get(router, "/leads?stage=won", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Won Deal") {
		t.Error("expected 'Won Deal' in filtered results")
	}
	if strings.Contains(body, "Cold Lead") {
		t.Error("did not expect 'Cold Lead' in filtered results")
	}
	// Metrics cover the whole collection regardless of the filter
	if !strings.Contains(body, `id="metric-total">2<`) {
		t.Error("expected total metric of 2")
	}
}

func TestHandleList_InvalidFilter(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/leads?stage=archived", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error 400") {
		t.Error("expected error page")
	}
}

func TestHandleList_LiveSearchRendersResultsOnly(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})
	seedLead(t, st, store.CreateInput{Name: "Globex", URL: "globex.io"})

	rec := get(router, "/leads?q=GLOB", map[string]string{"HX-Request": "true", "HX-Target": "results"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") || strings.Contains(body, "lead-form") {
		t.Error("expected only the results fragment")
	}
	if !strings.Contains(body, "Globex") || strings.Contains(body, ">Acme<") {
		t.Errorf("unexpected results fragment: %s", body)
	}
}

func TestHandleList_NoMatchMessage(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})

	rec := get(router, "/leads?q=zzz", nil)
	if !strings.Contains(rec.Body.String(), "No leads match this view.") {
		t.Error("expected no-match message")
	}
}

func TestHandleList_Notice(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/leads?notice="+url.QueryEscape(NoticeCleared), nil)
	if !strings.Contains(rec.Body.String(), "toast show") {
		t.Error("expected visible toast")
	}
	if !strings.Contains(rec.Body.String(), NoticeCleared) {
		t.Error("expected notice text")
	}
}

func TestHandleList_MarkdownNote(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com", Note: "**hot** lead <script>alert(1)</script>"})

	body := get(router, "/leads", nil).Body.String()
	if !strings.Contains(body, "<strong>hot</strong>") {
		t.Error("expected rendered Markdown in note")
	}
	if strings.Contains(body, "<script>alert(1)") {
		t.Error("raw HTML in notes must not be rendered")
	}
}

// --- HandleCreate ---

func TestHandleCreate_RedirectsWithNotice(t *testing.T) {
	st, router := setupTest(t, nil)

	form := url.Values{
		"name":   {"Acme"},
		"url":    {"acme.com"},
		"stage":  {"contacted"},
		"tags":   {"Hot, B2B"},
		"note":   {"  call back  "},
		"filter": {"starred"},
	}
	rec := postForm(router, "/leads", form, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "stage=starred") || !strings.Contains(loc, "notice=Lead+captured") {
		t.Errorf("Location = %q, want filter and notice preserved", loc)
	}

	leads := st.Leads()
	if len(leads) != 1 {
		t.Fatalf("len(leads) = %d, want 1", len(leads))
	}
	got := leads[0]
	if got.URL != "https://acme.com" || got.Stage != lead.StageContacted || got.Note != "call back" {
		t.Errorf("unexpected lead: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "hot" || got.Tags[1] != "b2b" {
		t.Errorf("Tags = %v, want [hot b2b]", got.Tags)
	}
}

func TestHandleCreate_MissingFieldsRerendersForm(t *testing.T) {
	st, router := setupTest(t, nil)

	rec := postForm(router, "/leads", url.Values{"name": {"Only Name"}, "url": {"  "}}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, store.MsgNameAndLinkRequired) {
		t.Error("expected validation message")
	}
	if !strings.Contains(body, `value="Only Name"`) {
		t.Error("expected entered name to be kept")
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
}

func TestHandleCreate_JSON(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads", url.Values{"name": {"Acme"}, "url": {"acme.com"}}, map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var created lead.Lead
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "Acme" || created.ID == "" || created.CreatedAt != testNow.UnixMilli() {
		t.Errorf("unexpected lead: %+v", created)
	}
}

func TestHandleCreate_JSONValidationError(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads", url.Values{"name": {"Acme"}, "url": {"acme.com"}, "stage": {"lost"}}, map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", resp.Error.Code)
	}
}

func TestHandleCreate_HTMXRedirect(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads", url.Values{"name": {"Acme"}, "url": {"acme.com"}}, map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); !strings.HasPrefix(got, "/leads?notice=") {
		t.Errorf("HX-Redirect = %q", got)
	}
}

// --- HandleCapture ---

func TestHandleCapture_UsesTitle(t *testing.T) {
	st, router := setupTest(t, nil)

	rec := postForm(router, "/leads/capture", url.Values{"url": {"https://acme.com/pricing"}, "title": {"Acme Pricing"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, url.QueryEscape(NoticeTabSaved)) {
		t.Errorf("Location = %q, want tab saved notice", loc)
	}
	leads := st.Leads()
	if len(leads) != 1 || leads[0].Name != "Acme Pricing" || leads[0].Stage != lead.StageProspect {
		t.Errorf("unexpected leads: %+v", leads)
	}
}

func TestHandleCapture_NoURL(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads/capture", url.Values{}, map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), store.MsgUnableToReadTab) {
		t.Errorf("body = %q, want %q", rec.Body.String(), store.MsgUnableToReadTab)
	}
}

func TestHandleCapture_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CaptureDisabled = true
	_, router := setupTest(t, cfg)

	if strings.Contains(get(router, "/leads", nil).Body.String(), "capture-form") {
		t.Error("capture form should be hidden when capture is disabled")
	}

	rec := postForm(router, "/leads/capture", url.Values{"url": {"acme.com"}}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleStar ---

func TestHandleStar_Toggles(t *testing.T) {
	st, router := setupTest(t, nil)
	l := seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})

	rec := postForm(router, "/leads/"+l.ID+"/star", url.Values{}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, url.QueryEscape(NoticeStarred)) {
		t.Errorf("Location = %q, want starred notice", loc)
	}
	if got, _ := st.Get(l.ID); !got.Starred {
		t.Error("lead should be starred")
	}

	rec = postForm(router, "/leads/"+l.ID+"/star", url.Values{}, nil)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, url.QueryEscape(NoticeUnstarred)) {
		t.Errorf("Location = %q, want unstarred notice", loc)
	}
	if got, _ := st.Get(l.ID); got.Starred {
		t.Error("lead should be unstarred")
	}
}

func TestHandleStar_StaleIDIgnored(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads/missing/star", url.Values{}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/leads" {
		t.Errorf("Location = %q, want /leads", loc)
	}
}

func TestHandleStar_StaleIDJSON(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads/missing/star", url.Values{}, map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandleDelete / HandleClear ---

func TestHandleDelete_RequiresConfirm(t *testing.T) {
	st, router := setupTest(t, nil)
	l := seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})

	rec := postForm(router, "/leads/"+l.ID+"/delete", url.Values{}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if st.Len() != 1 {
		t.Error("lead should not be removed without confirmation")
	}
}

func TestHandleDelete_Confirmed(t *testing.T) {
	st, router := setupTest(t, nil)
	l := seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})
	seedLead(t, st, store.CreateInput{Name: "Globex", URL: "globex.io"})

	rec := postForm(router, "/leads/"+l.ID+"/delete", url.Values{"confirm": {"true"}, "q": {"glo"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "q=glo") || !strings.Contains(loc, url.QueryEscape(NoticeRemoved)) {
		t.Errorf("Location = %q", loc)
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestHandleDelete_StaleIDNoNotice(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads/missing/delete", url.Values{"confirm": {"true"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/leads" {
		t.Errorf("Location = %q, want /leads", loc)
	}
}

func TestHandleClear(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})
	seedLead(t, st, store.CreateInput{Name: "Globex", URL: "globex.io"})

	rec := postForm(router, "/leads/clear", url.Values{}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed status = %d, want 409", rec.Code)
	}

	rec = postForm(router, "/leads/clear", url.Values{"confirm": {"true"}}, map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out store.ClearOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Cleared != 2 {
		t.Errorf("Cleared = %d, want 2", out.Cleared)
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
}

func TestHandleClear_EmptyNoNotice(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := postForm(router, "/leads/clear", url.Values{"confirm": {"true"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/leads" {
		t.Errorf("Location = %q, want /leads", loc)
	}
}

// --- API ---

func TestAPI_ListGetMetrics(t *testing.T) {
	st, router := setupTest(t, nil)
	a := seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com", Stage: "won"})
	seedLead(t, st, store.CreateInput{Name: "Globex", URL: "globex.io"})
	if _, err := st.ToggleStar(context.Background(), a.ID); err != nil {
		t.Fatalf("ToggleStar: %v", err)
	}

	rec := get(router, "/api/leads?stage=won", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var view store.ViewOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(view.Leads) != 1 || view.Leads[0].ID != a.ID {
		t.Errorf("unexpected leads: %+v", view.Leads)
	}
	if view.Metrics.Total != 2 || view.Metrics.StarredCount != 1 {
		t.Errorf("unexpected metrics: %+v", view.Metrics)
	}

	rec = get(router, "/api/leads/"+a.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"createdAt"`) {
		t.Error("expected createdAt in lead JSON")
	}

	rec = get(router, "/api/leads/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	rec = get(router, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
	var m lead.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m != (lead.Metrics{Total: 2, StarredCount: 1, LastWeekCount: 2}) {
		t.Errorf("metrics = %+v", m)
	}
}

func TestAPI_ListInvalidFilter(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/api/leads?stage=nope", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Server plumbing ---

func TestPrometheusMetrics(t *testing.T) {
	st, router := setupTest(t, nil)
	seedLead(t, st, store.CreateInput{Name: "Acme", URL: "acme.com"})

	// Generate one routed request so the counters have a sample
	get(router, "/leads", nil)

	rec := get(router, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"leadvault_leads_total 1",
		"leadvault_leads_starred 0",
		"leadvault_leads_last_week 1",
		`leadvault_http_requests_total{method="GET"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, router := setupTest(t, nil)

	rec := get(router, "/leads", nil)
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("missing Content-Security-Policy")
	}
}

func TestStaticAssets(t *testing.T) {
	_, router := setupTest(t, nil)

	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		rec := get(router, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
	if !strings.Contains(get(router, "/static/app.js", nil).Body.String(), "Link copied") {
		t.Error("expected copy-link toast in app.js")
	}
}

func TestListURL(t *testing.T) {
	tests := []struct {
		filter, search, notice string
		want                   string
	}{
		{"", "", "", "/leads"},
		{"all", " ", "", "/leads"},
		{"won", "", "", "/leads?stage=won"},
		{"", "acme", "Lead removed", "/leads?notice=Lead+removed&q=acme"},
	}
	for _, tt := range tests {
		if got := listURL(tt.filter, tt.search, tt.notice); got != tt.want {
			t.Errorf("listURL(%q, %q, %q) = %q, want %q", tt.filter, tt.search, tt.notice, got, tt.want)
		}
	}
}
