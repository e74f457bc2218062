package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/settings"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

func newTestContext(t *testing.T) *svc.ServiceContext {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(settings.EnvProfileDir, dir)

	svcCtx, err := svc.NewServiceContext(svc.Config{
		BaseDir: dir,
		APIKey:  "test-key",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("service context: %v", err)
	}
	t.Cleanup(svcCtx.Close)
	return svcCtx
}

func testRouter(svcCtx *svc.ServiceContext) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/health", HealthCheckHandler(svcCtx))
	r.Post("/api/v1/sessions", CreateSessionHandler(svcCtx))
	r.Get("/api/v1/sessions/{id}/stats", GetSessionStatsHandler(svcCtx))
	r.Get("/api/v1/sessions/{id}/batches", ListSessionBatchesHandler(svcCtx))
	r.Delete("/api/v1/sessions/{id}", DeleteSessionHandler(svcCtx))
	r.Post("/api/v1/feedback", RecordFeedbackHandler(svcCtx))
	r.Get("/api/v1/context", GetContextHandler(svcCtx))
	r.Get("/api/v1/settings", GetSettingsHandler(svcCtx))
	r.Put("/api/v1/settings", UpdateSettingsHandler(svcCtx))
	r.Delete("/api/v1/settings", ResetSettingsHandler(svcCtx))
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding %s %s response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func TestHealth(t *testing.T) {
	h := testRouter(newTestContext(t))

	var resp map[string]string
	rec := doJSON(t, h, http.MethodGet, "/api/v1/health", "", &resp)
	if rec.Code != http.StatusOK || resp["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, resp)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := testRouter(newTestContext(t))

	var created map[string]string
	doJSON(t, h, http.MethodPost, "/api/v1/sessions", "", &created)
	id := created["session_id"]
	if id == "" {
		t.Fatal("no session id returned")
	}

	var stats map[string]int
	rec := doJSON(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/stats", "", &stats)
	if rec.Code != http.StatusOK || stats["shown"] != 0 {
		t.Errorf("fresh stats = %d %v", rec.Code, stats)
	}

	doJSON(t, h, http.MethodPost, "/api/v1/feedback",
		`{"session_id":"`+id+`","key":"https://x","rating":5}`, &stats)
	if stats["liked"] != 1 {
		t.Errorf("stats after feedback = %v", stats)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/sessions/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/stats", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted session should 404, got %d", rec.Code)
	}
}

func TestFeedbackValidation(t *testing.T) {
	h := testRouter(newTestContext(t))

	var created map[string]string
	doJSON(t, h, http.MethodPost, "/api/v1/sessions", "", &created)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/feedback",
		`{"session_id":"`+created["session_id"]+`","key":"https://x","rating":7}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range rating = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/feedback",
		`{"session_id":"nope","key":"https://x","rating":3}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	svcCtx := newTestContext(t)
	h := testRouter(svcCtx)

	var resp struct {
		Settings settings.Effective `json:"settings"`
	}
	doJSON(t, h, http.MethodGet, "/api/v1/settings", "", &resp)
	if resp.Settings.RoundSize != 10 {
		t.Errorf("default round_size = %d", resp.Settings.RoundSize)
	}

	doJSON(t, h, http.MethodPut, "/api/v1/settings", `{"round_size":4}`, &resp)
	if resp.Settings.RoundSize != 4 {
		t.Errorf("updated round_size = %d", resp.Settings.RoundSize)
	}
	if resp.Settings.Model == "" {
		t.Error("partial update must keep untouched leaves")
	}

	doJSON(t, h, http.MethodDelete, "/api/v1/settings", "", &resp)
	if resp.Settings.RoundSize != 10 {
		t.Errorf("reset round_size = %d", resp.Settings.RoundSize)
	}
}

func TestRoundRequestSplitsApproaches(t *testing.T) {
	var req roundRequest
	body := `{"session_id":"s1","approaches":" convergent, divergent ,","count":3}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatal(err)
	}

	parsed := req.toRoundRequest()
	if len(parsed.Approaches) != 2 || parsed.Approaches[0] != "convergent" || parsed.Approaches[1] != "divergent" {
		t.Errorf("approaches = %v", parsed.Approaches)
	}
	if parsed.Count != 3 {
		t.Errorf("count = %d", parsed.Count)
	}
}

func TestContextExposesLearnings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(settings.EnvProfileDir, dir)
	doc := "## Likes\n\n### Field Recordings\nRain on tents, mostly.\n"
	if err := os.WriteFile(filepath.Join(dir, "learnings.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	svcCtx, err := svc.NewServiceContext(svc.Config{BaseDir: dir, APIKey: "test-key"}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svcCtx.Close)
	h := testRouter(svcCtx)

	var resp struct {
		Document  string `json:"document"`
		Learnings []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"learnings"`
		Sources []string `json:"sources"`
	}
	doJSON(t, h, http.MethodGet, "/api/v1/context", "", &resp)

	if resp.Document != doc {
		t.Errorf("document = %q", resp.Document)
	}
	if len(resp.Learnings) != 1 || resp.Learnings[0].Title != "Field Recordings" {
		t.Errorf("learnings = %+v", resp.Learnings)
	}
	if len(resp.Sources) == 0 {
		t.Error("default learnings source missing")
	}
}
