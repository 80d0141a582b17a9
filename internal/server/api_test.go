package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/storage"
)

type apiStoreStub struct {
	runsByDate map[string][]storage.Run
	runs       map[string]storage.Run
	windows    map[string][]storage.WindowRecord
	dates      []string
	listLimit  int
}

func (s *apiStoreStub) GetRunsByDate(date string) ([]storage.Run, error) {
	return s.runsByDate[date], nil
}

func (s *apiStoreStub) ListRuns(limit int) ([]storage.Run, error) {
	s.listLimit = limit
	var out []storage.Run
	for _, r := range s.runs {
		out = append(out, r)
	}
	return out, nil
}

func (s *apiStoreStub) GetRun(id string) (storage.Run, error) {
	if run, ok := s.runs[id]; ok {
		return run, nil
	}
	return storage.Run{}, storage.ErrNotFound
}

func (s *apiStoreStub) GetWindows(runID string) ([]storage.WindowRecord, error) {
	return s.windows[runID], nil
}

func (s *apiStoreStub) GetDates() ([]string, error) {
	return s.dates, nil
}

func newStoreStub() *apiStoreStub {
	return &apiStoreStub{
		runsByDate: map[string][]storage.Run{},
		runs:       map[string]storage.Run{},
		windows:    map[string][]storage.WindowRecord{},
	}
}

func serve(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIHealth(t *testing.T) {
	rr := serve(Handler(NewHub(), newStoreStub(), nil), http.MethodGet, "/api/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestAPIRunsByDate(t *testing.T) {
	store := newStoreStub()
	store.runsByDate["2026-02-26"] = []storage.Run{{ID: "r1", StartedAt: time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC), Status: storage.RunCompleted}}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs?date=2026-02-26", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected application/json content-type, got %q", got)
	}
	if !strings.Contains(rr.Body.String(), `"id":"r1"`) {
		t.Fatalf("expected body to contain run id, got %s", rr.Body.String())
	}
}

func TestAPIRunsBadDate(t *testing.T) {
	rr := serve(Handler(NewHub(), newStoreStub(), nil), http.MethodGet, "/api/runs?date=yesterday", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAPIRunsRecentWithLimit(t *testing.T) {
	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1"}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs?limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if store.listLimit != 5 {
		t.Fatalf("expected limit 5, got %d", store.listLimit)
	}
}

func TestAPIRunDetail(t *testing.T) {
	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1", Report: "hello", Generated: true}
	store.windows["r1"] = []storage.WindowRecord{{Ordinal: 1, ChunkPart: "- point", Outcome: "parsed"}}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs/r1", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "windows") || !strings.Contains(rr.Body.String(), "- point") {
		t.Fatalf("expected detail response to contain windows, got %s", rr.Body.String())
	}
}

func TestAPIRunNotFound(t *testing.T) {
	rr := serve(Handler(NewHub(), newStoreStub(), nil), http.MethodGet, "/api/runs/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAPIReportMarkdown(t *testing.T) {
	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1", Report: "# Minutes", Generated: true, Windows: 3, DegradedWindows: 1}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs/r1/report", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("expected markdown content-type, got %q", rr.Header().Get("Content-Type"))
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "# Minutes") || !strings.Contains(body, "1 of 3 windows") {
		t.Fatalf("expected report with degraded footer, got %q", body)
	}
}

func TestAPIReportDocx(t *testing.T) {
	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1", Category: "meeting", Report: "# Minutes\n- **Owner**: Ana", Generated: true}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs/r1/report?format=docx", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "r1-report.docx") {
		t.Fatalf("expected attachment name, got %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatal("expected a zip body")
	}
}

func TestAPIReportUnavailable(t *testing.T) {
	store := newStoreStub()
	store.runs["live"] = storage.Run{ID: "live", Status: storage.RunStopped}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs/live/report", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for stopped run, got %d", rr.Code)
	}

	store.runs["live"] = storage.Run{ID: "live", Generated: true}
	rr = serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/runs/live/report?format=pdf", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown format, got %d", rr.Code)
	}
}

func TestAPIAudioRange(t *testing.T) {
	root := t.TempDir()
	audioFile := "audio.mp3"
	if err := os.WriteFile(filepath.Join(root, audioFile), []byte(strings.Repeat("a", 4096)), 0o644); err != nil {
		t.Fatalf("write audio file failed: %v", err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1", AudioPath: audioFile}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/r1/audio", nil)
	req.Header.Set("Range", "bytes=0-1023")
	rr := httptest.NewRecorder()
	Handler(NewHub(), store, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("expected status 206, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Range") == "" {
		t.Fatalf("expected Content-Range header")
	}
}

func TestAPIAudioPathTraversalBlocked(t *testing.T) {
	store := newStoreStub()
	store.runs["r1"] = storage.Run{ID: "r1", AudioPath: "../../etc/passwd"}
	h := Handler(NewHub(), store, nil)

	for _, target := range []string{
		"/api/runs/%2e%2e%2f%2e%2e%2fetc%2fpasswd/audio",
		"/api/runs/r1/audio",
	} {
		rr := serve(h, http.MethodGet, target, nil)
		if rr.Code != http.StatusForbidden && rr.Code != http.StatusNotFound {
			t.Fatalf("expected forbidden/notfound for %s, got %d", target, rr.Code)
		}
	}
}

func TestAPIDates(t *testing.T) {
	store := newStoreStub()
	store.dates = []string{"2026-02-26", "2026-02-25"}

	rr := serve(Handler(NewHub(), store, nil), http.MethodGet, "/api/dates", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "2026-02-26") {
		t.Fatalf("expected date in response, got %s", rr.Body.String())
	}
}

func TestAPISubmit(t *testing.T) {
	var got SubmitRequest
	submit := func(req SubmitRequest) (string, error) {
		got = req
		return "run-42", nil
	}

	body := strings.NewReader(`{"transcript":"we met and agreed","category":"call","source":"api"}`)
	rr := serve(Handler(NewHub(), newStoreStub(), submit), http.MethodPost, "/api/runs", body)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "run-42") {
		t.Fatalf("expected run id in response, got %s", rr.Body.String())
	}
	if got.Category != "call" || got.Transcript != "we met and agreed" {
		t.Fatalf("unexpected submit request %+v", got)
	}
}

func TestAPISubmitValidation(t *testing.T) {
	submit := func(SubmitRequest) (string, error) { return "x", nil }
	h := Handler(NewHub(), newStoreStub(), submit)

	cases := map[string]string{
		"invalid json":     `{"transcript":`,
		"empty transcript": `{"transcript":"   "}`,
		"unknown category": `{"transcript":"hi","category":"podcast"}`,
	}
	for name, body := range cases {
		rr := serve(h, http.MethodPost, "/api/runs", strings.NewReader(body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", name, rr.Code)
		}
	}

	rr := serve(h, http.MethodPost, "/api/runs", strings.NewReader(`{"transcript":"hi","category":"auto"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected auto category to be accepted, got %d", rr.Code)
	}
}

func TestAPISubmitNotConfigured(t *testing.T) {
	rr := serve(Handler(NewHub(), newStoreStub(), nil), http.MethodPost, "/api/runs", strings.NewReader(`{"transcript":"hi"}`))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestAPISubmitFailure(t *testing.T) {
	submit := func(SubmitRequest) (string, error) { return "", errors.New("db locked") }
	rr := serve(Handler(NewHub(), newStoreStub(), submit), http.MethodPost, "/api/runs", strings.NewReader(`{"transcript":"hi"}`))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
