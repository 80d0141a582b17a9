package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/storage"
)

var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RunStore interface {
	GetRunsByDate(date string) ([]storage.Run, error)
	ListRuns(limit int) ([]storage.Run, error)
	GetRun(id string) (storage.Run, error)
	GetWindows(runID string) ([]storage.WindowRecord, error)
	GetDates() ([]string, error)
}

type SubmitRequest struct {
	Transcript string `json:"transcript"`
	Category   string `json:"category"`
	Source     string `json:"source"`
}

// SubmitFunc starts summarizing a transcript in the background and returns
// the new run's ID.
type SubmitFunc func(req SubmitRequest) (string, error)

type api struct {
	store  RunStore
	submit SubmitFunc
}

func registerAPIRoutes(r chi.Router, store RunStore, submit SubmitFunc) {
	a := &api{store: store, submit: submit}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/dates", a.handleDates)
		r.Get("/runs", a.handleListRuns)
		r.Post("/runs", a.handleSubmit)
		r.Get("/runs/{id}", a.handleGetRun)
		r.Get("/runs/{id}/report", a.handleReport)
		r.Get("/runs/{id}/audio", a.handleAudio)
	})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "neuralmeet",
	})
}

func (a *api) handleDates(w http.ResponseWriter, _ *http.Request) {
	dates, err := a.store.GetDates()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}

func (a *api) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var (
		runs []storage.Run
		err  error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		if _, perr := time.Parse("2006-01-02", date); perr != nil {
			writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		runs, err = a.store.GetRunsByDate(date)
	} else {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, convErr := strconv.Atoi(l); convErr == nil && n > 0 {
				limit = n
			}
		}
		runs, err = a.store.ListRuns(limit)
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (a *api) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}

	windows, err := a.store.GetWindows(run.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run windows: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"windows": windows,
	})
}

func (a *api) handleReport(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	if !run.Generated {
		writeJSONError(w, http.StatusNotFound, "report not available")
		return
	}

	text := run.ReportMarkdown()

	switch r.URL.Query().Get("format") {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
	case "docx":
		a.serveDocx(w, r, run, text)
	default:
		writeJSONError(w, http.StatusBadRequest, "format must be md or docx")
	}
}

func (a *api) serveDocx(w http.ResponseWriter, r *http.Request, run storage.Run, text string) {
	tmp, err := os.CreateTemp("", "neuralmeet-*.docx")
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("create docx: %v", err))
		return
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if err := storage.WriteDocx(run.Title(), text, path); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("open docx: %v", err))
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat docx: %v", err))
		return
	}

	name := run.ID + "-report.docx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (a *api) handleAudio(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}
	if run.AudioPath == "" {
		writeJSONError(w, http.StatusNotFound, "audio not available")
		return
	}

	cleanPath := filepath.Clean(run.AudioPath)
	if cleanPath == "" || cleanPath == "." || cleanPath == ".." || strings.Contains(cleanPath, "..") {
		writeJSONError(w, http.StatusForbidden, "invalid audio path")
		return
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "audio file not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
	http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
}

func (a *api) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if a.submit == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "submissions disabled")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeJSONError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	if req.Category != "" && req.Category != "auto" && !prompt.Valid(req.Category) {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", req.Category))
		return
	}

	id, err := a.submit(req)
	if err != nil {
		slog.Error("submit transcript failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "submit failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (a *api) lookupRun(w http.ResponseWriter, r *http.Request) (storage.Run, bool) {
	id := chi.URLParam(r, "id")
	if !runIDPattern.MatchString(id) {
		writeJSONError(w, http.StatusForbidden, "invalid run id")
		return storage.Run{}, false
	}

	run, err := a.store.GetRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return storage.Run{}, false
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return storage.Run{}, false
	}
	return run, true
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
