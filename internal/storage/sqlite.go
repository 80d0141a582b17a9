package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

const (
	RunActive    = "active"
	RunCompleted = "completed"
	RunStopped   = "stopped"
)

var ErrNotFound = errors.New("not found")

type Run struct {
	ID              string     `json:"id"`
	Category        string     `json:"category"`
	Mode            string     `json:"mode"`
	Source          string     `json:"source"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Report          string     `json:"report"`
	Generated       bool       `json:"generated"`
	Fallback        bool       `json:"fallback"`
	Reduced         bool       `json:"reduced"`
	Windows         int        `json:"windows"`
	DegradedWindows int        `json:"degraded_windows"`
	RawWindows      int        `json:"raw_windows"`
	Unprocessed     string     `json:"unprocessed,omitempty"`
	AudioPath       string     `json:"audio_path,omitempty"`
}

type WindowRecord struct {
	Ordinal       int       `json:"ordinal"`
	Outcome       string    `json:"outcome"`
	Transcript    string    `json:"transcript"`
	ContextBefore string    `json:"context_before"`
	ChunkPart     string    `json:"chunk_part"`
	Context       string    `json:"context"`
	CompletedAt   time.Time `json:"completed_at"`
}

// SQLiteStore persists runs and their windows. It is also a summary.Sink.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "neuralmeet.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			mode TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			report TEXT NOT NULL DEFAULT '',
			generated INTEGER NOT NULL DEFAULT 0,
			fallback INTEGER NOT NULL DEFAULT 0,
			reduced INTEGER NOT NULL DEFAULT 0,
			windows INTEGER NOT NULL DEFAULT 0,
			degraded_windows INTEGER NOT NULL DEFAULT 0,
			raw_windows INTEGER NOT NULL DEFAULT 0,
			unprocessed TEXT NOT NULL DEFAULT '',
			audio_path TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS windows (
			run_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			transcript TEXT NOT NULL,
			context_before TEXT NOT NULL,
			chunk_part TEXT NOT NULL,
			context TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			PRIMARY KEY(run_id, ordinal),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create windows table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_claims (
			content_hash TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create transcript_claims table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)"); err != nil {
		return fmt.Errorf("create runs index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) RunStarted(ctx context.Context, info summary.RunInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return errors.New("run id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, category, mode, source, status, started_at) VALUES(?, ?, ?, ?, ?, ?)`,
		info.ID,
		string(info.Category),
		string(info.Mode),
		info.Source,
		RunActive,
		info.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", info.ID, err)
	}
	return nil
}

func (s *SQLiteStore) WindowCompleted(ctx context.Context, info summary.RunInfo, w summary.Window) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO windows(run_id, ordinal, outcome, transcript, context_before, chunk_part, context, completed_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID,
		w.Ordinal,
		w.Outcome.String(),
		w.Transcript,
		w.ContextBefore,
		w.ChunkPart,
		w.Context,
		w.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append window %d for run %s: %w", w.Ordinal, info.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RunFinished(ctx context.Context, info summary.RunInfo, r summary.Report) error {
	status := RunStopped
	if r.Generated {
		status = RunCompleted
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, report = ?, generated = ?, fallback = ?, reduced = ?,
		 windows = ?, degraded_windows = ?, raw_windows = ?, unprocessed = ? WHERE id = ?`,
		status,
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Text,
		r.Generated,
		r.Fallback,
		r.Reduced,
		r.Windows,
		r.DegradedWindows,
		r.RawWindows,
		r.Unprocessed,
		info.ID,
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", info.ID, err)
	}
	return expectRow(res, "complete run")
}

func (s *SQLiteStore) SetAudioPath(id, path string) error {
	res, err := s.db.Exec(`UPDATE runs SET audio_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("set audio path for run %s: %w", id, err)
	}
	return expectRow(res, "set audio path")
}

const runColumns = `id, category, mode, source, status, started_at, finished_at, report, generated, fallback,
	reduced, windows, degraded_windows, raw_windows, unprocessed, audio_path`

func (s *SQLiteStore) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run %s: %w", id, err)
	}
	return run, nil
}

func (s *SQLiteStore) GetRunsByDate(date string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs WHERE substr(started_at, 1, 10) = ? ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM runs ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetWindows(runID string) ([]WindowRecord, error) {
	rows, err := s.db.Query(
		`SELECT ordinal, outcome, transcript, context_before, chunk_part, context, completed_at
		 FROM windows
		 WHERE run_id = ?
		 ORDER BY ordinal ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query windows for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	windows := make([]WindowRecord, 0, 16)
	for rows.Next() {
		var w WindowRecord
		var ts string
		if err := rows.Scan(&w.Ordinal, &w.Outcome, &w.Transcript, &w.ContextBefore, &w.ChunkPart, &w.Context, &ts); err != nil {
			return nil, fmt.Errorf("scan window for run %s: %w", runID, err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse window timestamp for run %s: %w", runID, err)
		}
		w.CompletedAt = parsed
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window rows for run %s: %w", runID, err)
	}

	return windows, nil
}

// ClaimTranscript records that content with this hash is being summarized
// by runID. It reports false when the content was already claimed.
func (s *SQLiteStore) ClaimTranscript(hash, runID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO transcript_claims(content_hash, run_id) VALUES(?, ?)`,
		hash,
		runID,
	)
	if err != nil {
		return false, fmt.Errorf("claim transcript %s: %w", hash, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim transcript rows affected: %w", err)
	}

	return rows > 0, nil
}

func expectRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(
		&run.ID, &run.Category, &run.Mode, &run.Source, &run.Status, &startedAt, &finishedAt,
		&run.Report, &run.Generated, &run.Fallback, &run.Reduced,
		&run.Windows, &run.DegradedWindows, &run.RawWindows, &run.Unprocessed, &run.AudioPath,
	); err != nil {
		return Run{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = parsedStart

	if finishedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &parsedEnd
	}

	return run, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	runs := make([]Run, 0, 16)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs rows: %w", err)
	}

	return runs, nil
}
