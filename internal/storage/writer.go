package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

// Journal appends one Markdown section per completed window to
// <dir>/<run>-journal.md.
type Journal struct {
	dir string
	mu  sync.Mutex
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

func (j *Journal) Path(runID string) string {
	return filepath.Join(j.dir, runID+"-journal.md")
}

func (j *Journal) RunStarted(_ context.Context, info summary.RunInfo) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", j.dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s journal %s\n\n", titleCase(string(info.Category)), info.ID)
	fmt.Fprintf(&b, "- Started: %s\n", info.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Mode: %s\n", info.Mode)
	if info.Source != "" {
		fmt.Fprintf(&b, "- Source: %s\n", info.Source)
	}
	b.WriteString("\n")

	path := j.Path(info.ID)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (j *Journal) WindowCompleted(_ context.Context, info summary.RunInfo, w summary.Window) error {
	var b strings.Builder
	fmt.Fprintf(&b, "## Window %d\n\n", w.Ordinal)
	fmt.Fprintf(&b, "**Context before:** %s\n\n", strings.TrimSpace(w.ContextBefore))
	switch w.Outcome {
	case summary.OutcomeEmpty:
		b.WriteString("_Summary unavailable for this window._\n\n")
	default:
		b.WriteString(strings.TrimSpace(w.ChunkPart))
		b.WriteString("\n\n")
	}
	return j.append(info.ID, b.String())
}

func (j *Journal) RunFinished(_ context.Context, info summary.RunInfo, r summary.Report) error {
	if r.Unprocessed == "" {
		return nil
	}
	return j.append(info.ID, "## Unprocessed transcript\n\n"+r.Unprocessed+"\n")
}

func (j *Journal) append(runID, section string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.Path(runID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(section); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReportWriter writes the final report of every generated run, and a
// .docx copy when enabled.
type ReportWriter struct {
	dir  string
	docx bool
}

func NewReportWriter(dir string, docx bool) *ReportWriter {
	return &ReportWriter{dir: dir, docx: docx}
}

func (w *ReportWriter) Path(runID string) string {
	return filepath.Join(w.dir, runID+"-report.md")
}

func (w *ReportWriter) RunStarted(context.Context, summary.RunInfo) error { return nil }

func (w *ReportWriter) WindowCompleted(context.Context, summary.RunInfo, summary.Window) error {
	return nil
}

func (w *ReportWriter) RunFinished(_ context.Context, info summary.RunInfo, r summary.Report) error {
	if !r.Generated {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	text := ReportMarkdown(r)
	if err := WriteReport(w.Path(info.ID), text); err != nil {
		return err
	}
	if w.docx {
		path := filepath.Join(w.dir, info.ID+"-report.docx")
		if err := WriteDocx(ReportTitle(info), text, path); err != nil {
			return err
		}
	}
	return nil
}

// WriteReport replaces path with text.
func WriteReport(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReportMarkdown is the report text plus a footer noting degraded output.
func ReportMarkdown(r summary.Report) string {
	text := strings.TrimSpace(r.Text)
	var notes []string
	if r.DegradedWindows > 0 {
		notes = append(notes, fmt.Sprintf("%d of %d windows could not be summarized.", r.DegradedWindows, r.Windows))
	}
	if r.RawWindows == 1 {
		notes = append(notes, "1 window used the model's raw response.")
	} else if r.RawWindows > 1 {
		notes = append(notes, fmt.Sprintf("%d windows used the model's raw response.", r.RawWindows))
	}
	if r.Fallback {
		notes = append(notes, "The final report could not be generated; the window summaries are shown instead.")
	}
	if r.Unprocessed != "" {
		notes = append(notes, "The last part of the transcript was not summarized.")
	}
	if len(notes) == 0 {
		return text + "\n"
	}
	return text + "\n\n---\n\n_" + strings.Join(notes, " ") + "_\n"
}

func ReportTitle(info summary.RunInfo) string {
	title := titleCase(string(info.Category)) + " report"
	if !info.StartedAt.IsZero() {
		title += " " + info.StartedAt.Format("2006-01-02 15:04")
	}
	return title
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ReportMarkdown renders the stored report with its degraded-output footer.
func (r Run) ReportMarkdown() string {
	return ReportMarkdown(summary.Report{
		Text:            r.Report,
		Fallback:        r.Fallback,
		Windows:         r.Windows,
		DegradedWindows: r.DegradedWindows,
		Unprocessed:     r.Unprocessed,
	})
}

func (r Run) Title() string {
	return ReportTitle(summary.RunInfo{Category: prompt.Category(r.Category), StartedAt: r.StartedAt})
}
