package summary

import (
	"context"
	"errors"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// Mode names the driver that produced a run.
type Mode string

const (
	ModeTranscript Mode = "transcript"
	ModeFile       Mode = "file"
	ModeLive       Mode = "live"
)

type RunInfo struct {
	ID        string
	Category  prompt.Category
	Mode      Mode
	Source    string
	StartedAt time.Time
}

// Window is one completed window. ParsedWindow.Context is the context
// after the window.
type Window struct {
	ParsedWindow
	Ordinal       int
	Transcript    string
	ContextBefore string
	CompletedAt   time.Time
}

type Report struct {
	RunID    string
	Category prompt.Category
	Text     string
	// Generated is false when the run stopped before a final report was
	// attempted.
	Generated       bool
	Fallback        bool
	Reduced         bool
	Windows         int
	DegradedWindows int
	RawWindows      int
	// Unprocessed holds transcript text that never reached a window.
	Unprocessed string
	FinishedAt  time.Time
}

// Sink receives run progress. An error from a sink is fatal to the run.
type Sink interface {
	RunStarted(ctx context.Context, run RunInfo) error
	WindowCompleted(ctx context.Context, run RunInfo, w Window) error
	RunFinished(ctx context.Context, run RunInfo, r Report) error
}

// Sinks fans every event out to each sink in order.
type Sinks []Sink

func (ss Sinks) RunStarted(ctx context.Context, run RunInfo) error {
	var errs []error
	for _, s := range ss {
		errs = append(errs, s.RunStarted(ctx, run))
	}
	return errors.Join(errs...)
}

func (ss Sinks) WindowCompleted(ctx context.Context, run RunInfo, w Window) error {
	var errs []error
	for _, s := range ss {
		errs = append(errs, s.WindowCompleted(ctx, run, w))
	}
	return errors.Join(errs...)
}

func (ss Sinks) RunFinished(ctx context.Context, run RunInfo, r Report) error {
	var errs []error
	for _, s := range ss {
		errs = append(errs, s.RunFinished(ctx, run, r))
	}
	return errors.Join(errs...)
}

type NopSink struct{}

func (NopSink) RunStarted(context.Context, RunInfo) error              { return nil }
func (NopSink) WindowCompleted(context.Context, RunInfo, Window) error { return nil }
func (NopSink) RunFinished(context.Context, RunInfo, Report) error     { return nil }
