package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// Run holds the state of one summarization run: its rolling context and
// window history. A Run is driven by a single goroutine.
type Run struct {
	s    *Summarizer
	info RunInfo
	sink Sink

	rolling     string
	history     []string
	windows     int
	degraded    int
	raw         int
	unprocessed string
	done        bool
}

// StartRun creates a run and announces it to sink. The rolling context is
// seeded with the category label.
func (s *Summarizer) StartRun(ctx context.Context, info RunInfo, sink Sink) (*Run, error) {
	if sink == nil {
		sink = NopSink{}
	}
	info.Category = prompt.ParseCategory(string(info.Category))
	if info.StartedAt.IsZero() {
		info.StartedAt = s.now()
	}

	r := &Run{s: s, info: info, sink: sink, rolling: string(info.Category)}
	if err := sink.RunStarted(context.WithoutCancel(ctx), info); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	slog.Info("run started", "run", info.ID, "category", info.Category, "mode", info.Mode, "source", info.Source)
	return r, nil
}

func (r *Run) Info() RunInfo {
	return r.info
}

func (r *Run) Context() string {
	return r.rolling
}

// History returns a copy of the window history, oldest first.
func (r *Run) History() []string {
	return append([]string(nil), r.history...)
}

// Window summarizes one window, appends its chunk part to the history and
// replaces the rolling context. The only error is a sink failure.
func (r *Run) Window(ctx context.Context, text string) (Window, error) {
	if r.done {
		return Window{}, fmt.Errorf("run %s already finished", r.info.ID)
	}

	before := r.rolling
	parsed := r.s.ProcessWindow(ctx, text, before, r.info.Category)
	r.windows++

	switch parsed.Outcome {
	case OutcomeEmpty:
		r.degraded++
		if !r.s.opts.DropFailedWindows {
			r.history = append(r.history, "")
		}
	case OutcomeRaw:
		r.raw++
		r.history = append(r.history, parsed.ChunkPart)
	default:
		r.history = append(r.history, parsed.ChunkPart)
	}
	r.rolling = parsed.Context

	w := Window{
		ParsedWindow:  parsed,
		Ordinal:       r.windows,
		Transcript:    text,
		ContextBefore: before,
		CompletedAt:   r.s.now(),
	}
	slog.Info("window completed", "run", r.info.ID, "window", w.Ordinal, "outcome", parsed.Outcome, "history", len(r.history))

	if err := r.sink.WindowCompleted(context.WithoutCancel(ctx), r.info, w); err != nil {
		return w, fmt.Errorf("record window %d: %w", w.Ordinal, err)
	}
	return w, nil
}

// MarkUnprocessed records transcript text that will never be windowed so
// the run's output still carries it.
func (r *Run) MarkUnprocessed(text string) {
	r.unprocessed = strings.TrimSpace(text)
}

// Finish reduces the history if needed, generates the final report and
// closes the run.
func (r *Run) Finish(ctx context.Context) (Report, error) {
	if r.done {
		return Report{}, fmt.Errorf("run %s already finished", r.info.ID)
	}

	history := r.History()
	reduced := r.s.Reduce(ctx, history)
	text, fallback := r.s.Finalize(ctx, reduced, r.info.Category)

	rep := r.report()
	rep.Text = text
	rep.Generated = true
	rep.Fallback = fallback
	rep.Reduced = r.s.est.Count(JoinHistory(history)) > r.s.opts.FinalThreshold
	return r.close(ctx, rep)
}

// Stop closes the run without generating a final report.
func (r *Run) Stop(ctx context.Context) (Report, error) {
	if r.done {
		return Report{}, fmt.Errorf("run %s already finished", r.info.ID)
	}
	return r.close(ctx, r.report())
}

func (r *Run) report() Report {
	return Report{
		RunID:           r.info.ID,
		Category:        r.info.Category,
		Windows:         r.windows,
		DegradedWindows: r.degraded,
		RawWindows:      r.raw,
		Unprocessed:     r.unprocessed,
	}
}

func (r *Run) close(ctx context.Context, rep Report) (Report, error) {
	r.done = true
	rep.FinishedAt = r.s.now()
	if rep.Unprocessed != "" {
		slog.Warn("run ended with unprocessed transcript", "run", r.info.ID, "chars", len(rep.Unprocessed))
	}
	slog.Info("run finished", "run", r.info.ID, "windows", rep.Windows, "degraded", rep.DegradedWindows, "generated", rep.Generated, "fallback", rep.Fallback)

	if err := r.sink.RunFinished(context.WithoutCancel(ctx), r.info, rep); err != nil {
		return rep, fmt.Errorf("record run finish: %w", err)
	}
	return rep, nil
}
