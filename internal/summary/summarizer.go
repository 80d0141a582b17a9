// Package summary turns an unbounded transcript into a bounded report by
// summarizing it window by window, carrying a rolling context forward,
// reducing the collected history when it grows too large and collapsing it
// into one final document.
package summary

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/tokens"
)

// Generator produces text for a prompt. *llm.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	ChunkTokens          int
	SummaryTokens        int
	ContextTokens        int
	FinalThreshold       int
	ReductionGroupTokens int
	ReductionMaxPasses   int
	// DropFailedWindows leaves failed windows out of the history instead
	// of recording an empty entry.
	DropFailedWindows bool
}

func DefaultOptions() Options {
	return Options{
		ChunkTokens:          3000,
		SummaryTokens:        500,
		ContextTokens:        300,
		FinalThreshold:       4000,
		ReductionGroupTokens: 2000,
		ReductionMaxPasses:   5,
	}
}

type Summarizer struct {
	gen     Generator
	prompts *prompt.Provider
	est     tokens.Estimator
	opts    Options
	now     func() time.Time
}

func New(gen Generator, prompts *prompt.Provider, est tokens.Estimator, opts Options) *Summarizer {
	def := DefaultOptions()
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = def.ChunkTokens
	}
	if opts.SummaryTokens <= 0 {
		opts.SummaryTokens = def.SummaryTokens
	}
	if opts.ContextTokens <= 0 {
		opts.ContextTokens = def.ContextTokens
	}
	if opts.FinalThreshold <= 0 {
		opts.FinalThreshold = def.FinalThreshold
	}
	if opts.ReductionGroupTokens <= 0 {
		opts.ReductionGroupTokens = def.ReductionGroupTokens
	}
	if opts.ReductionMaxPasses <= 0 {
		opts.ReductionMaxPasses = def.ReductionMaxPasses
	}
	return &Summarizer{gen: gen, prompts: prompts, est: est, opts: opts, now: time.Now}
}

// Summarize runs the whole batch pipeline over a finished transcript.
// If ctx is cancelled between windows the run stops without a final
// report, the remaining text is recorded as unprocessed, and ctx.Err() is
// returned together with the partial report.
func (s *Summarizer) Summarize(ctx context.Context, info RunInfo, transcript string, sink Sink) (Report, error) {
	run, err := s.StartRun(ctx, info, sink)
	if err != nil {
		return Report{}, err
	}

	chunks := Split(transcript, s.opts.ChunkTokens, s.est)
	acc := NewAccumulator(1)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			run.MarkUnprocessed(strings.Join(chunks[i:], "\n"))
			rep, stopErr := run.Stop(context.WithoutCancel(ctx))
			if stopErr != nil {
				return rep, stopErr
			}
			return rep, ctx.Err()
		}
		window, ok := acc.Add(chunk, 1)
		if !ok {
			continue
		}
		if _, err := run.Window(ctx, window); err != nil {
			return Report{}, err
		}
	}

	return run.Finish(ctx)
}

// JoinHistory concatenates the non-blank history entries, oldest first,
// separated by blank lines.
func JoinHistory(history []string) string {
	parts := make([]string, 0, len(history))
	for _, h := range history {
		if t := strings.TrimSpace(h); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
