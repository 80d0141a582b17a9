package summary

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// Reduce shrinks history until its joined size fits FinalThreshold. Each
// pass groups consecutive entries up to ReductionGroupTokens and replaces
// every group with a summary of about ContextTokens. It returns history
// unchanged when it already fits, and a best-effort list when the pass cap
// is reached. A pass that does not shrink the total is discarded.
func (s *Summarizer) Reduce(ctx context.Context, history []string) []string {
	total := s.est.Count(JoinHistory(history))
	if total <= s.opts.FinalThreshold {
		return history
	}

	current := history
	for pass := 1; pass <= s.opts.ReductionMaxPasses; pass++ {
		next := s.reducePass(ctx, current)
		nextTotal := s.est.Count(JoinHistory(next))
		slog.Info("history reduction pass", "pass", pass, "entries", len(next), "tokens_before", total, "tokens_after", nextTotal)

		if nextTotal <= s.opts.FinalThreshold {
			return next
		}
		if nextTotal >= total {
			slog.Warn("history reduction stalled, keeping previous history", "pass", pass, "tokens", total, "pass_tokens", nextTotal, "threshold", s.opts.FinalThreshold)
			return current
		}
		current, total = next, nextTotal
	}

	slog.Warn("history reduction hit pass limit, continuing with oversized history", "passes", s.opts.ReductionMaxPasses, "tokens", total, "threshold", s.opts.FinalThreshold)
	return current
}

func (s *Summarizer) reducePass(ctx context.Context, history []string) []string {
	var out []string
	var group []string
	groupTokens := 0

	flush := func() {
		if len(group) == 0 {
			return
		}
		out = append(out, s.summarizeGroup(ctx, group))
		group = nil
		groupTokens = 0
	}

	for _, entry := range history {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		n := s.est.Count(entry)
		if len(group) > 0 && groupTokens+n > s.opts.ReductionGroupTokens {
			flush()
		}
		group = append(group, entry)
		groupTokens += n
	}
	flush()

	return out
}

// summarizeGroup falls back to the group's own text when generation fails.
func (s *Summarizer) summarizeGroup(ctx context.Context, group []string) string {
	text := JoinHistory(group)
	p := prompt.Fill(s.prompts.Reduce(), map[string]string{
		"target_tokens": itoa(s.opts.ContextTokens),
		"text":          text,
	})

	out, err := s.gen.Generate(ctx, p)
	if err != nil {
		slog.Warn("group reduction failed, keeping group text", "entries", len(group), "error", err)
		return text
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return text
	}
	return out
}
