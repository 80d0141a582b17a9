package summary

import (
	"context"
	"log/slog"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// ProcessWindow summarizes one transcript window given the current rolling
// context. It never fails: a failed or blank call yields OutcomeEmpty and a
// response without the delimiter yields OutcomeRaw, both keeping the
// incoming context.
func (s *Summarizer) ProcessWindow(ctx context.Context, windowText, rollingContext string, category prompt.Category) ParsedWindow {
	p := prompt.Fill(s.prompts.Chunk(category), map[string]string{
		"chunk_text":      windowText,
		"context_summary": rollingContext,
		"summary_tokens":  itoa(s.opts.SummaryTokens),
		"context_tokens":  itoa(s.opts.ContextTokens),
	})

	raw, err := s.gen.Generate(ctx, p)
	if err != nil {
		slog.Warn("window summary unavailable, keeping previous context", "category", category, "error", err)
		return ParsedWindow{Outcome: OutcomeEmpty, Context: rollingContext}
	}

	parsed := ParseResponse(raw, rollingContext)
	switch parsed.Outcome {
	case OutcomeEmpty:
		slog.Warn("window summary was blank, keeping previous context", "category", category)
	case OutcomeRaw:
		slog.Warn("window response missing delimiter, using raw text as chunk part", "category", category, "chars", len(parsed.ChunkPart))
	}
	return parsed
}
