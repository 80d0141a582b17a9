package summary

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// Finalize writes the final report from an already reduced history. When
// generation fails the combined history itself is returned with
// fallback=true. An empty history produces an empty report without calling
// the model.
func (s *Summarizer) Finalize(ctx context.Context, history []string, category prompt.Category) (report string, fallback bool) {
	combined := JoinHistory(history)
	if combined == "" {
		return "", false
	}

	p := prompt.Fill(s.prompts.Final(category), map[string]string{"combined_history": combined})
	out, err := s.gen.Generate(ctx, p)
	if err != nil || strings.TrimSpace(out) == "" {
		slog.Warn("final report generation failed, using combined history", "category", category, "error", err)
		return combined, true
	}
	return strings.TrimSpace(out), false
}
