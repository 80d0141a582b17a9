package summary

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
)

// Router guesses a recording's category from a sample of its transcript.
type Router struct {
	gen     Generator
	prompts *prompt.Provider
}

func NewRouter(gen Generator, prompts *prompt.Provider) *Router {
	return &Router{gen: gen, prompts: prompts}
}

func SampleTranscript(transcript string, firstN, midN, lastN int) string {
	words := strings.Fields(transcript)
	total := len(words)

	if total <= firstN+midN+lastN {
		return transcript
	}

	first := strings.Join(words[:firstN], " ")
	midStart := (total - midN) / 2
	mid := strings.Join(words[midStart:midStart+midN], " ")
	last := strings.Join(words[total-lastN:], " ")

	return first + "\n\n[...]\n\n" + mid + "\n\n[...]\n\n" + last
}

// Select asks the model once and falls back to Meeting on any failure or
// unrecognised answer.
func (r *Router) Select(ctx context.Context, transcript string) prompt.Category {
	if strings.TrimSpace(transcript) == "" {
		return prompt.Meeting
	}

	names := make([]string, len(prompt.Categories))
	for i, c := range prompt.Categories {
		names[i] = string(c)
	}
	p := prompt.Fill(r.prompts.Route(), map[string]string{
		"excerpt":    SampleTranscript(transcript, 300, 200, 200),
		"categories": strings.Join(names, ", "),
	})

	result, err := r.gen.Generate(ctx, p)
	if err != nil {
		slog.Warn("router: falling back to meeting", "reason", "generation failed", "error", err)
		return prompt.Meeting
	}

	chosen := strings.Trim(strings.ToLower(strings.TrimSpace(result)), ".*`\"'")
	if prompt.Valid(chosen) {
		return prompt.ParseCategory(chosen)
	}

	slog.Warn("router: falling back to meeting", "reason", "unrecognised category", "chosen", result)
	return prompt.Meeting
}
