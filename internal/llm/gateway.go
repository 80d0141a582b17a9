package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrGeneration is the single failure signal callers of Gateway see.
// Transport, status, decode and empty-body errors all wrap it.
var ErrGeneration = errors.New("text generation failed")

// Gateway sends one prompt per call to a bound model. It keeps no
// conversation state and never retries. Calls are spaced by at least the
// configured interval.
type Gateway struct {
	client  Client
	model   string
	system  string
	limiter *rate.Limiter
}

func NewGateway(client Client, model string, interval time.Duration) *Gateway {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gateway{client: client, model: model, limiter: rate.NewLimiter(limit, 1)}
}

// WithSystem sets the system instruction sent with every prompt. Call it
// before the gateway is shared.
func (g *Gateway) WithSystem(system string) *Gateway {
	g.system = strings.TrimSpace(system)
	return g
}

func (g *Gateway) Model() string {
	return g.model
}

func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	start := time.Now()
	text, err := g.client.Complete(ctx, Request{System: g.system, Prompt: prompt})
	if err != nil {
		slog.Debug("generation call failed", "model", g.model, "elapsed", time.Since(start), "error", err)
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	slog.Debug("generation call done", "model", g.model, "elapsed", time.Since(start), "chars", len(text))
	return text, nil
}
