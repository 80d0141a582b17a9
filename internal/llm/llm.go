// Package llm talks to text-generation backends. Each provider adapter
// implements Client; Gateway wraps one Client for the summarization
// pipeline.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Request is one self-contained generation call. Providers keep no
// conversation state, so everything the model needs is in Prompt.
type Request struct {
	System string
	Prompt string
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Providers lists the accepted provider prefixes of a model string.
var Providers = []string{"ollama", "openai", "anthropic", "gemini"}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	maxTokens  int64
	httpClient *http.Client
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the response length for providers that require a cap.
func WithMaxTokens(n int64) Option {
	return func(o *clientOptions) {
		o.maxTokens = n
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// ParseModel splits "provider/model". Only the first slash separates, so
// model names like "ollama/hf.co/org/model:q4" keep their own slashes.
func ParseModel(model string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(strings.TrimSpace(model), "/")
	if !ok || provider == "" || modelName == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return strings.ToLower(provider), modelName, nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{maxTokens: 8192}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	switch provider {
	case "ollama":
		return newOllamaClient(model, o)
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are %s", provider, strings.Join(Providers, ", "))
	}
}
