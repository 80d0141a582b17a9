package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cc.HTTPOptions.BaseURL = opts.baseURL
	}
	if opts.httpClient != nil {
		cc.HTTPClient = opts.httpClient
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := &geminiClient{client: client, model: model}
	if opts.maxTokens > 0 {
		c.config.MaxOutputTokens = int32(opts.maxTokens)
	}
	return c, nil
}

// geminiRequest maps a Request onto one user turn plus an optional system
// instruction.
func geminiRequest(req Request, base genai.GenerateContentConfig) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := base
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, &config
}

func (c *geminiClient) Complete(ctx context.Context, req Request) (string, error) {
	contents, config := geminiRequest(req, c.config)

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return text, nil
}
