package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/jobspec"
	"github.com/limbopet/brain/internal/model"
)

// AnthropicGenerator calls the Anthropic messages endpoint.
type AnthropicGenerator struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client
}

// NewAnthropicGenerator returns a MissingCredentialError when cfg.APIKey is blank.
func NewAnthropicGenerator(cfg config.GeneratorConfig, httpClient *http.Client) (*AnthropicGenerator, error) {
	if err := requireKey(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = "2023-06-01"
	}
	return &AnthropicGenerator{cfg: cfg, httpClient: httpClient}, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
}

func (g *AnthropicGenerator) Generate(ctx context.Context, jobType model.JobType, input map[string]any) (map[string]any, error) {
	spec, err := jobspec.Lookup(jobType)
	if err != nil {
		return nil, err
	}
	user, err := userPayload(jobType, input)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(messagesRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: spec.Temperature,
		System:      spec.SystemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.cfg.APIKey)
	req.Header.Set("anthropic-version", g.cfg.AnthropicVersion)

	respBytes, err := send(g.httpClient, req, "anthropic")
	if err != nil {
		return nil, err
	}

	text, err := messagesText(respBytes)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return finish(text, spec)
}

// messagesText reads content[0].text; the first block must be a text block.
func messagesText(respBytes []byte) (string, error) {
	var resp messagesResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: missing content", ErrMalformedResponse)
	}
	first := resp.Content[0]
	if first.Type != "text" || first.Text == nil {
		return "", fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}
	return *first.Text, nil
}
