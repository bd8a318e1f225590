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

// OpenAICompatibleGenerator calls a /chat/completions endpoint. It serves the
// openai, xai and proxy modes, which differ only in base URL, model and key.
type OpenAICompatibleGenerator struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client
}

// NewOpenAICompatibleGenerator returns a MissingCredentialError when cfg.APIKey is blank.
func NewOpenAICompatibleGenerator(cfg config.GeneratorConfig, httpClient *http.Client) (*OpenAICompatibleGenerator, error) {
	if err := requireKey(cfg); err != nil {
		return nil, err
	}
	return &OpenAICompatibleGenerator{cfg: cfg, httpClient: httpClient}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse mirrors the relevant fields of a chat completion. Content is a
// pointer so a null message is distinguishable from an empty one.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAICompatibleGenerator) Generate(ctx context.Context, jobType model.JobType, input map[string]any) (map[string]any, error) {
	spec, err := jobspec.Lookup(jobType)
	if err != nil {
		return nil, err
	}
	user, err := userPayload(jobType, input)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: spec.SystemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: spec.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", g.cfg.Mode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", g.cfg.Mode, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	respBytes, err := send(g.httpClient, req, g.cfg.Mode)
	if err != nil {
		return nil, err
	}

	text, err := chatText(respBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.cfg.Mode, err)
	}
	return finish(text, spec)
}

func chatText(respBytes []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	msg := resp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", fmt.Errorf("%w: choices[0].message.content missing", ErrMalformedResponse)
	}
	return *msg.Content, nil
}
