package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/jobspec"
	"github.com/limbopet/brain/internal/model"
)

// GoogleGenerator calls the Gemini generateContent endpoint. The API key goes
// in the query string, so it is redacted from every error this type returns.
type GoogleGenerator struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client
}

// NewGoogleGenerator returns a MissingCredentialError when cfg.APIKey is blank.
func NewGoogleGenerator(cfg config.GeneratorConfig, httpClient *http.Client) (*GoogleGenerator, error) {
	if err := requireKey(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &GoogleGenerator{cfg: cfg, httpClient: httpClient}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GoogleGenerator) Generate(ctx context.Context, jobType model.JobType, input map[string]any) (map[string]any, error) {
	spec, err := jobspec.Lookup(jobType)
	if err != nil {
		return nil, err
	}
	user, err := userPayload(jobType, input)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: spec.SystemPrompt + "\n\n" + user}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     spec.Temperature,
			MaxOutputTokens: g.cfg.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal google request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, g.redact(fmt.Errorf("create google request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	respBytes, err := send(g.httpClient, req, "google")
	if err != nil {
		return nil, g.redact(err)
	}

	text, err := geminiText(respBytes)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return finish(text, spec)
}

func geminiText(respBytes []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: missing candidates", ErrMalformedResponse)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("%w: missing parts", ErrMalformedResponse)
	}
	text := content.Parts[0].Text
	if text == nil {
		return "", fmt.Errorf("%w: no text", ErrMalformedResponse)
	}
	return *text, nil
}

// redact strips the API key from transport errors, which embed the request URL.
func (g *GoogleGenerator) redact(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ProviderHTTPError); ok {
		return err
	}
	msg := err.Error()
	for _, secret := range []string{url.QueryEscape(g.cfg.APIKey), g.cfg.APIKey} {
		msg = strings.ReplaceAll(msg, secret, "REDACTED")
	}
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
