// Package generator implements the interchangeable text generators behind
// model.Generator: a deterministic local mock and remote LLM providers.
package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/jobspec"
	"github.com/limbopet/brain/internal/loosejson"
	"github.com/limbopet/brain/internal/model"
)

var (
	// ErrMalformedResponse is returned when a provider envelope lacks the expected text.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrNoCandidates is returned by the mock for a vote with nobody to vote for.
	ErrNoCandidates = errors.New("no candidates")
	// ErrUnknownMode is returned by New for a mode with no generator.
	ErrUnknownMode = errors.New("unknown generator mode")
)

// MissingCredentialError is returned at construction when a provider key is blank.
type MissingCredentialError struct {
	EnvName string
	Mode    string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s is required for --mode %s", e.EnvName, e.Mode)
}

// ProviderHTTPError carries a non-2xx provider response.
type ProviderHTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// New builds the generator for cfg.Mode. Remote modes fail here, before any
// job is pulled, when their credential is missing. A nil httpClient gets one
// with cfg.Timeout.
func New(cfg config.GeneratorConfig, httpClient *http.Client) (model.Generator, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "openai", "xai", "proxy":
		return NewOpenAICompatibleGenerator(cfg, httpClient)
	case "anthropic":
		return NewAnthropicGenerator(cfg, httpClient)
	case "google":
		return NewGoogleGenerator(cfg, httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}

func requireKey(cfg config.GeneratorConfig) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &MissingCredentialError{EnvName: cfg.APIKeyEnv, Mode: cfg.Mode}
	}
	return nil
}

// userPayload renders the job input sent as the user turn. DIALOGUE prompts
// refer to their own job type, so it is merged into the input.
func userPayload(jobType model.JobType, input map[string]any) (string, error) {
	payload := input
	if payload == nil {
		payload = map[string]any{}
	}
	if jobType == model.JobDialogue {
		merged := make(map[string]any, len(input)+1)
		merged["job_type"] = string(jobType)
		for k, v := range input {
			merged[k] = v
		}
		payload = merged
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("marshal job input: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// finish parses raw model text and checks it against the job type's required keys.
func finish(raw string, spec jobspec.Spec) (map[string]any, error) {
	data, err := loosejson.Parse(raw)
	if err != nil {
		return nil, err
	}
	return jobspec.Validate(data, spec.RequiredKeys)
}

// send executes req and returns the response body, turning non-2xx statuses
// into ProviderHTTPError.
func send(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderHTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBytes)}
	}
	return respBytes, nil
}
