package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/jobspec"
	"github.com/limbopet/brain/internal/loosejson"
	"github.com/limbopet/brain/internal/model"
)

// capturedRequest records what a provider sent to the test server.
type capturedRequest struct {
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func makeProviderServer(t *testing.T, statusCode int, respBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got.body); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func chatEnvelope(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func testConfig(mode, baseURL string) config.GeneratorConfig {
	return config.GeneratorConfig{
		Mode:             mode,
		Model:            "test-model",
		APIKeyEnv:        "TEST_KEY",
		APIKey:           "secret-key",
		BaseURL:          baseURL,
		Timeout:          5 * time.Second,
		AnthropicVersion: "2023-06-01",
	}
}

func TestOpenAICompatible_Success(t *testing.T) {
	srv, got := makeProviderServer(t, http.StatusOK,
		chatEnvelope("Sure!\n```json\n{\"lines\":[\"hi\"],\"mood\":\"okay\",\"safe_level\":1}\n```"))

	gen, err := NewOpenAICompatibleGenerator(testConfig("xai", srv.URL), srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	out, err := gen.Generate(context.Background(), model.JobDialogue, map[string]any{"user_message": "안녕 <3"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out["mood"] != "okay" {
		t.Errorf("out = %v", out)
	}

	if got.path != "/chat/completions" {
		t.Errorf("path = %q", got.path)
	}
	if auth := got.header.Get("Authorization"); auth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.body["model"] != "test-model" || got.body["temperature"] != 0.8 {
		t.Errorf("body = %v", got.body)
	}
	msgs := got.body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	system := msgs[0].(map[string]any)
	user := msgs[1].(map[string]any)
	if system["role"] != "system" || system["content"] == "" {
		t.Errorf("system message = %v", system)
	}
	content := user["content"].(string)
	if !strings.Contains(content, `"job_type":"DIALOGUE"`) || !strings.Contains(content, "안녕 <3") {
		t.Errorf("user content = %q", content)
	}
}

func TestOpenAICompatible_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"slow down"}`, func(err error) bool {
			var pe *ProviderHTTPError
			return errors.As(err, &pe) && pe.StatusCode == 429 && strings.Contains(pe.Body, "slow down")
		}},
		{"no choices", http.StatusOK, `{"choices":[]}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"not json", http.StatusOK, `<html>`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"empty text", http.StatusOK, chatEnvelope("  "), func(err error) bool { return errors.Is(err, loosejson.ErrEmptyResponse) }},
		{"missing key", http.StatusOK, chatEnvelope(`{"lines":[]}`), func(err error) bool {
			var mk *jobspec.MissingKeyError
			return errors.As(err, &mk) && mk.Key == "mood"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := makeProviderServer(t, tt.status, tt.body)
			gen, err := NewOpenAICompatibleGenerator(testConfig("openai", srv.URL), srv.Client())
			if err != nil {
				t.Fatal(err)
			}
			_, err = gen.Generate(context.Background(), model.JobDialogue, nil)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAnthropic_Success(t *testing.T) {
	body := `{"content":[{"type":"text","text":"{\"speech\":\"뽑아줘\",\"safe_level\":1}"}]}`
	srv, got := makeProviderServer(t, http.StatusOK, body)

	gen, err := NewAnthropicGenerator(testConfig("anthropic", srv.URL), srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	out, err := gen.Generate(context.Background(), model.JobCampaignSpeech, map[string]any{"office_code": "mayor"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out["speech"] != "뽑아줘" {
		t.Errorf("out = %v", out)
	}
	if got.path != "/v1/messages" {
		t.Errorf("path = %q", got.path)
	}
	if got.header.Get("x-api-key") != "secret-key" || got.header.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("headers = %v", got.header)
	}
	if got.body["max_tokens"] != 600.0 || got.body["temperature"] != 0.7 || got.body["system"] == "" {
		t.Errorf("body = %v", got.body)
	}
	msgs := got.body["messages"].([]any)
	if len(msgs) != 1 || msgs[0].(map[string]any)["role"] != "user" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestAnthropic_NonTextBlock(t *testing.T) {
	srv, _ := makeProviderServer(t, http.StatusOK, `{"content":[{"type":"tool_use","id":"x"}]}`)
	gen, err := NewAnthropicGenerator(testConfig("anthropic", srv.URL), srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	_, err = gen.Generate(context.Background(), model.JobCampaignSpeech, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestAnthropic_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"http error", http.StatusUnauthorized, `{"type":"error","error":{"message":"invalid x-api-key"}}`, func(err error) bool {
			var pe *ProviderHTTPError
			return errors.As(err, &pe) && pe.Provider == "anthropic" && pe.StatusCode == 401 && strings.Contains(pe.Body, "invalid x-api-key")
		}},
		{"empty content", http.StatusOK, `{"content":[]}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"missing content", http.StatusOK, `{"id":"msg_1"}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"not json", http.StatusOK, `<html>`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"missing key", http.StatusOK, `{"content":[{"type":"text","text":"{\"lines\":[]}"}]}`, func(err error) bool {
			var mk *jobspec.MissingKeyError
			return errors.As(err, &mk) && mk.Key == "mood"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := makeProviderServer(t, tt.status, tt.body)
			gen, err := NewAnthropicGenerator(testConfig("anthropic", srv.URL), srv.Client())
			if err != nil {
				t.Fatal(err)
			}
			_, err = gen.Generate(context.Background(), model.JobDialogue, nil)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGoogle_Success(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"{\"candidate_id\":\"c-9\",\"safe_level\":1}"}]}}]}`
	srv, got := makeProviderServer(t, http.StatusOK, body)

	gen, err := NewGoogleGenerator(testConfig("google", srv.URL), srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	out, err := gen.Generate(context.Background(), model.JobVoteDecision, map[string]any{"candidates": []any{}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out["candidate_id"] != "c-9" {
		t.Errorf("out = %v", out)
	}
	if got.path != "/v1beta/models/test-model:generateContent" || got.query != "key=secret-key" {
		t.Errorf("path/query = %q / %q", got.path, got.query)
	}
	contents := got.body["contents"].([]any)
	part := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(part, "\n\n{\"candidates\":[]}") {
		t.Errorf("prompt text = %q", part)
	}
	genCfg := got.body["generationConfig"].(map[string]any)
	if genCfg["maxOutputTokens"] != 800.0 || genCfg["temperature"] != 0.5 {
		t.Errorf("generationConfig = %v", genCfg)
	}
}

func TestGoogle_MissingCandidates(t *testing.T) {
	srv, _ := makeProviderServer(t, http.StatusOK, `{"candidates":[]}`)
	gen, err := NewGoogleGenerator(testConfig("google", srv.URL), srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	_, err = gen.Generate(context.Background(), model.JobPolicyDecision, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestGoogle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"http error", http.StatusBadRequest, `{"error":{"message":"API key not valid"}}`, func(err error) bool {
			var pe *ProviderHTTPError
			return errors.As(err, &pe) && pe.Provider == "google" && pe.StatusCode == 400 && strings.Contains(pe.Body, "API key not valid")
		}},
		{"missing parts", http.StatusOK, `{"candidates":[{"content":{"parts":[]}}]}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"missing text", http.StatusOK, `{"candidates":[{"content":{"parts":[{}]}}]}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"not json", http.StatusOK, `<html>`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
		{"missing key", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{\"lines\":[]}"}]}}]}`, func(err error) bool {
			var mk *jobspec.MissingKeyError
			return errors.As(err, &mk) && mk.Key == "mood"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := makeProviderServer(t, tt.status, tt.body)
			gen, err := NewGoogleGenerator(testConfig("google", srv.URL), srv.Client())
			if err != nil {
				t.Fatal(err)
			}
			_, err = gen.Generate(context.Background(), model.JobDialogue, nil)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGoogle_RedactsKeyFromTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	gen, err := NewGoogleGenerator(testConfig("google", baseURL), &http.Client{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = gen.Generate(context.Background(), model.JobPolicyDecision, nil)
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("error leaks API key: %v", err)
	}
}

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"mock", "*generator.MockGenerator"},
		{"openai", "*generator.OpenAICompatibleGenerator"},
		{"xai", "*generator.OpenAICompatibleGenerator"},
		{"proxy", "*generator.OpenAICompatibleGenerator"},
		{"anthropic", "*generator.AnthropicGenerator"},
		{"google", "*generator.GoogleGenerator"},
	}
	for _, tt := range tests {
		gen, err := New(testConfig(tt.mode, "http://unused"), nil)
		if err != nil {
			t.Errorf("New(%s): %v", tt.mode, err)
			continue
		}
		if got := fmt.Sprintf("%T", gen); got != tt.want {
			t.Errorf("New(%s) = %s, want %s", tt.mode, got, tt.want)
		}
	}

	if _, err := New(testConfig("llama", ""), nil); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
}

func TestNew_MissingCredential(t *testing.T) {
	cfg := testConfig("anthropic", "http://unused")
	cfg.APIKey = "  "
	cfg.APIKeyEnv = "ANTHROPIC_API_KEY"

	_, err := New(cfg, nil)
	var mc *MissingCredentialError
	if !errors.As(err, &mc) {
		t.Fatalf("err = %v, want MissingCredentialError", err)
	}
	if err.Error() != "ANTHROPIC_API_KEY is required for --mode anthropic" {
		t.Errorf("message = %q", err.Error())
	}

	cfg.Mode = "mock"
	if _, err := New(cfg, nil); err != nil {
		t.Errorf("mock should not need a key: %v", err)
	}
}

func TestUserPayload(t *testing.T) {
	got, err := userPayload(model.JobDialogue, map[string]any{"a": "<b>"})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"a":"<b>","job_type":"DIALOGUE"}` {
		t.Errorf("dialogue payload = %s", got)
	}

	got, _ = userPayload(model.JobDiaryPost, nil)
	if got != "{}" {
		t.Errorf("nil input payload = %s", got)
	}
}
