package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Getenv looks up an environment value. os.Getenv in production; a map in tests.
type Getenv func(key string) string

// Modes lists every generator mode the brain can run in.
var Modes = []string{"mock", "openai", "xai", "anthropic", "google", "proxy"}

// KnownMode reports whether mode is one of Modes.
func KnownMode(mode string) bool {
	return slices.Contains(Modes, mode)
}

// Config is the root configuration for the brain, resolved once at start-up.
type Config struct {
	API          APIConfig
	Mode         string        // generator mode, one of Modes
	Model        string        // overrides the provider default model when set
	PollInterval time.Duration // idle sleep between empty pulls; also the initial backoff
	MaxBackoff   time.Duration // cap for the doubling pull backoff
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	Providers    map[string]ProviderConfig // keyed by mode
}

// APIConfig points at the job queue service.
type APIConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// NotificationConfig selects how per-job outcomes are reported.
type NotificationConfig struct {
	Type string `yaml:"type"` // "console" or "log"
}

// RateLimitConfig controls the minimum gap between generation calls.
type RateLimitConfig struct {
	MinDelay time.Duration // zero disables limiting
}

// ProviderConfig holds the endpoint and credential settings for one remote mode.
type ProviderConfig struct {
	BaseURL          string
	Model            string
	APIKeyEnv        string // name of the env var holding the key
	APIKey           string // value of APIKeyEnv, resolved by Load
	Timeout          time.Duration
	AnthropicVersion string // anthropic only
}

// GeneratorConfig is the immutable per-run value handed to a generator constructor.
type GeneratorConfig struct {
	Mode             string
	Model            string
	APIKeyEnv        string
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	AnthropicVersion string
	MaxTokens        int
}

const (
	defaultAPIURL           = "http://localhost:3001/api/v1"
	defaultAnthropicVersion = "2023-06-01"
	defaultProviderTimeout  = 60 * time.Second
)

// envPrefix maps a remote mode to the prefix of its *_MODEL / *_BASE_URL / *_API_KEY variables.
var envPrefix = map[string]string{
	"openai":    "OPENAI",
	"xai":       "XAI",
	"anthropic": "ANTHROPIC",
	"google":    "GOOGLE",
	"proxy":     "CLIPROXY",
}

// ProviderEnv names the model and API key variables for a remote mode. It
// reports false for mock and unknown modes.
func ProviderEnv(mode string) (modelEnv, keyEnv string, ok bool) {
	prefix, ok := envPrefix[mode]
	if !ok {
		return "", "", false
	}
	return prefix + "_MODEL", prefix + "_API_KEY", true
}

func defaults() Config {
	provider := func(baseURL, model, keyEnv string) ProviderConfig {
		return ProviderConfig{BaseURL: baseURL, Model: model, APIKeyEnv: keyEnv, Timeout: defaultProviderTimeout}
	}
	anthropic := provider("https://api.anthropic.com", "claude-3-5-sonnet-latest", "ANTHROPIC_API_KEY")
	anthropic.AnthropicVersion = defaultAnthropicVersion

	return Config{
		API:          APIConfig{URL: defaultAPIURL, Timeout: 30 * time.Second},
		Mode:         "mock",
		PollInterval: 1 * time.Second,
		MaxBackoff:   30 * time.Second,
		Notification: NotificationConfig{Type: "console"},
		Providers: map[string]ProviderConfig{
			"openai":    provider("https://api.openai.com/v1", "gpt-4o-mini", "OPENAI_API_KEY"),
			"xai":       provider("https://api.x.ai/v1", "grok-2-latest", "XAI_API_KEY"),
			"anthropic": anthropic,
			"google":    provider("https://generativelanguage.googleapis.com", "gemini-1.5-flash", "GOOGLE_API_KEY"),
			"proxy":     provider("http://127.0.0.1:8317/v1", "gemini-2.5-flash", "CLIPROXY_API_KEY"),
		},
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	API          rawAPIConfig                 `yaml:"api"`
	Mode         string                       `yaml:"mode"`
	Model        string                       `yaml:"model"`
	PollInterval string                       `yaml:"poll_interval"`
	MaxBackoff   string                       `yaml:"max_backoff"`
	Notification NotificationConfig           `yaml:"notification"`
	RateLimit    rawRateLimitConfig           `yaml:"rate_limit"`
	Providers    map[string]rawProviderConfig `yaml:"providers"`
}

type rawAPIConfig struct {
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Timeout string `yaml:"timeout"`
}

type rawRateLimitConfig struct {
	MinDelay string `yaml:"min_delay"`
}

type rawProviderConfig struct {
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	APIKeyEnv        string `yaml:"api_key_env"`
	Timeout          string `yaml:"timeout"`
	AnthropicVersion string `yaml:"anthropic_version"`
}

// Load builds the configuration from defaults, the optional YAML file at path
// (skipped when path is empty), and environment values from getenv, then
// validates it. Provider API keys are resolved here so nothing downstream
// reads the environment.
func Load(path string, getenv Getenv) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path, getenv); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}

	cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")
	for mode, p := range cfg.Providers {
		p.BaseURL = strings.TrimRight(p.BaseURL, "/")
		p.APIKey = strings.TrimSpace(getenv(p.APIKeyEnv))
		cfg.Providers[mode] = p
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFile(cfg *Config, path string, getenv Getenv) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string { return getenv(key) })

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if raw.API.URL != "" {
		cfg.API.URL = raw.API.URL
	}
	if raw.API.Key != "" {
		cfg.API.Key = raw.API.Key
	}
	if err := setDuration(&cfg.API.Timeout, raw.API.Timeout, "api.timeout"); err != nil {
		return err
	}
	if raw.Mode != "" {
		cfg.Mode = raw.Mode
	}
	if raw.Model != "" {
		cfg.Model = raw.Model
	}
	if err := setDuration(&cfg.PollInterval, raw.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.MaxBackoff, raw.MaxBackoff, "max_backoff"); err != nil {
		return err
	}
	if raw.Notification.Type != "" {
		cfg.Notification.Type = raw.Notification.Type
	}
	if err := setDuration(&cfg.RateLimit.MinDelay, raw.RateLimit.MinDelay, "rate_limit.min_delay"); err != nil {
		return err
	}

	for mode, rp := range raw.Providers {
		p, ok := cfg.Providers[mode]
		if !ok {
			return fmt.Errorf("providers.%s: unknown provider", mode)
		}
		if rp.BaseURL != "" {
			p.BaseURL = rp.BaseURL
		}
		if rp.Model != "" {
			p.Model = rp.Model
		}
		if rp.APIKeyEnv != "" {
			p.APIKeyEnv = rp.APIKeyEnv
		}
		if rp.AnthropicVersion != "" {
			p.AnthropicVersion = rp.AnthropicVersion
		}
		if err := setDuration(&p.Timeout, rp.Timeout, "providers."+mode+".timeout"); err != nil {
			return err
		}
		cfg.Providers[mode] = p
	}
	return nil
}

func applyEnv(cfg *Config, getenv Getenv) error {
	if v := strings.TrimSpace(getenv("LIMBOPET_API_URL")); v != "" {
		cfg.API.URL = v
	}
	if v := strings.TrimSpace(getenv("LIMBOPET_API_KEY")); v != "" {
		cfg.API.Key = v
	}
	if v := strings.TrimSpace(getenv("LIMBOPET_MODE")); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(getenv("LIMBOPET_MODEL")); v != "" {
		cfg.Model = v
	}
	if err := setDuration(&cfg.PollInterval, getenv("LIMBOPET_POLL_INTERVAL"), "LIMBOPET_POLL_INTERVAL"); err != nil {
		return err
	}

	for mode, prefix := range envPrefix {
		p := cfg.Providers[mode]
		if v := strings.TrimSpace(getenv(prefix + "_MODEL")); v != "" {
			p.Model = v
		}
		if v := strings.TrimSpace(getenv(prefix + "_BASE_URL")); v != "" {
			p.BaseURL = v
			// The proxy variable names the server root; its OpenAI-compatible API lives under /v1.
			if mode == "proxy" {
				p.BaseURL = strings.TrimRight(v, "/") + "/v1"
			}
		}
		if mode == "anthropic" {
			if v := strings.TrimSpace(getenv("ANTHROPIC_VERSION")); v != "" {
				p.AnthropicVersion = v
			}
		}
		cfg.Providers[mode] = p
	}
	return nil
}

// ParseDuration reads a Go duration string or a plain number of seconds, so
// "1.5" and "1500ms" are equivalent.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

// setDuration parses value into dst when non-empty.
func setDuration(dst *time.Duration, value, field string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	*dst = d
	return nil
}

// CheckBackoff reports whether maxBackoff can cap a backoff that starts at
// pollInterval.
func CheckBackoff(pollInterval, maxBackoff time.Duration) error {
	if maxBackoff < pollInterval {
		return fmt.Errorf("max_backoff (%v) must not be less than poll_interval (%v)", maxBackoff, pollInterval)
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", cfg.PollInterval)
	}
	if err := CheckBackoff(cfg.PollInterval, cfg.MaxBackoff); err != nil {
		return err
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %v", cfg.API.Timeout)
	}
	if cfg.RateLimit.MinDelay < 0 {
		return fmt.Errorf("rate_limit.min_delay must not be negative, got %v", cfg.RateLimit.MinDelay)
	}
	if !KnownMode(cfg.Mode) {
		return fmt.Errorf("mode must be one of: %s, got %q", strings.Join(Modes, ", "), cfg.Mode)
	}
	switch cfg.Notification.Type {
	case "console", "log":
	default:
		return fmt.Errorf("notification.type must be \"console\" or \"log\", got %q", cfg.Notification.Type)
	}
	for mode, p := range cfg.Providers {
		if p.Timeout <= 0 {
			return fmt.Errorf("providers.%s.timeout must be positive, got %v", mode, p.Timeout)
		}
	}
	return nil
}

// Generator resolves the generator settings for mode and model. Empty
// arguments fall back to the configured mode and model, then to the
// provider's default model.
func (c *Config) Generator(mode, model string) (GeneratorConfig, error) {
	if mode == "" {
		mode = c.Mode
	}
	if !KnownMode(mode) {
		return GeneratorConfig{}, fmt.Errorf("mode must be one of: %s, got %q", strings.Join(Modes, ", "), mode)
	}
	if model == "" {
		model = c.Model
	}
	if mode == "mock" {
		return GeneratorConfig{Mode: mode, Model: model}, nil
	}

	p := c.Providers[mode]
	if model == "" {
		model = p.Model
	}
	gc := GeneratorConfig{
		Mode:             mode,
		Model:            model,
		APIKeyEnv:        p.APIKeyEnv,
		APIKey:           p.APIKey,
		BaseURL:          p.BaseURL,
		Timeout:          p.Timeout,
		AnthropicVersion: p.AnthropicVersion,
	}
	switch mode {
	case "anthropic":
		gc.MaxTokens = 600
	case "google":
		gc.MaxTokens = 800
	}
	return gc, nil
}
