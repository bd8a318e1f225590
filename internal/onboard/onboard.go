// Package onboard creates a dev user and pet on a LIMBOPET server and writes
// the resulting credentials into a .env file for later runs.
package onboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/model"
)

const (
	defaultAPIURL  = "http://localhost:3001/api/v1"
	defaultEmail   = "me@example.com"
	defaultPetName = "limbo"
	defaultEnvFile = ".env"
)

// ErrMissingAgentKey is returned when pet creation does not hand back a key.
var ErrMissingAgentKey = errors.New("missing api_key in response from /pets/create")

// Options are the values passed on the command line. Empty fields fall back
// to the environment, then to the resolver. PetDescription and Model are
// pointers so an explicit empty value can be told apart from an unset one.
type Options struct {
	APIURL         string
	Email          string
	PetName        string
	PetDescription *string
	Mode           string
	Model          *string
	EnvFile        string
}

// Result describes what onboarding created and where it was recorded.
type Result struct {
	UserToken string
	PetAPIKey string
	PetID     string
	EnvFile   string
	Updated   []string
}

// Onboarder runs the onboarding flow.
type Onboarder struct {
	httpClient *http.Client
	resolver   Resolver
	getenv     config.Getenv
	logger     *slog.Logger
}

// New creates an Onboarder. A nil getenv reads the process environment.
func New(httpClient *http.Client, resolver Resolver, getenv config.Getenv, logger *slog.Logger) *Onboarder {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Onboarder{httpClient: httpClient, resolver: resolver, getenv: getenv, logger: logger}
}

// Run resolves the missing inputs, registers a user and a pet, and upserts
// the credentials into the env file.
func (o *Onboarder) Run(ctx context.Context, opts Options) (*Result, error) {
	apiURL := strings.TrimRight(firstNonEmpty(opts.APIURL, o.getenv("LIMBOPET_API_URL"), defaultAPIURL), "/")

	email, err := o.value(opts.Email, "LIMBOPET_EMAIL", "Email (dev login)", defaultEmail)
	if err != nil {
		return nil, err
	}
	petName, err := o.value(opts.PetName, "LIMBOPET_PET_NAME", "Pet name (letters/numbers/_)", defaultPetName)
	if err != nil {
		return nil, err
	}
	description := o.getenv("LIMBOPET_PET_DESCRIPTION")
	if opts.PetDescription != nil {
		description = *opts.PetDescription
	}

	mode, err := o.mode(opts.Mode)
	if err != nil {
		return nil, err
	}

	modelName := o.getenv("LIMBOPET_MODEL")
	if opts.Model != nil {
		modelName = *opts.Model
	}
	if mode != "mock" && modelName == "" {
		if modelName, err = o.resolver.Resolve("Model (optional)", ""); err != nil {
			return nil, err
		}
	}

	var token string
	err = o.wait("Logging in as "+email, func() error {
		var err error
		token, err = o.DevLogin(ctx, apiURL, email)
		return err
	})
	if err != nil {
		return nil, err
	}

	var petID, petKey string
	err = o.wait("Creating pet "+petName, func() error {
		var err error
		petID, petKey, err = o.CreatePet(ctx, apiURL, token, petName, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	updates := map[string]string{
		"LIMBOPET_API_URL": apiURL,
		"LIMBOPET_API_KEY": petKey,
		"LIMBOPET_MODE":    mode,
	}
	if modelEnv, keyEnv, ok := config.ProviderEnv(mode); ok {
		if modelName != "" {
			updates[modelEnv] = modelName
		}
		if strings.TrimSpace(o.getenv(keyEnv)) == "" {
			secret, err := o.resolver.Resolve(keyEnv+" (paste key)", "")
			if err != nil {
				return nil, err
			}
			if secret = strings.TrimSpace(secret); secret != "" {
				updates[keyEnv] = secret
			}
		}
	}

	envFile := firstNonEmpty(opts.EnvFile, o.getenv("LIMBOPET_ENV_FILE"), defaultEnvFile)
	if err := UpsertEnv(envFile, updates); err != nil {
		return nil, err
	}

	o.logger.Info("onboarding complete", "pet_id", petID, "env_file", envFile, "mode", mode)
	return &Result{
		UserToken: token,
		PetAPIKey: petKey,
		PetID:     petID,
		EnvFile:   envFile,
		Updated:   sortedKeys(updates),
	}, nil
}

func (o *Onboarder) value(flag, envName, label, def string) (string, error) {
	if v := firstNonEmpty(flag, o.getenv(envName)); v != "" {
		return v, nil
	}
	return o.resolver.Resolve(label, def)
}

// mode validates the requested mode; an unknown value is asked for again.
func (o *Onboarder) mode(flag string) (string, error) {
	mode := firstNonEmpty(flag, o.getenv("LIMBOPET_MODE"))
	if config.KnownMode(mode) {
		return mode, nil
	}
	label := "Brain mode (" + strings.Join(config.Modes, "/") + ")"

	var chosen string
	var err error
	if c, ok := o.resolver.(Chooser); ok {
		chosen, err = c.Choose(label, config.Modes, "mock")
	} else {
		chosen, err = o.resolver.Resolve(label, "mock")
	}
	if err != nil {
		return "", err
	}
	if !config.KnownMode(chosen) {
		return "", fmt.Errorf("mode must be one of: %s", strings.Join(config.Modes, ", "))
	}
	return chosen, nil
}

func (o *Onboarder) wait(label string, fn func() error) error {
	if w, ok := o.resolver.(Waiter); ok {
		return w.Wait(label, fn)
	}
	return fn()
}

// DevLogin exchanges an email for a user token on a dev server.
func (o *Onboarder) DevLogin(ctx context.Context, apiURL, email string) (string, error) {
	var resp struct {
		Token any `json:"token"`
	}
	if err := o.post(ctx, apiURL+"/auth/dev", "", map[string]string{"email": email}, &resp); err != nil {
		return "", fmt.Errorf("dev login: %w", err)
	}
	if resp.Token == nil {
		return "", errors.New("dev login: response has no token")
	}
	return fmt.Sprint(resp.Token), nil
}

// CreatePet registers a pet owned by the token's user and returns its id and
// the agent API key the brain authenticates with.
func (o *Onboarder) CreatePet(ctx context.Context, apiURL, token, name, description string) (petID, apiKey string, err error) {
	var resp struct {
		Agent struct {
			APIKey string `json:"api_key"`
		} `json:"agent"`
		Pet struct {
			ID any `json:"id"`
		} `json:"pet"`
	}
	body := map[string]string{"name": name, "description": description}
	if err := o.post(ctx, apiURL+"/pets/create", token, body, &resp); err != nil {
		return "", "", fmt.Errorf("create pet: %w", err)
	}
	if resp.Agent.APIKey == "" {
		return "", "", ErrMissingAgentKey
	}
	if resp.Pet.ID != nil {
		petID = fmt.Sprint(resp.Pet.ID)
	}
	return petID, resp.Agent.APIKey, nil
}

func (o *Onboarder) post(ctx context.Context, url, token string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &model.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// UpsertEnv sets updates in the dotenv file at path, keeping other entries.
// The file and its directory are created when missing. Comments are not
// preserved.
func UpsertEnv(path string, updates map[string]string) error {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = existing
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	for k, v := range updates {
		env[k] = v
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
