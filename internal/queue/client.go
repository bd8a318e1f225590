// Package queue talks to the LIMBOPET brain job queue over HTTP.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/limbopet/brain/internal/model"
)

// DefaultTimeout bounds every queue request when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Client implements model.JobQueue. It performs exactly one HTTP request per
// call and never retries; backoff belongs to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a queue client. A nil httpClient gets DefaultTimeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type jobEnvelope struct {
	Job *model.Job `json:"job"`
}

// PullJob claims the next job. It returns nil, nil when the queue is empty.
func (c *Client) PullJob(ctx context.Context) (*model.Job, error) {
	var env jobEnvelope
	if err := c.do(ctx, http.MethodPost, "/brains/jobs/pull", nil, &env); err != nil {
		return nil, fmt.Errorf("pull job: %w", err)
	}
	return env.Job, nil
}

// GetJob fetches a job by id without claiming it.
func (c *Client) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var env jobEnvelope
	if err := c.do(ctx, http.MethodGet, "/brains/jobs/"+url.PathEscape(jobID), nil, &env); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return env.Job, nil
}

// SubmitJob reports the terminal status of a job.
func (c *Client) SubmitJob(ctx context.Context, jobID string, sub model.Submission) error {
	if err := c.do(ctx, http.MethodPost, "/brains/jobs/"+url.PathEscape(jobID)+"/submit", sub, nil); err != nil {
		return fmt.Errorf("submit job %s: %w", jobID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &model.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
