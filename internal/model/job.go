package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JobType selects the prompt and output schema that apply to a job.
type JobType string

const (
	JobDialogue       JobType = "DIALOGUE"
	JobDailySummary   JobType = "DAILY_SUMMARY"
	JobDiaryPost      JobType = "DIARY_POST"
	JobPlazaPost      JobType = "PLAZA_POST"
	JobCampaignSpeech JobType = "CAMPAIGN_SPEECH"
	JobVoteDecision   JobType = "VOTE_DECISION"
	JobPolicyDecision JobType = "POLICY_DECISION"
)

// Job is a unit of generation work handed out by the queue service.
type Job struct {
	ID      string         `json:"id"`
	JobType JobType        `json:"job_type"`
	Input   map[string]any `json:"input"`

	// InputErr is set when the queue sent an input that is not an object.
	// Such a job is still claimed and must be reported as failed.
	InputErr error `json:"-"`
}

// UnmarshalJSON accepts numeric ids and empty inputs. An id is kept as its
// JSON text when it is not a string; a null, false, zero or empty input
// becomes an empty object.
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"id"`
		JobType JobType         `json:"job_type"`
		Input   json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*j = Job{JobType: raw.JobType}
	id, err := jobID(raw.ID)
	if err != nil {
		return err
	}
	j.ID = id
	j.Input, j.InputErr = jobInput(raw.Input)
	return nil
}

func jobID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("job id: %w", err)
		}
		return s, nil
	case raw[0] == '{' || raw[0] == '[':
		return "", fmt.Errorf("job id must be a string or number, got %s", raw)
	default:
		return string(raw), nil
	}
}

func jobInput(raw json.RawMessage) (map[string]any, error) {
	var v any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("job input: %w", err)
		}
	}

	switch in := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return in, nil
	case []any:
		if len(in) == 0 {
			return map[string]any{}, nil
		}
		return nil, errors.New("job input must be a JSON object, got array")
	case string:
		if in == "" {
			return map[string]any{}, nil
		}
		return nil, errors.New("job input must be a JSON object, got string")
	case float64:
		if in == 0 {
			return map[string]any{}, nil
		}
		return nil, errors.New("job input must be a JSON object, got number")
	case bool:
		if !in {
			return map[string]any{}, nil
		}
		return nil, errors.New("job input must be a JSON object, got boolean")
	}
	return nil, fmt.Errorf("job input must be a JSON object, got %T", v)
}
