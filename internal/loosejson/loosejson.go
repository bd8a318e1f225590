// Package loosejson extracts a single JSON object from model output that may
// carry prose or code fences around it.
package loosejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("empty response")
	ErrNotAnObject   = errors.New("expected JSON object")
)

// Parse returns the JSON object contained in text. The whole trimmed text is
// tried first; if it is not valid JSON, the span from the first '{' to the
// last '}' is parsed instead. Valid JSON that is not an object is rejected
// without falling back.
func Parse(text string) (map[string]any, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	var v any
	err := json.Unmarshal([]byte(raw), &v)
	if err == nil {
		return asObject(v)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("parse embedded JSON: %w", err)
	}
	return asObject(v)
}

func asObject(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return obj, nil
}
