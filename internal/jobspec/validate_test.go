package jobspec

import (
	"errors"
	"testing"
)

func TestValidate_AllPresent(t *testing.T) {
	data := map[string]any{"a": 1.0, "b": 2.0, "extra": "kept"}
	got, err := Validate(data, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got["extra"] != "kept" {
		t.Errorf("Validate changed its input: %v", got)
	}
}

func TestValidate_MissingKey(t *testing.T) {
	_, err := Validate(map[string]any{"a": 1.0}, []string{"a", "b"})
	var mk *MissingKeyError
	if !errors.As(err, &mk) {
		t.Fatalf("expected MissingKeyError, got %v", err)
	}
	if mk.Key != "b" {
		t.Errorf("Key = %q, want b", mk.Key)
	}
	if err.Error() != "missing key: b" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidate_ReportsFirstMissingInOrder(t *testing.T) {
	_, err := Validate(map[string]any{}, []string{"x", "y"})
	var mk *MissingKeyError
	if !errors.As(err, &mk) || mk.Key != "x" {
		t.Fatalf("expected missing key x, got %v", err)
	}
}

func TestValidate_NullValueCountsAsPresent(t *testing.T) {
	if _, err := Validate(map[string]any{"a": nil}, []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NotAnObject(t *testing.T) {
	_, err := Validate([]any{"a"}, []string{"a"})
	var mk *MissingKeyError
	if !errors.As(err, &mk) || mk.Key != "a" {
		t.Fatalf("expected missing key a for non-object, got %v", err)
	}
}
