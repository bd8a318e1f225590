package jobspec

import "fmt"

// MissingKeyError reports the first required key absent from a generation result.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key: %s", e.Key)
}

// Validate checks that data is a JSON object containing every key in
// requiredKeys, in order. Only presence is checked; value types are left to
// the consumer. On success data is returned unchanged.
func Validate(data any, requiredKeys []string) (map[string]any, error) {
	obj, ok := data.(map[string]any)
	for _, key := range requiredKeys {
		if !ok {
			return nil, &MissingKeyError{Key: key}
		}
		if _, present := obj[key]; !present {
			return nil, &MissingKeyError{Key: key}
		}
	}
	if !ok {
		// No required keys; still reject non-objects.
		return nil, fmt.Errorf("expected JSON object, got %T", data)
	}
	return obj, nil
}
