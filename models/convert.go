package models

import (
	"encoding/json"
	"fmt"
)

// ToMap converts a tagged struct into the generic map form used by workflow
// templates and agent results.
func ToMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%T is not an object: %w", v, err)
	}
	return out, nil
}

// FromMap decodes a generic map (or any JSON-compatible value) into out.
func FromMap(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	return nil
}
