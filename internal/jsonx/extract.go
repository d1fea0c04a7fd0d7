// Package jsonx extracts JSON payloads from model output. Models wrap JSON
// in code fences, prose, or both; extraction is optimistic substring finding
// with a single documented failure mode.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput indicates the model text contained no parseable JSON
// payload of the expected shape.
var ErrMalformedOutput = errors.New("malformed model output")

// stripFences removes Markdown code fences and stray backticks around a
// candidate payload.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.Trim(strings.TrimSpace(s), "`")
}

// ExtractObject finds the outermost JSON object in raw and unmarshals it
// into v. Returns ErrMalformedOutput (wrapped) when no object can be parsed.
func ExtractObject(raw string, v any) error {
	s := stripFences(raw)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// ExtractStringArray finds the outermost JSON array in raw and returns its
// elements. Non-string elements make the payload malformed.
func ExtractStringArray(raw string) ([]string, error) {
	s := stripFences(raw)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array found", ErrMalformedOutput)
	}

	var out []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}
