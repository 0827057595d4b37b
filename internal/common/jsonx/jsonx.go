// Package jsonx extracts JSON objects embedded in LLM free-text output.
// Generative models are asked for a single JSON object but routinely wrap it
// in prose or markdown fences, so callers must tolerate surrounding noise.
package jsonx

import (
	"encoding/json"
	"errors"
)

// ErrNoObject is returned when no balanced JSON object is present.
var ErrNoObject = errors.New("jsonx: no JSON object found")

// FirstObject returns the first balanced {...} block in s. Braces inside
// string literals are ignored. Returns ErrNoObject when the text contains no
// complete object.
func FirstObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", ErrNoObject
}

// FirstObjectInto extracts the first balanced object and unmarshals it into v.
func FirstObjectInto(s string, v any) error {
	obj, err := FirstObject(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return err
	}
	return nil
}
