package nlp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoJSON means the model response held no balanced {...} block.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON returns the first balanced brace-delimited block in raw.
// Braces inside JSON strings are ignored.
func ExtractJSON(raw string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the first JSON object from raw and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	block, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}
