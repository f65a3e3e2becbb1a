// Package util holds small helpers shared by the simulation packages. It lives
// in internal to avoid committing to public API stability prematurely.
package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when text contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found")

// ExtractJSONObject finds the first JSON object in model output. Models wrap
// JSON in prose or markdown fences, so the lookup tries, in order, the whole
// text, the first fenced block and the first balanced {...} span.
func ExtractJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	if block, ok := fencedBlock(trimmed); ok {
		if obj, ok := balancedObject(block); ok {
			return obj, true
		}
	}
	return balancedObject(trimmed)
}

// DecodeJSONObject extracts the first JSON object from text into v.
func DecodeJSONObject(text string, v any) error {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decoding JSON object: %w", err)
	}
	return nil
}

func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip the info string (```json).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedObject scans for the first '{' whose matching '}' yields valid
// JSON, honouring string literals and escapes.
func balancedObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
