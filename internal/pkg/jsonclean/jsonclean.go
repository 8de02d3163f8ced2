// Package jsonclean recovers JSON values from model output that wraps them
// in prose or code fences.
package jsonclean

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrNoJSON = errors.New("no JSON value found")

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if nl := strings.IndexByte(raw, '\n'); nl != -1 && !strings.ContainsAny(raw[:nl], "{[") {
			raw = raw[nl+1:]
		}
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// Extract returns the outermost JSON object or array in raw.
func Extract(raw string) (string, error) {
	raw = StripFences(raw)
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}
	open := raw[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(raw, closer)
	if end <= start {
		return "", ErrNoJSON
	}
	return trailingCommaRe.ReplaceAllString(raw[start:end+1], "$1"), nil
}

// Decode extracts the JSON value from raw and unmarshals it into out.
func Decode(raw string, out any) error {
	s, err := Extract(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), out)
}

// Object decodes raw into a JSON object.
func Object(raw string) (map[string]any, error) {
	var out map[string]any
	if err := Decode(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNoJSON
	}
	return out, nil
}

func CoerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func CoerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := CoerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

func CoerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func CoerceInt(v any, def int) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return def
}
