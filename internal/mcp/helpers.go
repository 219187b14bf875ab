package mcpserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// objectArg reads an object argument. Clients send either a JSON object or a
// string holding one; a missing key yields nil.
func objectArg(args map[string]any, key string) (map[string]any, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := parseJSON(v, &out); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON object: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an object", key)
	}
}

// valueArg reads an arbitrary JSON value. A string that parses as JSON is
// decoded, anything else is used as is.
func valueArg(args map[string]any, key string) (any, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	if s, isStr := v.(string); isStr {
		var decoded any
		if err := parseJSON(s, &decoded); err == nil {
			return decoded, true
		}
	}
	return v, true
}

// intArg reads a whole number argument, returning def when absent.
func intArg(args map[string]any, key string, def int) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// listArg reads a list of strings given as an array or a comma-separated
// string.
func listArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
