package audit

import (
	"encoding/json"
	"strings"
)

// Redacted replaces the value of every sensitive key.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"token":            {},
	"resettoken":       {},
	"resettokenexpiry": {},
}

func isSensitive(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	_, ok := sensitiveKeys[normalized]
	return ok
}

// Sanitize converts v to its JSON object form and redacts sensitive keys at
// any depth, including inside arrays. Non-object values are wrapped under "value".
func Sanitize(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	switch cleaned := redact(generic).(type) {
	case map[string]any:
		return cleaned, nil
	case nil:
		return nil, nil
	default:
		return map[string]any{"value": cleaned}, nil
	}
}

func redact(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			if isSensitive(k) {
				out[k] = Redacted
				continue
			}
			out[k] = redact(inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = redact(inner)
		}
		return out
	default:
		return v
	}
}
