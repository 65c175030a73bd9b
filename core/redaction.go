package core

import "strings"

const RedactedValue = "[REDACTED]"

// sensitiveKeyFragments marks a field key as secret when it contains any of
// these, unless the key is a known correlation field.
var sensitiveKeyFragments = []string{"secret", "token", "authorization", "api_key", "apikey", "credential", "master_key"}

// RedactSensitiveMap returns a copy of metadata with secret-looking keys
// masked. Nested maps and slices are walked; Token values render masked.

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			out[key] = inner
		}
		return redactSensitiveMap(out)
	case Token:
		return typed.String()
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "attempt_id",
		"user_id",
		"claim_type",
		"assurance_type",
		"token_url",
		"request_id":
		return true
	default:
		return false
	}
}
