package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap masks token-like keys before fields reach a logger.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	target := make(map[string]any, len(fields))
	for key, value := range fields {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			target[key] = RedactSensitiveMap(nested)
			continue
		}
		target[key] = value
	}
	return target
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "", "page_id", "token_expires_at", "token_expires_in_days", "token_status":
		return false
	}
	for _, marker := range []string{"token", "secret", "password", "authorization", "code"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
