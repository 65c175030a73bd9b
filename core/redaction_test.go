package core

import (
	"fmt"
	"testing"
)

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"attempt_id":    "att_1",
		"user_id":       "alice",
		"token_url":     "https://example.test/api/v2/",
		"token":         Token("tok_1"),
		"api_secret":    "shh",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"api_key": "key_1", "claim_type": "enrol"},
		"events":        []any{map[string]any{"credentials": "c"}, "plain"},
		"session_value": Token("tok_2"),
	})

	if redacted["attempt_id"] != "att_1" || redacted["user_id"] != "alice" {
		t.Fatalf("expected traceability keys to remain visible, got %#v", redacted)
	}
	if redacted["token_url"] != "https://example.test/api/v2/" {
		t.Fatalf("expected token_url to remain visible, got %#v", redacted["token_url"])
	}
	for _, key := range []string{"token", "api_secret", "authorization"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	if redacted["session_value"] != RedactedValue {
		t.Fatalf("expected token values to be redacted by type, got %#v", redacted["session_value"])
	}
	nested := redacted["nested"].(map[string]any)
	if nested["api_key"] != RedactedValue || nested["claim_type"] != "enrol" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	events := redacted["events"].([]any)
	if events[0].(map[string]any)["credentials"] != RedactedValue || events[1] != "plain" {
		t.Fatalf("unexpected slice redaction: %#v", events)
	}
}

func TestTokenFormattingIsRedacted(t *testing.T) {
	token := Token("super-secret-token")
	if got := fmt.Sprintf("%v", token); got != RedactedValue {
		t.Fatalf("expected redacted formatting, got %q", got)
	}
	if token.Value() != "super-secret-token" {
		t.Fatalf("expected raw value to be retrievable")
	}
	if Token("").String() != "" {
		t.Fatalf("expected empty token to format as empty")
	}
}

func TestRedactSensitiveMapHandlesStringMaps(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"headers": map[string]string{"Authorization": "Bearer x", "Accept": "application/json"},
		"master_key_ref": "vault://faceverify",
	})
	headers := redacted["headers"].(map[string]any)
	if headers["Authorization"] != RedactedValue || headers["Accept"] != "application/json" {
		t.Fatalf("unexpected header redaction: %#v", headers)
	}
	if redacted["master_key_ref"] != RedactedValue {
		t.Fatalf("expected master key reference to be redacted")
	}
}
