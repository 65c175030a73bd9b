package security

import (
	"bytes"
	"context"
	"testing"

	"github.com/goliatone/go-faceverify/core"
)

func TestSecretSealer_SealOpenRoundTrip(t *testing.T) {
	sealer, err := NewSecretSealerFromString("super-secret-test-key", WithKeyID("faceverify-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	plaintext := []byte("api-secret-123")
	sealed, err := sealer.Seal(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatalf("expected sealed payload to hide plaintext")
	}
	if !IsSealed(string(sealed)) {
		t.Fatalf("expected envelope prefix")
	}

	opened, err := sealer.Open(context.Background(), sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("expected roundtrip plaintext, got %q", string(opened))
	}
}

func TestSecretSealer_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewSecretSealerFromString("super-secret-test-key", WithKeyID("faceverify-v1"))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	receiver, err := NewSecretSealerFromString("super-secret-test-key", WithKeyID("faceverify-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	sealed, err := issuer.Seal(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := receiver.Open(context.Background(), sealed); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestSecretSealer_RejectsWrongKey(t *testing.T) {
	issuer, _ := NewSecretSealerFromString("key-one")
	receiver, _ := NewSecretSealerFromString("key-two")
	sealed, err := issuer.Seal(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := receiver.Open(context.Background(), sealed); !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewSecretSealer_RequiresKey(t *testing.T) {
	if _, err := NewSecretSealer([]byte("  ")); !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveCredentials(t *testing.T) {
	sealer, _ := NewSecretSealerFromString("master")
	sealed, err := sealer.Seal(context.Background(), []byte("real-secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	cfg := core.DefaultConfig()
	cfg.Credentials = core.CredentialsConfig{APIKey: "key", APISecret: string(sealed)}
	resolved, err := ResolveCredentials(context.Background(), cfg, sealer)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Credentials.APISecret != "real-secret" {
		t.Fatalf("expected opened secret, got %q", resolved.Credentials.APISecret)
	}

	cfg.Credentials.APISecret = "plain"
	resolved, err = ResolveCredentials(context.Background(), cfg, nil)
	if err != nil || resolved.Credentials.APISecret != "plain" {
		t.Fatalf("expected plaintext passthrough, got %q err=%v", resolved.Credentials.APISecret, err)
	}

	cfg.Credentials.APISecret = string(sealed)
	if _, err := ResolveCredentials(context.Background(), cfg, nil); !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error without opener, got %v", err)
	}
}
