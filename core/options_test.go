package core

import (
	"context"
	"testing"
)

func TestResolveConfig_LayersRuntimeOverLoaded(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"max_retries":        5,
		"claim_type":         "verify",
		"skip_scanning_tips": true,
		"credentials": map[string]any{
			"api_key":    "loaded-key",
			"api_secret": "loaded-secret",
		},
	}})

	cfg, err := ResolveConfig(context.Background(), Config{MaxRetries: 2}, provider, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.MaxRetries != 2 {
		t.Fatalf("expected runtime max_retries=2, got %d", cfg.MaxRetries)
	}
	if cfg.DefaultClaimType() != ClaimTypeVerify || !cfg.SkipScanningTips {
		t.Fatalf("expected loaded values, got %+v", cfg)
	}
	if cfg.Credentials.APIKey != "loaded-key" {
		t.Fatalf("expected loaded credentials, got %q", cfg.Credentials.APIKey)
	}
	if cfg.TokenURL != DefaultTokenURL || cfg.ServiceName != "faceverify" {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
}

func TestResolveConfig_MissingCredentialsIsConfigurationError(t *testing.T) {
	_, err := ResolveConfig(context.Background(), Config{}, nil, nil)
	if !IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestConfigValidate_RejectsBadEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.VerificationURL = "https://example.test/ws"
	if err := cfg.Validate(); !IsConfigurationError(err) {
		t.Fatalf("expected configuration error for http verification url, got %v", err)
	}
	cfg = testConfig()
	cfg.TokenURL = "not a url"
	if err := cfg.Validate(); !IsConfigurationError(err) {
		t.Fatalf("expected configuration error for token url, got %v", err)
	}
}

func TestNewOrchestrator_UsesLoggerOverrides(t *testing.T) {
	logger := newCaptureLogger()
	orchestrator, err := NewOrchestrator(testConfig(), newFakeTokenProvider(), newFakeSessionFactory(), nil,
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if orchestrator.logger != Logger(logger) {
		t.Fatalf("expected custom logger to be used")
	}
	if got := orchestrator.Config().MaxRetries; got != DefaultMaxRetries {
		t.Fatalf("expected default max retries, got %d", got)
	}
}
