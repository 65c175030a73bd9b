package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-faceverify/core"
	"github.com/goliatone/go-faceverify/security"
)

const (
	envAPIKey          = "FACEVERIFY_API_KEY"
	envAPISecret       = "FACEVERIFY_API_SECRET"
	envMasterKey       = "FACEVERIFY_MASTER_KEY"
	envTokenURL        = "FACEVERIFY_TOKEN_URL"
	envVerificationURL = "FACEVERIFY_VERIFICATION_URL"
	envMaxRetries      = "FACEVERIFY_MAX_RETRIES"
	envDBDriver        = "FACEVERIFY_DB_DRIVER"
	envDBDSN           = "FACEVERIFY_DB_DSN"
)

type cliOptions struct {
	userID          string
	claimType       string
	assuranceType   string
	tokenURL        string
	verificationURL string
	maxRetries      int
	skipTips        bool
	dbDriver        string
	dbDSN           string
	history         bool
	historyLimit    int
	logLevel        string
}

// envLayer maps environment variables onto the raw config shape.
func envLayer(getenv func(string) string) map[string]any {
	raw := map[string]any{}
	if v := strings.TrimSpace(getenv(envTokenURL)); v != "" {
		raw["token_url"] = v
	}
	if v := strings.TrimSpace(getenv(envVerificationURL)); v != "" {
		raw["verification_url"] = v
	}
	if v := strings.TrimSpace(getenv(envMaxRetries)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			raw["max_retries"] = n
		}
	}
	credentials := map[string]any{}
	if v := strings.TrimSpace(getenv(envAPIKey)); v != "" {
		credentials["api_key"] = v
	}
	if v := strings.TrimSpace(getenv(envAPISecret)); v != "" {
		credentials["api_secret"] = v
	}
	if len(credentials) > 0 {
		raw["credentials"] = credentials
	}
	return raw
}

func runtimeLayer(opts cliOptions) core.Config {
	return core.Config{
		TokenURL:         opts.tokenURL,
		VerificationURL:  opts.verificationURL,
		ClaimType:        opts.claimType,
		AssuranceType:    opts.assuranceType,
		MaxRetries:       opts.maxRetries,
		SkipScanningTips: opts.skipTips,
	}
}

// loadConfig layers defaults < environment < flags and opens a sealed api
// secret with the master key when one is configured.
func loadConfig(ctx context.Context, opts cliOptions, getenv func(string) string) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(core.StaticConfigLoader(envLayer(getenv)))
	cfg, err := core.ResolveConfig(ctx, runtimeLayer(opts), provider, core.GoOptionsResolver{})
	if err != nil {
		return core.Config{}, err
	}

	var opener security.SecretOpener
	if masterKey := strings.TrimSpace(getenv(envMasterKey)); masterKey != "" {
		sealer, err := security.NewSecretSealerFromString(masterKey)
		if err != nil {
			return core.Config{}, err
		}
		opener = sealer
	}
	return security.ResolveCredentials(ctx, cfg, opener)
}

func storageConfig(opts cliOptions, getenv func(string) string) dbConfig {
	cfg := dbConfig{driver: opts.dbDriver, dsn: opts.dbDSN}
	if strings.TrimSpace(cfg.driver) == "" {
		cfg.driver = getenv(envDBDriver)
	}
	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = getenv(envDBDSN)
	}
	cfg.driver = strings.TrimSpace(cfg.driver)
	cfg.dsn = strings.TrimSpace(cfg.dsn)
	return cfg
}
