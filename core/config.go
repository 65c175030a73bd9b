package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTokenURL            = "https://sg.rp.secure.iproov.me/api/v2/"
	DefaultVerificationURL     = "wss://sg.rp.secure.iproov.me/ws"
	DefaultMaxRetries          = 3
	defaultTokenTimeoutSeconds = 30
)

type CredentialsConfig struct {
	APIKey    string `koanf:"api_key" mapstructure:"api_key"`
	APISecret string `koanf:"api_secret" mapstructure:"api_secret"`
}

type Config struct {
	ServiceName                string            `koanf:"service_name" mapstructure:"service_name"`
	TokenURL                   string            `koanf:"token_url" mapstructure:"token_url"`
	VerificationURL            string            `koanf:"verification_url" mapstructure:"verification_url"`
	Credentials                CredentialsConfig `koanf:"credentials" mapstructure:"credentials"`
	ClaimType                  string            `koanf:"claim_type" mapstructure:"claim_type"`
	AssuranceType              string            `koanf:"assurance_type" mapstructure:"assurance_type"`
	MaxRetries                 int               `koanf:"max_retries" mapstructure:"max_retries"`
	TokenRequestTimeoutSeconds int               `koanf:"token_request_timeout_seconds" mapstructure:"token_request_timeout_seconds"`
	SkipScanningTips           bool              `koanf:"skip_scanning_tips" mapstructure:"skip_scanning_tips"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:                "faceverify",
		TokenURL:                   DefaultTokenURL,
		VerificationURL:            DefaultVerificationURL,
		ClaimType:                  string(ClaimTypeEnrol),
		AssuranceType:              string(AssuranceGenuinePresence),
		MaxRetries:                 DefaultMaxRetries,
		TokenRequestTimeoutSeconds: defaultTokenTimeoutSeconds,
	}
}

// Validate reports missing credentials as a configuration error so callers
// can halt before any workflow starts.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Credentials.APIKey) == "" || strings.TrimSpace(c.Credentials.APISecret) == "" {
		return NewConfigurationError("core: api_key and api_secret must be set")
	}
	if err := validateEndpoint("token_url", c.TokenURL, "https", "http"); err != nil {
		return err
	}
	if err := validateEndpoint("verification_url", c.VerificationURL, "wss", "ws"); err != nil {
		return err
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("core: max_retries must be positive")
	}
	if c.TokenRequestTimeoutSeconds < 0 {
		return fmt.Errorf("core: token_request_timeout_seconds must not be negative")
	}
	if _, err := ParseClaimType(c.ClaimType); err != nil {
		return err
	}
	if _, err := ParseAssuranceType(c.AssuranceType); err != nil {
		return err
	}
	return nil
}

func (c Config) DefaultClaimType() ClaimType {
	claim, err := ParseClaimType(c.ClaimType)
	if err != nil {
		return ClaimTypeEnrol
	}
	return claim
}

func (c Config) DefaultAssuranceType() AssuranceType {
	assurance, err := ParseAssuranceType(c.AssuranceType)
	if err != nil {
		return AssuranceGenuinePresence
	}
	return assurance
}

func (c Config) TokenRequestTimeout() time.Duration {
	if c.TokenRequestTimeoutSeconds <= 0 {
		return defaultTokenTimeoutSeconds * time.Second
	}
	return time.Duration(c.TokenRequestTimeoutSeconds) * time.Second
}

func validateEndpoint(field string, value string, schemes ...string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return NewConfigurationError(fmt.Sprintf("core: %s is required", field))
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return NewConfigurationError(fmt.Sprintf("core: %s is invalid", field))
	}
	scheme := strings.ToLower(parsed.Scheme)
	for _, allowed := range schemes {
		if scheme == allowed {
			return nil
		}
	}
	return NewConfigurationError(fmt.Sprintf("core: %s must use one of %s", field, strings.Join(schemes, ", ")))
}
