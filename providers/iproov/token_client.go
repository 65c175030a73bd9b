package iproov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-faceverify/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20

	defaultResource = "com.goliatone.faceverify"
	defaultClient   = "go"
)

var ErrTokenRequestFailed = errors.New("providers/iproov: token request failed")

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TokenClientConfig struct {
	BaseURL             string
	APIKey              string
	APISecret           string
	Resource            string
	Client              string
	TokenRequestTimeout time.Duration
	HTTPClient          HTTPDoer
}

// TokenClient requests single-use verification tokens from the iProov
// claim token endpoint.
type TokenClient struct {
	config     TokenClientConfig
	httpClient HTTPDoer
}

func NewTokenClient(cfg TokenClientConfig) *TokenClient {
	timeout := cfg.TokenRequestTimeout
	if timeout <= 0 {
		timeout = defaultTokenRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	resource := strings.TrimSpace(cfg.Resource)
	if resource == "" {
		resource = defaultResource
	}
	client := strings.TrimSpace(cfg.Client)
	if client == "" {
		client = defaultClient
	}
	return &TokenClient{
		config: TokenClientConfig{
			BaseURL:             strings.TrimSpace(cfg.BaseURL),
			APIKey:              strings.TrimSpace(cfg.APIKey),
			APISecret:           strings.TrimSpace(cfg.APISecret),
			Resource:            resource,
			Client:              client,
			TokenRequestTimeout: timeout,
		},
		httpClient: httpClient,
	}
}

// NewTokenClientFromConfig builds a client from the resolved workflow config.
func NewTokenClientFromConfig(cfg core.Config, httpClient HTTPDoer) *TokenClient {
	return NewTokenClient(TokenClientConfig{
		BaseURL:             cfg.TokenURL,
		APIKey:              cfg.Credentials.APIKey,
		APISecret:           cfg.Credentials.APISecret,
		TokenRequestTimeout: cfg.TokenRequestTimeout(),
		HTTPClient:          httpClient,
	})
}

func (c *TokenClient) RequestToken(ctx context.Context, req core.VerificationRequest) (core.Token, error) {
	if c == nil || c.httpClient == nil {
		return "", &core.TokenRequestError{Cause: fmt.Errorf("%w: http client is not configured", ErrTokenRequestFailed)}
	}
	if c.config.APIKey == "" || c.config.APISecret == "" {
		return "", core.NewConfigurationError("providers/iproov: api key and secret are required")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	endpoint, err := claimTokenURL(c.config.BaseURL, req.ClaimType)
	if err != nil {
		return "", core.NewConfigurationError(err.Error())
	}

	body, err := json.Marshal(map[string]any{
		"api_key":        c.config.APIKey,
		"secret":         c.config.APISecret,
		"resource":       c.config.Resource,
		"client":         c.config.Client,
		"user_id":        core.NormalizeUserID(req.UserID),
		"assurance_type": string(req.AssuranceType),
	})
	if err != nil {
		return "", &core.TokenRequestError{Cause: err}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.config.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.config.TokenRequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &core.TokenRequestError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &core.TokenRequestError{Cause: err}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if err != nil {
		return "", &core.TokenRequestError{StatusCode: response.StatusCode, Cause: err}
	}
	if int64(len(raw)) > maxTokenResponseBodyBytes {
		return "", &core.TokenRequestError{
			StatusCode: response.StatusCode,
			Cause:      fmt.Errorf("%w: response exceeds %d bytes", ErrTokenRequestFailed, maxTokenResponseBodyBytes),
		}
	}

	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", &core.TokenRequestError{StatusCode: response.StatusCode, Cause: err}
		}
	}

	errorCode := readAnyString(payload["error"])
	errorDescription := readAnyString(payload["error_description"])
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices || errorCode != "" {
		return "", &core.TokenRequestError{
			StatusCode:  response.StatusCode,
			ErrorCode:   errorCode,
			Description: errorDescription,
			Cause:       ErrTokenRequestFailed,
		}
	}

	token := readAnyString(payload["token"])
	if token == "" {
		return "", &core.TokenRequestError{
			StatusCode: response.StatusCode,
			Cause:      fmt.Errorf("%w: response missing token", ErrTokenRequestFailed),
		}
	}
	return core.Token(token), nil
}

func claimTokenURL(base string, claim core.ClaimType) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("providers/iproov: invalid token url %q", base)
	}
	if !claim.Valid() {
		return "", fmt.Errorf("providers/iproov: invalid claim type %q", claim)
	}
	return parsed.JoinPath("claim", string(claim), "token").String(), nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

var _ core.TokenProvider = (*TokenClient)(nil)
