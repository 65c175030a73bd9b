package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type orchestratorBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	providerSet     bool
	metricsRecorder MetricsRecorder
	attemptRecorder AttemptRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	recordTimeout   time.Duration
	now             func() time.Time
	newAttemptID    func() string
}

type Option func(*orchestratorBuilder)

func WithLogger(logger Logger) Option {
	return func(b *orchestratorBuilder) {
		b.logger = logger
		if logger != nil && !b.providerSet {
			b.loggerProvider = glog.ProviderFromLogger(logger)
		}
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *orchestratorBuilder) {
		b.loggerProvider = provider
		b.providerSet = provider != nil
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *orchestratorBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithAttemptRecorder(recorder AttemptRecorder) Option {
	return func(b *orchestratorBuilder) {
		b.attemptRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *orchestratorBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *orchestratorBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRecordTimeout(timeout time.Duration) Option {
	return func(b *orchestratorBuilder) {
		if timeout > 0 {
			b.recordTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *orchestratorBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

func WithAttemptIDGenerator(next func() string) Option {
	return func(b *orchestratorBuilder) {
		if next != nil {
			b.newAttemptID = next
		}
	}
}

func defaultOrchestratorBuilder(runtime Config) orchestratorBuilder {
	loggerProvider, logger := glog.Resolve("faceverify", nil, nil)
	return orchestratorBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		recordTimeout:   defaultRecordTimeout,
		now:             func() time.Time { return time.Now().UTC() },
		newAttemptID:    newAttemptID,
	}
}

// ResolveConfig runs the same defaults < loaded < runtime layering the
// orchestrator uses, for callers that need the final config up front.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, mostly for tests and the CLI.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load builds a Config from raw values without validating it: credentials
// usually arrive in the runtime layer, so validation runs after merging.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = strings.TrimSpace(value)
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("token_url", cfg.TokenURL)
	setString("verification_url", cfg.VerificationURL)
	setString("claim_type", cfg.ClaimType)
	setString("assurance_type", cfg.AssuranceType)

	credentials := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Credentials.APIKey) != "" {
		credentials["api_key"] = strings.TrimSpace(cfg.Credentials.APIKey)
	}
	if includeZero || strings.TrimSpace(cfg.Credentials.APISecret) != "" {
		credentials["api_secret"] = strings.TrimSpace(cfg.Credentials.APISecret)
	}
	if len(credentials) > 0 {
		layer["credentials"] = credentials
	}

	if includeZero || cfg.MaxRetries > 0 {
		layer["max_retries"] = cfg.MaxRetries
	}
	if includeZero || cfg.TokenRequestTimeoutSeconds > 0 {
		layer["token_request_timeout_seconds"] = cfg.TokenRequestTimeoutSeconds
	}
	if includeZero || cfg.SkipScanningTips {
		layer["skip_scanning_tips"] = cfg.SkipScanningTips
	}
	return layer
}
