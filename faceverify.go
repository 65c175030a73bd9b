package faceverify

import (
	"context"

	"github.com/goliatone/go-faceverify/adapters/gologger"
	"github.com/goliatone/go-faceverify/core"
	"github.com/goliatone/go-faceverify/providers/iproov"
	"github.com/goliatone/go-faceverify/transport"
	glog "github.com/goliatone/go-logger/glog"
)

type Config = core.Config

type CredentialsConfig = core.CredentialsConfig

type Option = core.Option

type Orchestrator = core.Orchestrator

type Presenter = core.Presenter

type Outcome = core.Outcome

type VerificationRequest = core.VerificationRequest

type AttemptFilter = core.AttemptFilter

type AttemptPage = core.AttemptPage

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithAttemptRecorder    = core.WithAttemptRecorder
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithRecordTimeout      = core.WithRecordTimeout
	WithClock              = core.WithClock
	WithAttemptIDGenerator = core.WithAttemptIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Runtime carries the collaborators NewIProovOrchestrator builds the
// token client and session factory with. Zero values pick defaults.
type Runtime struct {
	HTTPClient     iproov.HTTPDoer
	LoggerProvider glog.LoggerProvider
}

// NewIProovOrchestrator wires the HTTP token client and websocket session
// factory for cfg. The returned orchestrator still has to be started.
func NewIProovOrchestrator(
	ctx context.Context,
	cfg Config,
	presenter Presenter,
	runtime Runtime,
	opts ...Option,
) (*Orchestrator, error) {
	resolved, err := core.ResolveConfig(ctx, cfg, nil, nil)
	if err != nil {
		return nil, core.MapError(err)
	}
	provider, _ := gologger.Resolve("faceverify", runtime.LoggerProvider, nil)

	tokens := iproov.NewTokenClientFromConfig(resolved, runtime.HTTPClient)
	sessions := transport.NewWebsocketSessionFactory(gologger.Named(provider, "transport"))

	if runtime.LoggerProvider != nil {
		opts = append([]Option{core.WithLoggerProvider(runtime.LoggerProvider)}, opts...)
	}
	return core.NewOrchestrator(resolved, tokens, sessions, presenter, opts...)
}
