package faceverify

import (
	"fmt"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-faceverify/adapters/gocommand"
	fvcommand "github.com/goliatone/go-faceverify/command"
	"github.com/goliatone/go-faceverify/core"
	fvquery "github.com/goliatone/go-faceverify/query"
)

type CommandQueryService interface {
	fvcommand.VerificationService
	fvquery.SnapshotReader
}

type Commands struct {
	SubmitVerification *fvcommand.SubmitVerificationCommand
	CancelVerification *fvcommand.CancelVerificationCommand
}

type Queries struct {
	AttemptStatus *fvquery.AttemptStatusQuery
	ListAttempts  *fvquery.ListAttemptsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	attemptReader core.AttemptReader
}

// WithAttemptReader backs the ListAttempts query. Without it the query
// reports a missing dependency.
func WithAttemptReader(reader core.AttemptReader) FacadeOption {
	return func(options *facadeOptions) {
		options.attemptReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("faceverify: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitVerification: fvcommand.NewSubmitVerificationCommand(service),
		CancelVerification: fvcommand.NewCancelVerificationCommand(service),
	}
	facade.queries = Queries{
		AttemptStatus: fvquery.NewAttemptStatusQuery(service),
		ListAttempts:  fvquery.NewListAttemptsQuery(cfg.attemptReader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// RegisterDispatch registers every handler with registry and subscribes
// it on the go-command dispatcher. The returned func unsubscribes them.
func (f *Facade) RegisterDispatch(registry *command.Registry, runnerOpts ...runner.Option) (func(), error) {
	if f == nil {
		return nil, fmt.Errorf("faceverify: facade is nil")
	}
	binder := gocommand.NewBinder(registry, runnerOpts...)
	steps := []func() error{
		func() error { return gocommand.BindCommand(binder, f.commands.SubmitVerification) },
		func() error { return gocommand.BindCommand(binder, f.commands.CancelVerification) },
		func() error { return gocommand.BindQuery(binder, f.queries.AttemptStatus) },
		func() error { return gocommand.BindQuery(binder, f.queries.ListAttempts) },
		binder.Initialize,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			binder.Close()
			return nil, err
		}
	}
	return binder.Close, nil
}
