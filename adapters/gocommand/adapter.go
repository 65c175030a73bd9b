package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// MessageNamespace prefixes every message type handled through this package.
const MessageNamespace = "faceverify."

var (
	ErrRegistryNotConfigured = errors.New("gocommand: registry is not configured")
	ErrBinderClosed          = errors.New("gocommand: binder is closed")
)

// ValidateMessageContract requires a namespaced Type() and runs Validate()
// when the message has one.
func ValidateMessageContract(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message %T must implement Type() string", msg)
	}
	kind := strings.TrimSpace(m.Type())
	if kind == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(kind, MessageNamespace) {
		return fmt.Errorf("gocommand: message type %q outside %q namespace", kind, MessageNamespace)
	}
	return command.ValidateMessage(msg)
}

// Binder registers handlers on a command registry, subscribes them on the
// global dispatcher and remembers the subscriptions so Close can drop them
// together.
type Binder struct {
	mu         sync.Mutex
	registry   *command.Registry
	runnerOpts []runner.Option
	subs       []commanddispatcher.Subscription
	closed     bool
}

func NewBinder(registry *command.Registry, runnerOpts ...runner.Option) *Binder {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Binder{registry: registry, runnerOpts: runnerOpts}
}

func (b *Binder) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

func (b *Binder) AddResolver(key string, resolver command.Resolver) error {
	if b == nil || b.registry == nil {
		return ErrRegistryNotConfigured
	}
	return b.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (b *Binder) HasResolver(key string) bool {
	if b == nil || b.registry == nil {
		return false
	}
	return b.registry.HasResolver(strings.TrimSpace(key))
}

// Len reports the live subscriptions.
func (b *Binder) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Initialize runs the registry resolvers. A failure drops every
// subscription made so far.
func (b *Binder) Initialize() error {
	if b == nil || b.registry == nil {
		return ErrRegistryNotConfigured
	}
	if err := b.registry.Initialize(); err != nil {
		b.Close()
		return err
	}
	return nil
}

// Close unsubscribes everything the binder subscribed. Safe to call twice.
func (b *Binder) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.closed = true
	b.mu.Unlock()
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

func (b *Binder) ready() error {
	if b == nil || b.registry == nil {
		return ErrRegistryNotConfigured
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBinderClosed
	}
	return nil
}

// bind keeps sub when register succeeds and drops it otherwise.
func (b *Binder) bind(sub commanddispatcher.Subscription, register func() error) error {
	if err := register(); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

func BindCommand[T any](b *Binder, cmd command.Commander[T]) error {
	if err := b.ready(); err != nil {
		return err
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	sub := commanddispatcher.SubscribeCommand(cmd, b.runnerOpts...)
	return b.bind(sub, func() error { return b.registry.RegisterCommand(cmd) })
}

func BindQuery[T any, R any](b *Binder, qry command.Querier[T, R]) error {
	if err := b.ready(); err != nil {
		return err
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	sub := commanddispatcher.SubscribeQuery(qry, b.runnerOpts...)
	return b.bind(sub, func() error { return b.registry.RegisterCommand(qry) })
}

// Dispatch checks the message contract before handing msg to the dispatcher.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
