package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-faceverify/core"
)

// VerificationService is the orchestrator surface the commands drive.
type VerificationService interface {
	Config() core.Config
	SubmitRequest(ctx context.Context, req core.VerificationRequest) error
	Cancel(ctx context.Context) error
	Snapshot(ctx context.Context) (core.OrchestratorSnapshot, error)
}

type SubmitVerificationCommand struct {
	service VerificationService
}

func NewSubmitVerificationCommand(service VerificationService) *SubmitVerificationCommand {
	return &SubmitVerificationCommand{service: service}
}

// Execute submits the request and stores the post-submit snapshot in the
// result collector carried by ctx, if any.
func (c *SubmitVerificationCommand) Execute(ctx context.Context, msg SubmitVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	req, err := msg.Request(c.service.Config())
	if err != nil {
		return err
	}
	if err := c.service.SubmitRequest(ctx, req); err != nil {
		return err
	}
	snapshot, err := c.service.Snapshot(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, snapshot)
	return nil
}

type CancelVerificationCommand struct {
	service VerificationService
}

func NewCancelVerificationCommand(service VerificationService) *CancelVerificationCommand {
	return &CancelVerificationCommand{service: service}
}

func (c *CancelVerificationCommand) Execute(ctx context.Context, _ CancelVerificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	if err := c.service.Cancel(ctx); err != nil {
		return err
	}
	snapshot, err := c.service.Snapshot(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, snapshot)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
