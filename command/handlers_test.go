package command

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-faceverify/core"
)

type stubVerificationService struct {
	config    core.Config
	submitFn  func(ctx context.Context, req core.VerificationRequest) error
	cancelFn  func(ctx context.Context) error
	snapshot  core.OrchestratorSnapshot
	submitted []core.VerificationRequest
}

func (s *stubVerificationService) Config() core.Config { return s.config }

func (s *stubVerificationService) SubmitRequest(ctx context.Context, req core.VerificationRequest) error {
	s.submitted = append(s.submitted, req)
	if s.submitFn != nil {
		return s.submitFn(ctx, req)
	}
	return nil
}

func (s *stubVerificationService) Cancel(ctx context.Context) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx)
	}
	return nil
}

func (s *stubVerificationService) Snapshot(context.Context) (core.OrchestratorSnapshot, error) {
	return s.snapshot, nil
}

func TestSubmitVerificationCommand_UsesConfigDefaultsAndStoresSnapshot(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.ClaimType = string(core.ClaimTypeVerify)
	svc := &stubVerificationService{
		config:   cfg,
		snapshot: core.OrchestratorSnapshot{Phase: core.PhaseRequestingToken, MaxRetries: 3, AttemptID: "a1"},
	}

	cmd := NewSubmitVerificationCommand(svc)
	collector := gocmd.NewResult[core.OrchestratorSnapshot]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, SubmitVerificationMessage{UserID: "user-1"}); err != nil {
		t.Fatalf("execute submit: %v", err)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.submitted))
	}
	req := svc.submitted[0]
	if req.UserID != "user-1" || req.ClaimType != core.ClaimTypeVerify || req.AssuranceType != core.AssuranceGenuinePresence {
		t.Fatalf("unexpected request: %#v", req)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected snapshot to be stored")
	}
	if result.AttemptID != "a1" || result.Phase != core.PhaseRequestingToken {
		t.Fatalf("unexpected snapshot: %#v", result)
	}
}

func TestSubmitVerificationCommand_MessageOverridesDefaults(t *testing.T) {
	svc := &stubVerificationService{config: core.DefaultConfig()}
	cmd := NewSubmitVerificationCommand(svc)

	err := cmd.Execute(context.Background(), SubmitVerificationMessage{
		UserID:        "user-2",
		ClaimType:     "verify",
		AssuranceType: "liveness",
	})
	if err != nil {
		t.Fatalf("execute submit: %v", err)
	}
	req := svc.submitted[0]
	if req.ClaimType != core.ClaimTypeVerify || req.AssuranceType != core.AssuranceLiveness {
		t.Fatalf("expected overrides to apply, got %#v", req)
	}
}

func TestSubmitVerificationCommand_PropagatesServiceError(t *testing.T) {
	limitErr := core.NewRetryLimitError(3, 3)
	svc := &stubVerificationService{
		config: core.DefaultConfig(),
		submitFn: func(context.Context, core.VerificationRequest) error {
			return limitErr
		},
	}
	collector := gocmd.NewResult[core.OrchestratorSnapshot]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewSubmitVerificationCommand(svc).Execute(ctx, SubmitVerificationMessage{UserID: "user-3"})
	if !core.IsRetryLimitError(err) {
		t.Fatalf("expected retry limit error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no stored result on failure")
	}
}

func TestCancelVerificationCommand_Delegates(t *testing.T) {
	called := false
	svc := &stubVerificationService{
		config: core.DefaultConfig(),
		cancelFn: func(context.Context) error {
			called = true
			return nil
		},
		snapshot: core.OrchestratorSnapshot{Phase: core.PhaseIdle, MaxRetries: 3},
	}
	collector := gocmd.NewResult[core.OrchestratorSnapshot]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewCancelVerificationCommand(svc).Execute(ctx, CancelVerificationMessage{}); err != nil {
		t.Fatalf("execute cancel: %v", err)
	}
	if !called {
		t.Fatalf("expected cancel to reach the service")
	}
	if result, ok := collector.Load(); !ok || result.Phase != core.PhaseIdle {
		t.Fatalf("unexpected stored snapshot: %#v ok=%v", result, ok)
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "blank submit", msg: SubmitVerificationMessage{}},
		{name: "enroll alias", msg: SubmitVerificationMessage{UserID: "u", ClaimType: "enroll"}},
		{name: "bad claim", msg: SubmitVerificationMessage{UserID: "u", ClaimType: "login"}, wantErr: true},
		{name: "bad assurance", msg: SubmitVerificationMessage{UserID: "u", AssuranceType: "face"}, wantErr: true},
		{name: "cancel", msg: CancelVerificationMessage{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	if (SubmitVerificationMessage{}).Type() != TypeSubmitVerification {
		t.Fatalf("unexpected submit type")
	}
	if (CancelVerificationMessage{}).Type() != TypeCancelVerification {
		t.Fatalf("unexpected cancel type")
	}
}
