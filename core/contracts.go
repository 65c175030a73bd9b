package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type TokenProvider interface {
	RequestToken(ctx context.Context, req VerificationRequest) (Token, error)
}

// SessionFactory creates a verification session bound to one token.
type SessionFactory interface {
	CreateSession(ctx context.Context, endpoint string, token Token) (Session, error)
}

// Session is one verification attempt. Observe must be called before Start
// so no transition is missed; the returned channel closes after the first
// terminal state or when ctx ends. Start may only succeed once.
type Session interface {
	Observe(ctx context.Context) (<-chan SessionState, error)
	Start() error
	Cancel()
}

// Presenter renders orchestrator output. Every method is invoked from the
// orchestrator's loop goroutine and must not block on it.
type Presenter interface {
	ShowProgress(progress Progress)
	HideProgress()
	ShowWarning(message string)
	// ShowScanningTips must eventually call acknowledge to continue the
	// attempt. Calls for a superseded attempt are ignored.
	ShowScanningTips(acknowledge func())
	ShowSuccess(outcome Outcome)
	ShowResult(outcome Outcome)
}

type AttemptRecorder interface {
	Record(ctx context.Context, record AttemptRecord) error
}

type AttemptReader interface {
	List(ctx context.Context, filter AttemptFilter) (AttemptPage, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
