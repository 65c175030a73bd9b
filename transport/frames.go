package transport

import (
	"errors"
	"strings"

	"github.com/goliatone/go-faceverify/core"
)

const (
	frameTypeStart  = "start"
	frameTypeCancel = "cancel"
)

type clientFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

type serverFrame struct {
	State        string  `json:"state"`
	Progress     float64 `json:"progress,omitempty"`
	Message      string  `json:"message,omitempty"`
	FeedbackCode string  `json:"feedback_code,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func (f serverFrame) toState() (core.SessionState, bool) {
	switch core.StateKind(strings.ToLower(strings.TrimSpace(f.State))) {
	case core.StateConnecting:
		return core.ConnectingState(), true
	case core.StateStreaming:
		return core.StreamingState(f.Progress, f.Message), true
	case core.StateProcessing:
		return core.ProcessingState(f.Progress, f.Message), true
	case core.StateSuccess:
		return core.SuccessState(), true
	case core.StateFailure:
		return core.FailureState(f.FeedbackCode, f.Reason), true
	case core.StateError:
		message := strings.TrimSpace(f.Error)
		if message == "" {
			message = strings.TrimSpace(f.Message)
		}
		if message == "" {
			message = "verification error"
		}
		return core.ErrorState(errors.New(message)), true
	case core.StateCanceled:
		return core.CanceledState(), true
	default:
		return core.SessionState{}, false
	}
}
