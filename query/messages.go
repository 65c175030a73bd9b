package query

import (
	"strings"

	"github.com/goliatone/go-faceverify/core"
)

const (
	TypeAttemptStatus = "faceverify.query.attempt.status"
	TypeListAttempts  = "faceverify.query.attempt.list"

	maxPerPage = 200
)

type AttemptStatusMessage struct{}

func (AttemptStatusMessage) Type() string { return TypeAttemptStatus }

func (AttemptStatusMessage) Validate() error { return nil }

type ListAttemptsMessage struct {
	Filter core.AttemptFilter
}

func (ListAttemptsMessage) Type() string { return TypeListAttempts }

func (m ListAttemptsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must not be negative")
	}
	if m.Filter.PerPage < 0 || m.Filter.PerPage > maxPerPage {
		return queryValidationError("per_page", "per_page must be between 0 and 200")
	}
	switch core.OutcomeKind(strings.TrimSpace(string(m.Filter.Outcome))) {
	case "", core.OutcomeSucceeded, core.OutcomeFailed, core.OutcomeErrored,
		core.OutcomeCanceled, core.OutcomeTokenFailure:
		return nil
	default:
		return queryValidationError("outcome", "unknown outcome")
	}
}
