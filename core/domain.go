package core

import (
	"strings"
	"time"
)

type ClaimType string

const (
	ClaimTypeEnrol  ClaimType = "enrol"
	ClaimTypeVerify ClaimType = "verify"
)

func (c ClaimType) Valid() bool {
	switch c {
	case ClaimTypeEnrol, ClaimTypeVerify:
		return true
	default:
		return false
	}
}

func ParseClaimType(value string) (ClaimType, error) {
	claim := ClaimType(strings.ToLower(strings.TrimSpace(value)))
	if claim == "enroll" {
		claim = ClaimTypeEnrol
	}
	if !claim.Valid() {
		return "", NewValidationError("claim_type", "claim type must be enrol or verify")
	}
	return claim, nil
}

type AssuranceType string

const (
	AssuranceGenuinePresence AssuranceType = "genuine_presence"
	AssuranceLiveness        AssuranceType = "liveness"
)

func (a AssuranceType) Valid() bool {
	switch a {
	case AssuranceGenuinePresence, AssuranceLiveness:
		return true
	default:
		return false
	}
}

func ParseAssuranceType(value string) (AssuranceType, error) {
	assurance := AssuranceType(strings.ToLower(strings.TrimSpace(value)))
	assurance = AssuranceType(strings.ReplaceAll(string(assurance), "-", "_"))
	if !assurance.Valid() {
		return "", NewValidationError("assurance_type", "assurance type must be genuine_presence or liveness")
	}
	return assurance, nil
}

// VerificationRequest is built on submission and dropped once the token
// request completes.
type VerificationRequest struct {
	UserID        string
	ClaimType     ClaimType
	AssuranceType AssuranceType
}

func (r VerificationRequest) Validate() error {
	if NormalizeUserID(r.UserID) == "" {
		return NewValidationError("user_id", MessageInvalidUserID)
	}
	if !r.ClaimType.Valid() {
		return NewValidationError("claim_type", "claim type must be enrol or verify")
	}
	if !r.AssuranceType.Valid() {
		return NewValidationError("assurance_type", "assurance type must be genuine_presence or liveness")
	}
	return nil
}

func NormalizeUserID(userID string) string {
	return strings.TrimSpace(userID)
}

// Token is a single-use credential for creating exactly one session.
type Token string

func (t Token) Value() string {
	return string(t)
}

func (t Token) Empty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// String keeps tokens out of logs and fmt output.
func (t Token) String() string {
	if t.Empty() {
		return ""
	}
	return RedactedValue
}

type StateKind string

const (
	StateConnecting StateKind = "connecting"
	StateStreaming  StateKind = "streaming"
	StateProcessing StateKind = "processing"
	StateSuccess    StateKind = "success"
	StateFailure    StateKind = "failure"
	StateError      StateKind = "error"
	StateCanceled   StateKind = "canceled"
)

func (k StateKind) Terminal() bool {
	switch k {
	case StateSuccess, StateFailure, StateError, StateCanceled:
		return true
	default:
		return false
	}
}

type Progress struct {
	Fraction float64
	Message  string
}

type FailureReason struct {
	FeedbackCode string
	Description  string
}

type SessionState struct {
	Kind     StateKind
	Progress Progress
	Failure  *FailureReason
	Err      error
}

func (s SessionState) Terminal() bool {
	return s.Kind.Terminal()
}

func ConnectingState() SessionState {
	return SessionState{Kind: StateConnecting}
}

func StreamingState(fraction float64, message string) SessionState {
	return SessionState{Kind: StateStreaming, Progress: Progress{Fraction: clampFraction(fraction), Message: message}}
}

func ProcessingState(fraction float64, message string) SessionState {
	return SessionState{Kind: StateProcessing, Progress: Progress{Fraction: clampFraction(fraction), Message: message}}
}

func SuccessState() SessionState {
	return SessionState{Kind: StateSuccess, Progress: Progress{Fraction: 1}}
}

func FailureState(feedbackCode string, description string) SessionState {
	return SessionState{
		Kind: StateFailure,
		Failure: &FailureReason{
			FeedbackCode: strings.TrimSpace(feedbackCode),
			Description:  strings.TrimSpace(description),
		},
	}
}

func ErrorState(err error) SessionState {
	return SessionState{Kind: StateError, Err: err}
}

func CanceledState() SessionState {
	return SessionState{Kind: StateCanceled}
}

func clampFraction(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}

type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseRequestingToken Phase = "requesting_token"
	PhaseAwaitingTips    Phase = "awaiting_tips"
	PhaseSessionStarting Phase = "session_starting"
	PhaseObserving       Phase = "observing"
)

type OutcomeKind string

const (
	OutcomeSucceeded    OutcomeKind = "succeeded"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeErrored      OutcomeKind = "errored"
	OutcomeCanceled     OutcomeKind = "canceled"
	OutcomeTokenFailure OutcomeKind = "token_failure"
)

// Outcome is the terminal result of one attempt as handed to the presenter.
type Outcome struct {
	AttemptID    string
	Kind         OutcomeKind
	Title        string
	Message      string
	FeedbackCode string
	RetryCount   int
}

type OrchestratorSnapshot struct {
	Phase      Phase
	RetryCount int
	MaxRetries int
	AttemptID  string
}

func (s OrchestratorSnapshot) CanAttempt() bool {
	return s.RetryCount < s.MaxRetries
}

type AttemptRecord struct {
	ID            string
	AttemptID     string
	UserID        string
	ClaimType     ClaimType
	AssuranceType AssuranceType
	Outcome       OutcomeKind
	FeedbackCode  string
	Message       string
	RetryCount    int
	StartedAt     time.Time
	FinishedAt    time.Time
}

type AttemptFilter struct {
	UserID  string
	Outcome OutcomeKind
	Page    int
	PerPage int
}

type AttemptPage struct {
	Items   []AttemptRecord
	Page    int
	PerPage int
	Total   int
	HasNext bool
}
