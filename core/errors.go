package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration         = "FACEVERIFY_CONFIGURATION_ERROR"
	ErrorValidation            = "FACEVERIFY_VALIDATION_ERROR"
	ErrorRetryLimitReached     = "FACEVERIFY_RETRY_LIMIT_REACHED"
	ErrorTokenRequestFailed    = "FACEVERIFY_TOKEN_REQUEST_FAILED"
	ErrorSessionStart          = "FACEVERIFY_SESSION_START_ERROR"
	ErrorVerificationFailure   = "FACEVERIFY_VERIFICATION_FAILURE"
	ErrorVerificationError     = "FACEVERIFY_VERIFICATION_ERROR"
	ErrorVerificationCanceled  = "FACEVERIFY_VERIFICATION_CANCELED"
	ErrorOrchestratorClosed    = "FACEVERIFY_ORCHESTRATOR_CLOSED"
	ErrorInternal              = "FACEVERIFY_INTERNAL_ERROR"
	MessageInvalidUserID       = "Please enter a valid user ID."
	MessageRetryLimitReached   = "Maximum retry attempts reached."
	MessageFailedToGetToken    = "Failed to get token"
	TitleError                 = "Error"
	TitleFailure               = "Failure"
	TitleCanceled              = "Canceled"
	TitleSuccess               = "Success"
	defaultSessionStartMessage = "session could not be started"
)

var (
	ErrSessionAlreadyStarted = errors.New("core: session cannot be started twice")
	ErrOrchestratorClosed    = errors.New("core: orchestrator is closed")
	ErrOrchestratorRunning   = errors.New("core: orchestrator loop already running")
)

// TokenRequestError is returned by token providers for both remote
// rejections and transport failures. Description is safe to display.
type TokenRequestError struct {
	StatusCode  int
	ErrorCode   string
	Description string
	Cause       error
}

func (e *TokenRequestError) Error() string {
	if e == nil {
		return "token request failed"
	}
	base := "token request failed"
	if code := strings.TrimSpace(e.ErrorCode); code != "" {
		base += ": " + code
	}
	if description := strings.TrimSpace(e.Description); description != "" {
		base += ": " + description
	}
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

func (e *TokenRequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// DisplayMessage is the text shown to the user for a failed token request.
func (e *TokenRequestError) DisplayMessage() string {
	if e == nil || strings.TrimSpace(e.Description) == "" {
		return MessageFailedToGetToken
	}
	return strings.TrimSpace(e.Description)
}

func NewConfigurationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration).
		WithSeverity(goerrors.SeverityCritical)
}

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidation)
}

func NewRetryLimitError(count int, max int) *goerrors.Error {
	return goerrors.New(MessageRetryLimitReached, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRetryLimitReached).
		WithMetadata(map[string]any{
			"retry_count": count,
			"max_retries": max,
		})
}

func NewSessionStartError(cause error) *goerrors.Error {
	if cause == nil {
		cause = errors.New(defaultSessionStartMessage)
	}
	return goerrors.Wrap(cause, goerrors.CategoryOperation, "core: session start failed").
		WithCode(http.StatusConflict).
		WithTextCode(ErrorSessionStart)
}

// NewTransportError builds the envelope a session transport reports. Its
// text code follows the session lifecycle: operation failures are start
// errors, external ones surface as verification errors.
func NewTransportError(source error, category goerrors.Category, message string, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(categoryHTTPStatus(category)).WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryOperation:
		return ErrorSessionStart
	case goerrors.CategoryExternal:
		return ErrorVerificationError
	default:
		return defaultTextCode(category)
	}
}

func newClosedError() *goerrors.Error {
	return goerrors.Wrap(ErrOrchestratorClosed, goerrors.CategoryOperation, "core: orchestrator unavailable").
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(ErrorOrchestratorClosed)
}

// MapError converts any error raised by the verification workflow into the
// go-errors envelope used at package boundaries.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	var tokenErr *TokenRequestError
	if goerrors.As(err, &tokenErr) {
		code := http.StatusBadGateway
		if tokenErr.StatusCode > 0 {
			code = tokenErr.StatusCode
		}
		return ensureErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryExternal, tokenErr.DisplayMessage()).
				WithCode(code).
				WithTextCode(ErrorTokenRequestFailed),
		)
	}

	switch {
	case errors.Is(err, ErrSessionAlreadyStarted):
		return ensureErrorEnvelope(NewSessionStartError(err))
	case errors.Is(err, ErrOrchestratorClosed):
		return ensureErrorEnvelope(newClosedError())
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// IsValidationError reports whether err was raised for bad submission input.
func IsValidationError(err error) bool {
	return hasTextCode(err, ErrorValidation)
}

func IsRetryLimitError(err error) bool {
	return hasTextCode(err, ErrorRetryLimitReached)
}

func IsConfigurationError(err error) bool {
	return hasTextCode(err, ErrorConfiguration)
}

func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryRateLimit:
		return ErrorRetryLimitReached
	case goerrors.CategoryExternal:
		return ErrorTokenRequestFailed
	case goerrors.CategoryOperation:
		return ErrorVerificationError
	default:
		return ErrorInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
