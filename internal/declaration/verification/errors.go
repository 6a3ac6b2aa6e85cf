package verification

import (
	"context"
	"errors"
	"fmt"

	"verdant/internal/declaration/models"
	"verdant/pkg/platform/sentinel"
)

// ErrorCategory is the normalized failure taxonomy of verification calls.
type ErrorCategory string

const (
	// ErrorTimeout: the stage exceeded its bound
	ErrorTimeout ErrorCategory = "timeout"
	// ErrorProviderOutage: the service is unreachable or failing
	ErrorProviderOutage ErrorCategory = "provider_outage"
	// ErrorRateLimited: the service throttled the call
	ErrorRateLimited ErrorCategory = "rate_limited"
	// ErrorBadData: the service rejected the geo file or answered outside the contract
	ErrorBadData ErrorCategory = "bad_data"
	// ErrorInternal: anything else
	ErrorInternal ErrorCategory = "internal"
)

// Error is a failed stage. The stage stays pending until the run is retried.
type Error struct {
	Stage      models.Stage
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s check [%s]: %s: %v", e.Stage, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s check [%s]: %s", e.Stage, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a normalized stage error.
func NewError(stage models.Stage, category ErrorCategory, message string, underlying error) *Error {
	return &Error{
		Stage:      stage,
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  category != ErrorBadData,
	}
}

// Classify normalizes any error returned by a VerificationService call.
func Classify(stage models.Stage, err error) *Error {
	var ve *Error
	if errors.As(err, &ve) {
		c := *ve
		c.Stage = stage
		return &c
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(stage, ErrorTimeout, "stage did not finish within its bound", err)
	case errors.Is(err, sentinel.ErrUnavailable):
		return NewError(stage, ErrorProviderOutage, "verification service unavailable", err)
	default:
		return NewError(stage, ErrorInternal, "verification call failed", err)
	}
}

// IsRetryable reports whether err is a retryable stage error.
func IsRetryable(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// CategoryOf extracts the error category from an error.
func CategoryOf(err error) ErrorCategory {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ErrorInternal
}
