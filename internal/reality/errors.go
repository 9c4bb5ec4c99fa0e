package reality

import (
	"errors"
	"fmt"
)

// Error is a structured engine error. Structural failures abort the call
// with one of these; degraded-but-completed outcomes ride in result fields
// instead and never become an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ConstructID identifies the affected construct, when known.
	ConstructID string

	// OperationID identifies the affected operation, when known.
	OperationID string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeNotFound indicates a referenced construct is not registered.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeValidationFailed indicates malformed input: out-of-range health
	// scores, blank ids, empty payloads, expired deadlines.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// CodeOperationQueueEmpty indicates there was nothing to execute or
	// roll back.
	CodeOperationQueueEmpty ErrorCode = "OPERATION_QUEUE_EMPTY"

	// CodeStabilityCritical indicates instability above the critical
	// threshold with no viable remediation plan.
	CodeStabilityCritical ErrorCode = "STABILITY_CRITICAL"

	// CodeSynchronizationFailed indicates a coordination round could not
	// reach the requested construct set.
	CodeSynchronizationFailed ErrorCode = "SYNCHRONIZATION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ConstructID != "" && e.OperationID != "":
		return fmt.Sprintf("%s: %s (construct=%s, operation=%s)", e.Code, e.Message, e.ConstructID, e.OperationID)
	case e.ConstructID != "":
		return fmt.Sprintf("%s: %s (construct=%s)", e.Code, e.Message, e.ConstructID)
	case e.OperationID != "":
		return fmt.Sprintf("%s: %s (operation=%s)", e.Code, e.Message, e.OperationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode reports whether err is or wraps an Error with the given code.
// Uses errors.As so wrapped errors match.
func HasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing-construct error.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsValidationFailed reports whether err is a validation error.
func IsValidationFailed(err error) bool { return HasCode(err, CodeValidationFailed) }

// IsQueueEmpty reports whether err is an empty-queue error.
func IsQueueEmpty(err error) bool { return HasCode(err, CodeOperationQueueEmpty) }

// IsStabilityCritical reports whether err is a critical-instability error.
func IsStabilityCritical(err error) bool { return HasCode(err, CodeStabilityCritical) }

// IsSynchronizationFailed reports whether err is a failed-coordination error.
func IsSynchronizationFailed(err error) bool { return HasCode(err, CodeSynchronizationFailed) }

// NewNotFound creates a NOT_FOUND error for a construct id.
func NewNotFound(constructID string) *Error {
	return &Error{
		Code:        CodeNotFound,
		Message:     "construct is not registered",
		ConstructID: constructID,
	}
}

// NewValidationError creates a VALIDATION_FAILED error.
func NewValidationError(message, constructID string) *Error {
	return &Error{
		Code:        CodeValidationFailed,
		Message:     message,
		ConstructID: constructID,
	}
}

// NewQueueEmptyError creates an OPERATION_QUEUE_EMPTY error.
func NewQueueEmptyError(message string) *Error {
	return &Error{
		Code:    CodeOperationQueueEmpty,
		Message: message,
	}
}

// NewStabilityCriticalError creates a STABILITY_CRITICAL error carrying
// the measured overall instability.
func NewStabilityCriticalError(constructID string, overall float64) *Error {
	return &Error{
		Code:        CodeStabilityCritical,
		Message:     "instability above critical threshold with no viable plan",
		ConstructID: constructID,
		Details: map[string]string{
			"overall_instability": fmt.Sprintf("%.4f", overall),
		},
	}
}

// NewSynchronizationFailedError creates a SYNCHRONIZATION_FAILED error.
func NewSynchronizationFailedError(message string, details map[string]string) *Error {
	return &Error{
		Code:    CodeSynchronizationFailed,
		Message: message,
		Details: details,
	}
}

func opValidationError(operationID, message string) *Error {
	return &Error{
		Code:        CodeValidationFailed,
		Message:     message,
		OperationID: operationID,
	}
}
