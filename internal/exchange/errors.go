package exchange

import (
	"errors"
	"fmt"
)

// UsageError reports a violation of the exchange lifecycle contract.
//
// Usage errors are deterministic and recoverable: the caller sequenced
// produce/close/drain/shutdown incorrectly and may log, fix the ordering
// and retry. They are never returned for correct steady-state use -
// Produce and Consume either complete or block, blocking is not an error.
type UsageError struct {
	// Code identifies the contract violation.
	Code UsageErrorCode

	// Message is a human-readable description.
	Message string
}

// UsageErrorCode categorizes usage errors.
type UsageErrorCode string

const (
	// ErrCodeInvalidCapacity indicates New was called with capacity < 1.
	ErrCodeInvalidCapacity UsageErrorCode = "INVALID_CAPACITY"

	// ErrCodeProduceAfterClose indicates Produce was called on, or was
	// still blocked inside, a closed exchange.
	ErrCodeProduceAfterClose UsageErrorCode = "PRODUCE_AFTER_CLOSE"

	// ErrCodeAlreadyClosed indicates Close was called twice.
	ErrCodeAlreadyClosed UsageErrorCode = "ALREADY_CLOSED"

	// ErrCodeShutdownOpen indicates Shutdown was called before Close.
	ErrCodeShutdownOpen UsageErrorCode = "SHUTDOWN_OPEN"

	// ErrCodeShutdownBusy indicates Shutdown was called while a producer
	// or consumer was still inside Produce or Consume.
	ErrCodeShutdownBusy UsageErrorCode = "SHUTDOWN_BUSY"

	// ErrCodeShutdownUndrained indicates Shutdown was called with
	// undelivered items still in the buffer.
	ErrCodeShutdownUndrained UsageErrorCode = "SHUTDOWN_UNDRAINED"

	// ErrCodeShutDown indicates an operation on an exchange after
	// Shutdown completed.
	ErrCodeShutDown UsageErrorCode = "EXCHANGE_SHUT_DOWN"
)

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUsageError returns true if the error is a UsageError.
// Uses errors.As to handle wrapped errors.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// UsageCode extracts the code from a (possibly wrapped) UsageError.
// Returns "" if the error is not a UsageError.
func UsageCode(err error) UsageErrorCode {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}

func newUsageError(code UsageErrorCode, format string, args ...any) *UsageError {
	return &UsageError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ResourceError reports that the synchronization primitives or slot
// storage for an exchange could not be allocated at startup. Fatal to the
// session: no partial state exists and the error is not retried internally.
type ResourceError struct {
	Capacity int
	Message  string
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	return fmt.Sprintf("RESOURCE_EXHAUSTED: %s (capacity=%d)", e.Message, e.Capacity)
}

// IsResourceExhausted returns true if the error is a ResourceError.
// Uses errors.As to handle wrapped errors.
func IsResourceExhausted(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
