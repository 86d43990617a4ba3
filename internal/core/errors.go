// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}
	ErrCollectorFailed  = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrInvalidBar       = &Error{Code: "INVALID_BAR", Message: "daily bar failed validation"}

	// Strategy errors
	ErrStrategyNotFound = &Error{Code: "STRATEGY_NOT_FOUND", Message: "strategy code not registered"}

	// Ledger integrity errors, fatal to the affected simulation
	ErrPositionExists   = &Error{Code: "POSITION_EXISTS", Message: "position already open for instrument"}
	ErrUnknownDirection = &Error{Code: "UNKNOWN_DIRECTION", Message: "position has no valid direction"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Output errors
	ErrJournalFailed = &Error{Code: "JOURNAL_FAILED", Message: "trade journal write failed"}
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "report archive failed"}
)

// IsDataIntegrity reports whether err signals corrupt ledger or upstream data.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrPositionExists) || errors.Is(err, ErrUnknownDirection)
}
