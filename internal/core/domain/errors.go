// Package domain defines the session entities that survive a power cycle.
package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error carrying a stable, structured error code.
//
// Codes have the form PR-<AREA>-<NNNN>. Two DomainErrors match under
// errors.Is when their codes are equal, so callers compare against the
// package-level sentinels even after WithDetails or WithCause.
type DomainError struct {
	Code    string // Error code (e.g., "PR-SNAP-4131")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrRegionOverflow indicates an encoded collection does not fit its region.
	ErrRegionOverflow = NewDomainError("PR-SNAP-4131", "region capacity exceeded")

	// ErrTruncatedData indicates the retained bytes end before the declared content.
	// A region whose header is missing, stale or invalidated is reported with this
	// code as well, so callers discard it and start empty.
	ErrTruncatedData = NewDomainError("PR-SNAP-4221", "truncated retained data")

	// ErrCorruptCount indicates a declared count cannot possibly fit its region.
	ErrCorruptCount = NewDomainError("PR-SNAP-4222", "corrupt entity count")

	// ErrCorruptValue indicates a decoded field holds a value outside its domain.
	ErrCorruptValue = NewDomainError("PR-SNAP-4223", "corrupt field value")

	// ErrUnresolvedCallback indicates a persisted callback or codec id has no
	// live registration.
	ErrUnresolvedCallback = NewDomainError("PR-SNAP-4241", "unresolved callback")

	// ErrStringEncoding indicates a string field contains a zero byte.
	ErrStringEncoding = NewDomainError("PR-SNAP-4001", "string contains terminator byte")

	// ErrLayoutInvalid indicates the region table cannot be built.
	ErrLayoutInvalid = NewDomainError("PR-SNAP-4002", "invalid region layout")

	// ErrUnknownRegion indicates a collection name with no region.
	ErrUnknownRegion = NewDomainError("PR-SNAP-4041", "unknown region")

	// ErrInvalidPhase indicates snapshot or restore was called from the wrong phase.
	ErrInvalidPhase = NewDomainError("PR-SNAP-4091", "operation not allowed in current phase")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrNotFound indicates the referenced entity does not exist in the session.
	ErrNotFound = NewDomainError("PR-SESS-4040", "entity not found")

	// ErrSessionQuiesced indicates the session is stopped for snapshot/restore.
	ErrSessionQuiesced = NewDomainError("PR-SESS-4092", "session is quiesced")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("PR-SESS-4001", "invalid argument")
)

// ============================================================================
// Binding Errors (BIND)
// ============================================================================

var (
	// ErrRegistryConflict indicates an id is already bound to another registration.
	ErrRegistryConflict = NewDomainError("PR-BIND-4090", "registration id conflict")
)
