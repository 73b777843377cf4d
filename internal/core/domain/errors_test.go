package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("PR-TEST-1000", "test message"),
			expected: "[PR-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("PR-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[PR-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("PR-TEST-1000", "message 1")
	err2 := NewDomainError("PR-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("PR-TEST-1001", "message 1") // Different code

	// Same code should match
	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}

	// Different code should not match
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}

	// Should not match non-DomainError
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("PR-TEST-1000", "wrapper").WithCause(cause)

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Without cause
	errNoCause := NewDomainError("PR-TEST-1000", "no cause")
	if errors.Unwrap(errNoCause) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	original := NewDomainError("PR-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	// Check original is unchanged
	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}

	// Check new error has details
	if withDetails.Details != "additional details" {
		t.Errorf("Details = %q, want %q", withDetails.Details, "additional details")
	}

	// Check code and message are preserved
	if withDetails.Code != original.Code {
		t.Errorf("Code = %q, want %q", withDetails.Code, original.Code)
	}
	if withDetails.Message != original.Message {
		t.Errorf("Message = %q, want %q", withDetails.Message, original.Message)
	}
}

func TestDomainError_WithCause(t *testing.T) {
	original := NewDomainError("PR-TEST-1000", "original message")
	cause := fmt.Errorf("root cause")
	withCause := original.WithCause(cause)

	// Check original is unchanged
	if original.Cause != nil {
		t.Error("WithCause should not modify original error")
	}

	// Check new error has cause
	if withCause.Cause != cause {
		t.Errorf("Cause = %v, want %v", withCause.Cause, cause)
	}

	// Check code and message are preserved
	if withCause.Code != original.Code {
		t.Errorf("Code = %q, want %q", withCause.Code, original.Code)
	}
}

func TestIsDomainError(t *testing.T) {
	err := ErrRegionOverflow

	if !IsDomainError(err, "PR-SNAP-4131") {
		t.Error("IsDomainError should return true for matching code")
	}

	if IsDomainError(err, "PR-SNAP-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}

	if IsDomainError(fmt.Errorf("regular error"), "PR-SNAP-4131") {
		t.Error("IsDomainError should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("snapshot: %w", ErrRegionOverflow.WithDetails("region pending_queries"))
	if !IsDomainError(wrapped, "PR-SNAP-4131") {
		t.Error("IsDomainError should work with wrapped errors")
	}
	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "domain error",
			err:      ErrTruncatedData,
			expected: "PR-SNAP-4221",
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("wrapped: %w", ErrUnresolvedCallback),
			expected: "PR-SNAP-4241",
		},
		{
			name:     "regular error",
			err:      fmt.Errorf("regular error"),
			expected: "",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrRegionOverflow, "PR-SNAP-4131"},
		{ErrTruncatedData, "PR-SNAP-4221"},
		{ErrCorruptCount, "PR-SNAP-4222"},
		{ErrCorruptValue, "PR-SNAP-4223"},
		{ErrUnresolvedCallback, "PR-SNAP-4241"},
		{ErrStringEncoding, "PR-SNAP-4001"},
		{ErrLayoutInvalid, "PR-SNAP-4002"},
		{ErrUnknownRegion, "PR-SNAP-4041"},
		{ErrInvalidPhase, "PR-SNAP-4091"},
		{ErrNotFound, "PR-SESS-4040"},
		{ErrSessionQuiesced, "PR-SESS-4092"},
		{ErrInvalidArgument, "PR-SESS-4001"},
		{ErrRegistryConflict, "PR-BIND-4090"},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
			if seen[tt.code] {
				t.Errorf("duplicate code %q", tt.code)
			}
			seen[tt.code] = true
		})
	}
}

func TestErrorChaining(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := ErrTruncatedData.
		WithDetailsf("region %s", "resources").
		WithCause(cause)

	if err.Code != "PR-SNAP-4221" {
		t.Errorf("Code = %q, want %q", err.Code, "PR-SNAP-4221")
	}
	if err.Details != "region resources" {
		t.Errorf("Details = %q", err.Details)
	}
	if err.Cause != cause {
		t.Error("Cause should be preserved")
	}

	if !errors.Is(err, ErrTruncatedData) {
		t.Error("errors.Is should work after chaining")
	}
	if errors.Is(err, ErrCorruptCount) {
		t.Error("errors.Is should not match a different code")
	}
}
