// Package errors provides standardized error handling for the forms pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigMissing    ErrorCode = "CONFIG_MISSING"
	ErrCodeMappingNotFound  ErrorCode = "MAPPING_NOT_FOUND"
	ErrCodeIdentityMissing  ErrorCode = "IDENTITY_MISSING"
	ErrCodePayloadInvalid   ErrorCode = "PAYLOAD_INVALID"
	ErrCodeTransportFailed  ErrorCode = "TRANSPORT_FAILED"
	ErrCodeRemoteRejected   ErrorCode = "REMOTE_REJECTED"
	ErrCodeUnparseableReply ErrorCode = "UNPARSEABLE_REPLY"
	ErrCodeQueueFailed      ErrorCode = "QUEUE_FAILED"
	ErrCodeCacheFailed      ErrorCode = "CACHE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigMissingError signals absent credentials or settings. It is a
// silent-skip condition for callers, never a user-visible failure.
func NewConfigMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigMissing,
		Message:   "Required configuration is missing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMappingNotFoundError signals that no form mapping matches a form id.
func NewMappingNotFoundError(formID int) *StandardError {
	return &StandardError{
		Code:      ErrCodeMappingNotFound,
		Message:   "No mapping configured for form",
		Details:   fmt.Sprintf("formId: %d", formID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIdentityMissingError signals a submission without a usable email address.
func NewIdentityMissingError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityMissing,
		Message:   "Submission has no usable email address",
		Details:   fmt.Sprintf("emailField: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadInvalidError creates a non-retryable payload validation error.
func NewPayloadInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Inbound payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailedError creates a transport-layer error (DNS, connect, timeout).
func NewTransportFailedError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   "Outbound call failed at the transport layer",
		Details:   fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteRejectedError creates an error for a non-2xx or explicit-failure reply.
func NewRemoteRejectedError(endpoint string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteRejected,
		Message:   "Remote API rejected the request",
		Details:   fmt.Sprintf("endpoint: %s, status: %d, body: %s", endpoint, status, body),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnparseableReplyError creates an error for a reply that doesn't match the
// expected shape for its endpoint.
func NewUnparseableReplyError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnparseableReply,
		Message:   "Remote reply could not be parsed",
		Details:   fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueFailedError creates a retryable scheduling error.
func NewQueueFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueFailed,
		Message:   "Failed to enqueue deferred job",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheFailedError creates a retryable consent-cache error. Callers treat
// it as a cache miss.
func NewCacheFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheFailed,
		Message:   "Consent cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsSilentSkip reports whether an error is a failed submission precondition
// that callers must treat as a no-op rather than a failure.
func IsSilentSkip(err error) bool {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return false
	}
	switch stdErr.Code {
	case ErrCodeConfigMissing, ErrCodeMappingNotFound, ErrCodeIdentityMissing, ErrCodePayloadInvalid:
		return true
	}
	return false
}

// IsRetryable reports whether an error may succeed on redelivery.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}
