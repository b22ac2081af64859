package txn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error represents a fault detected by the coordinator.
//
// The taxonomy:
//   - Propagation violation: Mandatory/Never contract broken. Fatal to the
//     boundary call, never retried.
//   - Adapter failure: begin/commit/rollback/savepoint call failed. Surfaced
//     to the caller; triggers best-effort rollback only when the failure
//     occurred after a successful begin.
//   - Dangling joined scope: a scope tried to settle with joined children
//     still pending under the strict policy. The scope is forced to
//     RolledBack even when its own body succeeded.
//   - Context unavailable: With/Fork called without an ambient context.
//     A programming contract violation, never a silent no-op.
//
// Application errors (the wrapped body threw) are deliberately NOT wrapped in
// Error: the coordinator re-throws them unchanged after rolling back, so
// callers can match them with their own errors.Is/As predicates.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ScopeID identifies the affected scope, when one exists.
	ScopeID uuid.UUID

	// Mode is the requested propagation mode of the failing boundary.
	Mode PropagationMode

	// Reject qualifies propagation violations.
	Reject RejectKind

	// Op names the adapter operation for adapter failures
	// ("begin", "commit", ...).
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes coordinator errors.
type ErrorCode string

const (
	// ErrCodePropagationViolation indicates a Mandatory/Never contract break.
	ErrCodePropagationViolation ErrorCode = "PROPAGATION_VIOLATION"

	// ErrCodeAdapterFailure indicates a storage adapter call failed.
	ErrCodeAdapterFailure ErrorCode = "ADAPTER_FAILURE"

	// ErrCodeDanglingJoinedScope indicates settlement with pending joins
	// under the strict policy.
	ErrCodeDanglingJoinedScope ErrorCode = "DANGLING_JOINED_SCOPE"

	// ErrCodeContextUnavailable indicates With/Fork was called with a nil
	// context.
	ErrCodeContextUnavailable ErrorCode = "CONTEXT_UNAVAILABLE"

	// ErrCodeLifecycleViolation indicates an illegal scope state
	// transition, e.g. settling a scope twice.
	ErrCodeLifecycleViolation ErrorCode = "LIFECYCLE_VIOLATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "":
		return fmt.Sprintf("%s: %s (op=%s): %v", e.Code, e.Message, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Mode != "":
		return fmt.Sprintf("%s: %s (mode=%s)", e.Code, e.Message, e.Mode)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsPropagationViolation reports whether err is a Mandatory/Never contract
// violation. Uses errors.As to handle wrapped errors.
func IsPropagationViolation(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == ErrCodePropagationViolation
}

// IsAdapterFailure reports whether err is a failed storage adapter call.
func IsAdapterFailure(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == ErrCodeAdapterFailure
}

// IsDanglingJoin reports whether err is a strict-policy dangling-join fault.
func IsDanglingJoin(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == ErrCodeDanglingJoinedScope
}

// IsContextUnavailable reports whether err is a missing-context contract
// violation.
func IsContextUnavailable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == ErrCodeContextUnavailable
}

// RejectOf extracts the reject kind from a propagation violation, or "".
func RejectOf(err error) RejectKind {
	var te *Error
	if errors.As(err, &te) && te.Code == ErrCodePropagationViolation {
		return te.Reject
	}
	return ""
}

// NewRejectError creates the propagation violation matching a resolver
// Reject action.
func NewRejectError(mode PropagationMode, kind RejectKind) *Error {
	msg := "propagation contract violated"
	switch kind {
	case RejectNoActiveTransaction:
		msg = "no active transaction (mandatory boundary requires one)"
	case RejectTransactionAlreadyActive:
		msg = "transaction already active (never boundary forbids one)"
	case RejectUnknownMode:
		msg = "unknown propagation mode"
	}
	return &Error{
		Code:    ErrCodePropagationViolation,
		Message: msg,
		Mode:    mode,
		Reject:  kind,
	}
}

// NewAdapterError wraps a failed adapter call.
func NewAdapterError(op string, scopeID uuid.UUID, err error) *Error {
	return &Error{
		Code:    ErrCodeAdapterFailure,
		Message: "storage adapter call failed",
		ScopeID: scopeID,
		Op:      op,
		Err:     err,
	}
}

// NewDanglingJoinError creates the strict-policy settlement fault.
func NewDanglingJoinError(scopeID uuid.UUID, pending int) *Error {
	return &Error{
		Code:    ErrCodeDanglingJoinedScope,
		Message: fmt.Sprintf("scope settled with %d joined child(ren) still pending; transaction rolled back", pending),
		ScopeID: scopeID,
	}
}

// NewContextUnavailableError creates the missing-context contract violation.
func NewContextUnavailableError(op string) *Error {
	return &Error{
		Code:    ErrCodeContextUnavailable,
		Message: fmt.Sprintf("%s requires an ambient context; got nil", op),
	}
}
