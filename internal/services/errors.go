package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountArchived    = errors.New("account is deactivated")

	ErrUserExists  = errors.New("user already exists")
	ErrEmailExists = errors.New("email already registered")
	ErrLabExists   = errors.New("lab already exists")

	ErrNotFound = errors.New("not found")

	// ErrConflict covers optimistic-concurrency losses on workbook updates and
	// duplicate measurement-session starts. Recoverable: re-read and retry.
	ErrConflict = errors.New("conflict")

	// ErrStaleSession means an open measurement session exceeded the idle
	// timeout. The caller must close or abort it explicitly before starting a
	// new one.
	ErrStaleSession = errors.New("measurement session is stale")
)

// InvariantViolation marks an attempt to change an immutable field (workbook
// owner or lab, measurement content). This is a caller bug, not a user error.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

// AuditFailure reports that the audit append failed after the primary write
// already committed. The primary write is not rolled back; audit here is
// diagnostic, not transactional.
type AuditFailure struct {
	Action string
	Err    error
}

func (e *AuditFailure) Error() string {
	return fmt.Sprintf("audit append failed for %s: %v", e.Action, e.Err)
}

func (e *AuditFailure) Unwrap() error {
	return e.Err
}
