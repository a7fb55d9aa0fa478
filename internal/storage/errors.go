package storage

import (
	"errors"
	"fmt"
)

// Error taxonomy. These are sentinels classified via errors.Is; the
// richer variants below wrap one of these so callers can match on the
// taxonomy while still recovering the offending oid/count.
var (
	// ErrConflict is transient: the caller should restart the transaction.
	// Includes pool-restart and "another operation in progress".
	ErrConflict = errors.New("storage: conflict, retry the transaction")

	// ErrTIDConflict is an optimistic-concurrency failure on store (the
	// row's current tid does not match the caller's otid) or a
	// foreign-key violation (stale cache). The caller retries.
	ErrTIDConflict = errors.New("storage: tid conflict")

	// ErrConflictIDOnContainer is a unique (parent_id, id) violation: the
	// caller attempted to create a duplicate child name. Not transient.
	ErrConflictIDOnContainer = errors.New("storage: duplicate child id under parent")

	// ErrNotFound is returned by Load for a missing oid.
	ErrNotFound = errors.New("storage: object not found")

	// ErrAcquisitionTimeout is returned when the pool is saturated.
	ErrAcquisitionTimeout = errors.New("storage: connection acquisition timed out")

	// ErrFatal marks a programmer-error-class condition (e.g. a negative
	// or unexpected row count from an upsert) that is surfaced rather
	// than silently logged, per the insert-count-mismatch decision.
	ErrFatal = errors.New("storage: fatal internal error")

	// ErrReadOnly is returned when a write operation is attempted against
	// an engine configured with read_only.
	ErrReadOnly = errors.New("storage: engine is read-only")

	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("storage: engine is closed")
)

// TIDConflictError carries the offending oid alongside ErrTIDConflict.
type TIDConflictError struct {
	OID string
}

func (e *TIDConflictError) Error() string {
	return fmt.Sprintf("storage: tid conflict on oid %q", e.OID)
}

func (e *TIDConflictError) Unwrap() error { return ErrTIDConflict }

// ConflictIDOnContainerError carries the parent/id pair that collided.
type ConflictIDOnContainerError struct {
	ParentID string
	ID       string
}

func (e *ConflictIDOnContainerError) Error() string {
	return fmt.Sprintf("storage: duplicate child id %q under parent %q", e.ID, e.ParentID)
}

func (e *ConflictIDOnContainerError) Unwrap() error { return ErrConflictIDOnContainer }

// NotFoundError carries the missing oid.
type NotFoundError struct {
	OID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: object %q not found", e.OID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// FatalError carries diagnostic detail for an ErrFatal-class condition.
type FatalError struct {
	Op     string
	OID    string
	Detail string
	Count  int64
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("storage: fatal error in %s for oid %q: %s (count=%d)", e.Op, e.OID, e.Detail, e.Count)
}

func (e *FatalError) Unwrap() error { return ErrFatal }

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTIDConflict reports whether err is (or wraps) ErrTIDConflict.
func IsTIDConflict(err error) bool { return errors.Is(err, ErrTIDConflict) }

// IsConflictIDOnContainer reports whether err is (or wraps) ErrConflictIDOnContainer.
func IsConflictIDOnContainer(err error) bool { return errors.Is(err, ErrConflictIDOnContainer) }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAcquisitionTimeout reports whether err is (or wraps) ErrAcquisitionTimeout.
func IsAcquisitionTimeout(err error) bool { return errors.Is(err, ErrAcquisitionTimeout) }

// IsFatal reports whether err is (or wraps) ErrFatal.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
