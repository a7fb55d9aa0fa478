package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestNullString(t *testing.T) {
	if got := nullString(""); got != nil {
		t.Errorf("expected nil for empty string, got %v", *got)
	}
	if got := nullString("x"); got == nil || *got != "x" {
		t.Errorf("expected pointer to %q, got %v", "x", got)
	}
}

func TestIsUniqueViolationFromPgError(t *testing.T) {
	err := &pgconn.PgError{Code: sqlstateUniqueViolation}
	if !isUniqueViolation(err) {
		t.Error("expected unique violation to be detected from PgError code")
	}
	if isUniqueViolation(&pgconn.PgError{Code: sqlstateForeignKeyViolation}) {
		t.Error("expected foreign key violation to not be classified as unique violation")
	}
}

func TestIsUniqueViolationFromStringFallback(t *testing.T) {
	err := errors.New("ERROR: duplicate key value violates unique constraint")
	if !isUniqueViolation(err) {
		t.Error("expected string-fallback classification to detect unique violation")
	}
}

func TestIsUniqueViolationOnParentIDRequiresKeyDetail(t *testing.T) {
	generic := &pgconn.PgError{Code: sqlstateUniqueViolation, Detail: "Key (zoid)=(x) already exists."}
	onParent := &pgconn.PgError{Code: sqlstateUniqueViolation, Detail: "Key (parent_id, id)=(p, c) already exists."}

	if isUniqueViolationOnParentID(generic) {
		t.Error("expected generic unique violation to not match parent_id/id classification")
	}
	if !isUniqueViolationOnParentID(onParent) {
		t.Error("expected (parent_id, id) unique violation to be classified")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !isForeignKeyViolation(&pgconn.PgError{Code: sqlstateForeignKeyViolation}) {
		t.Error("expected fk violation to be detected")
	}
	if isForeignKeyViolation(&pgconn.PgError{Code: sqlstateUniqueViolation}) {
		t.Error("expected unique violation to not match fk classification")
	}
}

func TestIsDeadlock(t *testing.T) {
	if !isDeadlock(&pgconn.PgError{Code: sqlstateDeadlockDetected}) {
		t.Error("expected deadlock to be detected")
	}
}

func TestIsUndefinedTable(t *testing.T) {
	if !isUndefinedTable(&pgconn.PgError{Code: sqlstateUndefinedTable}) {
		t.Error("expected undefined table to be detected")
	}
}

func TestIsInternalServerErrorRequiresPgError(t *testing.T) {
	if isInternalServerError(errors.New("some unrelated error")) {
		t.Error("expected plain errors to never classify as internal server error")
	}
	if !isInternalServerError(&pgconn.PgError{Code: sqlstateInternalError}) {
		t.Error("expected XX000 to classify as internal server error")
	}
}

func TestIsBadConnection(t *testing.T) {
	if !isBadConnection(errors.New("cannot perform operation: connection is closed")) {
		t.Error("expected connection-closed error to classify as bad connection")
	}
	if isBadConnection(errors.New("some unrelated error")) {
		t.Error("expected unrelated error to not classify as bad connection")
	}
}

func TestStringContainsAnyNilError(t *testing.T) {
	if stringContainsAny(nil, "anything") {
		t.Error("expected nil error to never match")
	}
}

func TestPgErrorWrapped(t *testing.T) {
	inner := &pgconn.PgError{Code: sqlstateUniqueViolation}
	wrapped := fmt.Errorf("postgres: store %q: %w", "oid-1", inner)

	if pgError(wrapped) == nil {
		t.Error("expected pgError to unwrap through fmt.Errorf %w")
	}
	if !isUniqueViolation(wrapped) {
		t.Error("expected isUniqueViolation to see through wrapping")
	}
}
