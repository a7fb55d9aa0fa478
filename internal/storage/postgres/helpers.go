package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the engine classifies against. Named rather than
// inlined so sqlstate.go-style lookups stay obvious at call sites.
const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
	sqlstateDeadlockDetected    = "40P01"
	sqlstateUndefinedTable      = "42P01"
	sqlstateInternalError       = "XX000"
)

// nullString returns a pointer to s if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// pgError extracts the *pgconn.PgError from err, if any.
func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// Falls back to a string match for driver errors that don't carry a
// *pgconn.PgError (e.g. some pooler/proxy-mediated failures).
func isUniqueViolation(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateUniqueViolation
	}
	return stringContainsAny(err, "23505", "unique constraint", "duplicate key")
}

// isUniqueViolationOnParentID reports whether err is specifically the
// (parent_id, id) uniqueness violation that maps to ConflictIdOnContainer.
func isUniqueViolationOnParentID(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateUniqueViolation && strings.Contains(pgErr.Detail, "Key (parent_id, id)")
	}
	return stringContainsAny(err, "Key (parent_id, id)")
}

// isForeignKeyViolation reports whether err is a foreign-key violation.
func isForeignKeyViolation(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateForeignKeyViolation
	}
	return stringContainsAny(err, "23503", "foreign key constraint")
}

// isDeadlock reports whether err is a deadlock-detected error.
func isDeadlock(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateDeadlockDetected
	}
	return stringContainsAny(err, "40P01", "deadlock detected")
}

// isUndefinedTable reports whether err indicates a missing table,
// triggering schema bootstrap's create() path.
func isUndefinedTable(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateUndefinedTable
	}
	return stringContainsAny(err, "42P01", "does not exist")
}

// isInternalServerError reports whether err is a backend-internal error
// (sqlstate XX000), which additionally requires a manual ROLLBACK since
// the backend believes it is still inside a transaction.
func isInternalServerError(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == sqlstateInternalError
	}
	return false
}

// isBadConnection reports whether err matches one of the known
// connection-is-gone error strings that trigger pool recovery.
func isBadConnection(err error) bool {
	return stringContainsAny(err,
		"cannot perform operation: connection is closed",
		"connection is closed",
		"pool is closed",
	)
}

// isAnotherOperationInProgress reports whether err is the transient
// "another operation is in progress" interface error.
func isAnotherOperationInProgress(err error) bool {
	return stringContainsAny(err, "another operation is in progress")
}

// isManuallyStartedTransaction reports whether err indicates the
// session already has a manually started transaction, requiring a
// rollback before the engine can restart it.
func isManuallyStartedTransaction(err error) bool {
	return stringContainsAny(err, "manually started transaction")
}

func stringContainsAny(err error, substrs ...string) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
