package pool

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session is a bare pooled connection. It carries no open transaction —
// the engine's transaction-handling code decides when to begin one via
// Begin. Sessions used for streamed cursors (items, read_blob_chunks)
// never call Begin; they query directly on the connection.
type Session struct {
	conn *pgxpool.Conn
	pool *Pool
	tx   pgx.Tx
}

// Begin starts a backend transaction on this session.
func (s *Session) Begin(ctx context.Context, opts pgx.TxOptions) error {
	if s.tx != nil {
		return errors.New("pool: session already has an open transaction")
	}
	tx, err := s.conn.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit commits the session's open transaction, if any.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	return err
}

// Rollback rolls back the session's open transaction, if any, swallowing
// errors from an already-closed connection.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	if err != nil && errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// InTransaction reports whether a backend transaction is open.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// querier is satisfied by both pgx.Tx and *pgxpool.Conn, letting Exec/
// Query/QueryRow transparently run against whichever is active.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Session) querier() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// Exec executes a statement that doesn't return rows.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.querier().Exec(ctx, sql, args...)
}

// Query executes a query that returns rows. The returned Rows must be
// closed by the caller; closing does not release the session.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.querier().Query(ctx, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.querier().QueryRow(ctx, sql, args...)
}

// Prepare creates a connection-scoped prepared statement, used by the
// engine to prepare NEXT_TID/MAX_TID on the shared read session.
func (s *Session) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return s.conn.Conn().Prepare(ctx, name, sql)
}

// Savepoint creates a savepoint within the session's open transaction.
func (s *Session) Savepoint(ctx context.Context, name string) error {
	_, err := s.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

// RollbackToSavepoint rolls back to a savepoint.
func (s *Session) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := s.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

// Conn returns the underlying *pgx.Conn for escape-hatch use.
func (s *Session) Conn() *pgx.Conn {
	return s.conn.Conn()
}

// Release rolls back any open transaction, then returns the connection
// to the pool. Safe to call more than once.
func (s *Session) Release() {
	if s.tx != nil {
		s.tx.Rollback(context.Background())
		s.tx = nil
	}
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

// trackedRows wraps pgx.Rows returned from a streamed, unlocked cursor
// (items, read_blob_chunks) so closing the rows also releases the
// session that served them, even if the caller abandons iteration
// early.
type trackedRows struct {
	pgx.Rows
	session *Session
}

// NewTrackedRows wraps rows so that Close also releases session.
func NewTrackedRows(rows pgx.Rows, session *Session) pgx.Rows {
	return &trackedRows{Rows: rows, session: session}
}

func (r *trackedRows) Close() {
	r.Rows.Close()
	r.session.Release()
}
