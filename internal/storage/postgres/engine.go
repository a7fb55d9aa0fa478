// Package postgres implements the storage engine against PostgreSQL:
// optimistic-concurrency object storage, chunked blobs, logical
// deletion into a trash subtree, and the background vacuum that
// physically removes it.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ostore/internal/config"
	"ostore/internal/logger"
	"ostore/internal/storage"
	"ostore/internal/storage/postgres/pool"

	"github.com/jackc/pgx/v5"
	"golang.org/x/time/rate"
)

// Engine implements the transactional object-storage contract against
// a single PostgreSQL database. One Engine owns one pool, one shared
// read session (for NEXT_TID/MAX_TID, conflict checks and the trash
// scan), and one background vacuum worker.
type Engine struct {
	cfg    config.EngineConfig
	logger *logger.Logger

	pool       *pool.Pool
	sql        *sqlRegistry
	objectsTable string
	blobsTable   string

	// readSession is shared by every transaction for NEXT_TID/MAX_TID,
	// GetConflicts and GetTrashedObjects; it never has an open backend
	// transaction of its own. Streamed cursors (Items, ReadBlobChunks)
	// acquire their own pool session instead.
	readSession *pool.Session

	// storageLock serializes pool mutation (restartConnection) against
	// every other use of the shared read session. Per-transaction
	// sessions are serialized independently by the caller-owned
	// Transaction.Lock(), except streamed cursors which deliberately
	// acquire their own session and skip both locks.
	storageLock sync.Mutex

	supportsUniqueConstraint bool
	connInitializedOn        time.Time

	// restartLimiter throttles restartConnectionLocked independent of
	// connInitializedOn's delay gate, so a flapping backend cannot
	// busy-loop recovery under concurrent callers.
	restartLimiter *rate.Limiter

	vacuum *vacuumWorker

	closed bool
}

// New creates an Engine against cfg.DSN without performing schema
// bootstrap; call Initialize before serving traffic.
func New(ctx context.Context, cfg config.EngineConfig, log *logger.Logger) (*Engine, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if log == nil {
		log = logger.Default()
	}

	objectsTable := cfg.ObjectsTableName
	if objectsTable == "" {
		objectsTable = "objects"
	}
	blobsTable := cfg.BlobsTableName
	if blobsTable == "" {
		blobsTable = "blobs"
	}

	poolCfg := pool.DefaultConfig()
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.ConnAcquireTimeout > 0 {
		poolCfg.AcquireTimeout = cfg.ConnAcquireTimeout
	}

	p, err := pool.New(ctx, cfg.DSN, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	e := &Engine{
		cfg:            cfg,
		logger:         log.With("component", "postgres_engine"),
		pool:           p,
		sql:            newSQLRegistry(),
		objectsTable:   objectsTable,
		blobsTable:     blobsTable,
		restartLimiter: rate.NewLimiter(rate.Every(storage.BadConnectionRestartDelay), 1),
	}
	return e, nil
}

// Initialize bootstraps the schema on first run, migrates column
// widths when needed, prepares the TID statements on the shared read
// session, and starts the vacuum worker. It is idempotent: calling it
// against an already-initialized database is a no-op beyond the
// migration check.
func (e *Engine) Initialize(ctx context.Context, vcfg config.VacuumConfig) error {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire read session: %w", err)
	}
	e.readSession = session

	hasConstraint, err := e.hasUniqueConstraint(ctx, session)
	if err != nil {
		return fmt.Errorf("postgres: check unique constraint: %w", err)
	}
	e.supportsUniqueConstraint = hasConstraint

	if !e.cfg.ReadOnly {
		trashSQL := e.sql.Get(stmtCreateTrash, e.objectsTable)
		if _, err := session.Exec(ctx, trashSQL); err != nil {
			if !isUndefinedTable(err) {
				return fmt.Errorf("postgres: create trash root: %w", err)
			}

			if err := e.create(ctx, session); err != nil {
				return err
			}
			if _, err := session.Exec(ctx, uniqueConstraintStatement(e.objectsTable)); err != nil && !isUniqueViolation(err) {
				return fmt.Errorf("postgres: add unique constraint: %w", err)
			}
			e.supportsUniqueConstraint = true

			if _, err := session.Exec(ctx, trashSQL); err != nil {
				return fmt.Errorf("postgres: create trash root after bootstrap: %w", err)
			}
		}
	}

	if err := e.prepareTIDStatements(ctx); err != nil {
		return err
	}

	if err := e.migrateColumnWidths(ctx, session); err != nil {
		return err
	}

	e.vacuum = newVacuumWorker(e, vcfg)
	e.vacuum.Start(ctx)

	e.connInitializedOn = time.Now()
	return nil
}

// prepareTIDStatements prepares NEXT_TID/MAX_TID on the shared read
// session, re-run after every pool restart since prepared statements
// don't survive a reconnect.
func (e *Engine) prepareTIDStatements(ctx context.Context) error {
	if _, err := e.readSession.Prepare(ctx, "next_tid", "SELECT nextval('tid_sequence')"); err != nil {
		return fmt.Errorf("postgres: prepare next_tid: %w", err)
	}
	if _, err := e.readSession.Prepare(ctx, "max_tid", "SELECT last_value FROM tid_sequence"); err != nil {
		return fmt.Errorf("postgres: prepare max_tid: %w", err)
	}
	return nil
}

// Close stops the vacuum worker and releases every pool resource.
func (e *Engine) Close(ctx context.Context) error {
	e.storageLock.Lock()
	defer e.storageLock.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if e.vacuum != nil {
		e.vacuum.Finalize()
	}
	if e.readSession != nil {
		e.readSession.Release()
	}
	e.pool.Terminate()
	return nil
}

// Ping checks database connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// ReadOnly reports whether this engine rejects writes.
func (e *Engine) ReadOnly() bool {
	return e.cfg.ReadOnly
}

// PoolStats exposes pool saturation for the metrics package.
func (e *Engine) PoolStats() pool.Stats {
	return e.pool.Stats()
}

// Remove drops both tables and the tid sequence; used by
// administrative tooling (ostorectl schema reset) between test runs,
// never in normal operation.
func (e *Engine) Remove(ctx context.Context) error {
	return e.removeSchema(ctx)
}

// taggedSQL prepends the operation context's query comment to sql so
// it shows up in pg_stat_activity and slow-query logs.
func taggedSQL(ctx context.Context, sql string) string {
	oc := storage.GetOperationContext(ctx)
	if oc == nil {
		return sql
	}
	return oc.QueryComment() + " " + sql
}

// restartConnection tears down and recreates the pool after a
// suspected dead connection, gated by BadConnectionRestartDelay so a
// burst of concurrent failures only triggers one restart, and further
// throttled by restartLimiter so repeated failures over time cannot
// busy-loop recovery. Returns a Conflict error so the caller retries
// its transaction against the fresh pool; an error from the limiter or
// from recreating the pool is returned in its place.
func (e *Engine) restartConnection(ctx context.Context) error {
	e.storageLock.Lock()
	defer e.storageLock.Unlock()
	return e.restartConnectionLocked(ctx)
}

// restartConnectionLocked is restartConnection's body, callable by
// code that already holds storageLock (GetNextTID).
func (e *Engine) restartConnectionLocked(ctx context.Context) error {
	if time.Since(e.connInitializedOn) < storage.BadConnectionRestartDelay {
		return storage.ErrConflict
	}
	if err := e.restartLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("postgres: rate-limited connection restart: %w", err)
	}

	e.logger.Error("connection potentially lost to postgres, restarting")
	if e.readSession != nil {
		e.readSession.Release()
	}
	e.pool.Close(100 * time.Millisecond)
	e.pool.Terminate()

	poolCfg := pool.DefaultConfig()
	if e.cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(e.cfg.PoolSize)
	}
	if e.cfg.ConnAcquireTimeout > 0 {
		poolCfg.AcquireTimeout = e.cfg.ConnAcquireTimeout
	}

	newPool, err := pool.New(ctx, e.cfg.DSN, poolCfg)
	if err != nil {
		return fmt.Errorf("postgres: recreate pool: %w", err)
	}
	e.pool = newPool

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: reacquire read session: %w", err)
	}
	e.readSession = session

	if err := e.prepareTIDStatements(ctx); err != nil {
		return err
	}
	e.connInitializedOn = time.Now()

	return storage.ErrConflict
}

// txOptions returns the backend options for a new transaction. Every
// transaction strategy gets an explicit read committed isolation level,
// so a server-level default change can't silently alter conflict
// behavior; the transaction is read-only when readOnly is set.
func (e *Engine) txOptions(readOnly bool) pgx.TxOptions {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if readOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	return opts
}
