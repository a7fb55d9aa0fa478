// Package pool provides the storage engine's reduced-capability
// PostgreSQL session pool: sessions disable advisory locks, async
// notifications, session-reset statements, and close-all so that
// per-acquire round trips stay minimal and behavior under
// transaction-pooling proxies (pgbouncer) stays well defined.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPoolClosed indicates the pool has been closed.
	ErrPoolClosed = errors.New("pool: connection pool is closed")

	// ErrAcquireTimeout indicates no session became free before the
	// configured acquisition timeout elapsed.
	ErrAcquireTimeout = errors.New("pool: acquire timed out")
)

// Config holds pool configuration. MaxConns corresponds to the engine's
// pool_size option; the rest are pgxpool tuning knobs with conservative
// defaults suited to a handful of long-lived sessions rather than a
// high-churn web-request pool.
type Config struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	AcquireTimeout    time.Duration
}

// DefaultConfig returns the storage backend's documented pool defaults
// (pool_size=13, conn_acquire_timeout=20s).
func DefaultConfig() Config {
	return Config{
		MaxConns:          13,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    5 * time.Second,
		AcquireTimeout:    20 * time.Second,
	}
}

// Pool wraps pgxpool.Pool with the engine's reduced-capability session
// policy. Unlike a pool that hands out already-open transactions, Pool
// hands out bare Sessions; StartTransaction (in the engine package)
// decides when a backend transaction begins.
type Pool struct {
	pool   *pgxpool.Pool
	config Config
	dsn    string

	mu       sync.RWMutex
	closed   bool
	initTime time.Time
}

// New creates a new session pool against dsn.
func New(ctx context.Context, dsn string, cfg Config) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: parse dsn: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	// Reduced-capability session: never reset server state on release.
	// The engine never relies on LISTEN/NOTIFY, advisory locks, or a
	// clean session, so skipping DISCARD ALL avoids a round trip on
	// every release and keeps behavior well defined behind pgbouncer
	// transaction pooling.
	poolConfig.AfterRelease = func(c *pgxpool.Conn) bool { return true }

	pgxPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pool: create: %w", err)
	}

	if err := pgxPool.Ping(ctx); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("pool: ping: %w", err)
	}

	return &Pool{
		pool:     pgxPool,
		config:   cfg,
		dsn:      dsn,
		initTime: time.Now(),
	}, nil
}

// Acquire returns a Session, failing with ErrAcquireTimeout if none
// becomes available within cfg.AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timeout := p.config.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().AcquireTimeout
	}
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrAcquireTimeout
		}
		return nil, fmt.Errorf("pool: acquire: %w", err)
	}

	return &Session{conn: conn, pool: p}, nil
}

// InitTime reports when this pool (or its most recent recreation) was
// initialized. The engine's BAD_CONNECTION_RESTART_DELAY gate keeps its
// own timestamp and does not call it.
func (p *Pool) InitTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initTime
}

// Terminate forcibly closes every session. Used by the recovery path
// and on engine shutdown.
func (p *Pool) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pool.Close()
}

// Close closes the pool, waiting up to timeout for in-flight sessions
// to return before forcibly terminating. Recovery uses a short timeout
// (default 100ms); shutdown can pass a longer one.
func (p *Pool) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.Terminate()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// Ping checks database connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stats reports pool saturation, consumed by the engine's Prometheus
// gauges.
func (p *Pool) Stats() Stats {
	s := p.pool.Stat()
	return Stats{
		TotalConns:        s.TotalConns(),
		AcquiredConns:     s.AcquiredConns(),
		IdleConns:         s.IdleConns(),
		MaxConns:          s.MaxConns(),
		AcquireCount:      s.AcquireCount(),
		AcquireDuration:   s.AcquireDuration(),
		EmptyAcquireCount: s.EmptyAcquireCount(),
	}
}

// Stats is a snapshot of pool saturation.
type Stats struct {
	TotalConns        int32
	AcquiredConns     int32
	IdleConns         int32
	MaxConns          int32
	AcquireCount      int64
	AcquireDuration   time.Duration
	EmptyAcquireCount int64
}
