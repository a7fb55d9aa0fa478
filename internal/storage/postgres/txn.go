package postgres

import (
	"context"
	"sync"

	"ostore/internal/storage"
	"ostore/internal/storage/postgres/pool"
)

// Txn is the engine's concrete storage.Transaction implementation. It
// owns one pooled Session for its whole lifetime; StartTransaction
// decides when a backend transaction begins on top of it.
type Txn struct {
	engine  *Engine
	session *pool.Session

	tid int64

	mu       sync.Mutex
	modified map[string]storage.Writer
	deleted  map[string]storage.Writer

	cache storage.Cache

	hooksMu sync.Mutex
	hooks   []afterCommitHook

	skipCommit bool
}

type afterCommitHook struct {
	fn   func(args ...any)
	args []any
}

// NewTxn acquires a session from the pool and returns a fresh,
// not-yet-started transaction handle.
func (e *Engine) NewTxn(ctx context.Context, cache storage.Cache) (*Txn, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		if err == pool.ErrAcquireTimeout {
			return nil, storage.ErrAcquisitionTimeout
		}
		return nil, err
	}
	return &Txn{
		engine:   e,
		session:  session,
		modified: make(map[string]storage.Writer),
		deleted:  make(map[string]storage.Writer),
		cache:    cache,
	}, nil
}

func (t *Txn) TID() int64      { return t.tid }
func (t *Txn) SetTID(tid int64) { t.tid = tid }

func (t *Txn) Modified() map[string]storage.Writer { return t.modified }
func (t *Txn) Deleted() map[string]storage.Writer   { return t.deleted }

func (t *Txn) MarkDeleted(oid string, w storage.Writer) {
	t.deleted[oid] = w
}

func (t *Txn) Lock() *sync.Mutex { return &t.mu }

func (t *Txn) Cache() storage.Cache { return t.cache }

func (t *Txn) AddAfterCommitHook(fn func(args ...any), args ...any) {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.hooks = append(t.hooks, afterCommitHook{fn: fn, args: args})
}

func (t *Txn) runAfterCommitHooks() {
	t.hooksMu.Lock()
	hooks := t.hooks
	t.hooks = nil
	t.hooksMu.Unlock()
	for _, h := range hooks {
		h.fn(h.args...)
	}
}

// Release returns the transaction's session to the pool. Call after
// Commit or Abort.
func (t *Txn) Release() {
	t.session.Release()
}

// StartTransaction begins a backend transaction on t's session,
// retrying up to 3 times against a freshly reacquired session when the
// backend reports it lost the connection or believes a transaction is
// already open.
func (e *Engine) StartTransaction(ctx context.Context, t *Txn) error {
	return e.startTransaction(ctx, t, 0)
}

func (e *Engine) startTransaction(ctx context.Context, t *Txn, retries int) error {
	t.mu.Lock()
	err := t.session.Begin(ctx, e.txOptions(e.cfg.ReadOnly))
	t.mu.Unlock()
	if err == nil {
		return nil
	}

	if retries > 2 {
		return err
	}

	restart, rollback := classifyStartTransactionError(err)
	if rollback {
		t.mu.Lock()
		t.session.Exec(ctx, "ROLLBACK")
		t.mu.Unlock()
	}
	if restart {
		t.session.Release()
		session, acquireErr := e.pool.Acquire(ctx)
		if acquireErr != nil {
			return acquireErr
		}
		t.session = session
		return e.startTransaction(ctx, t, retries+1)
	}
	return err
}

// classifyStartTransactionError mirrors start_transaction's error
// taxonomy: restart re-acquires a session and retries; rollback issues
// a manual ROLLBACK first because the backend believes a transaction
// is already open.
func classifyStartTransactionError(err error) (restart, rollback bool) {
	if isInternalServerError(err) {
		return true, true
	}
	if isManuallyStartedTransaction(err) {
		return true, true
	}
	if isBadConnection(err) {
		return true, false
	}
	return false, false
}

// Commit commits t's backend transaction, if one is open, and runs
// every registered after-commit hook afterward.
func (e *Engine) Commit(ctx context.Context, t *Txn) (int64, error) {
	if t.session.InTransaction() {
		t.mu.Lock()
		err := t.session.Commit(ctx)
		t.mu.Unlock()
		if err != nil {
			return t.tid, err
		}
	} else if e.cfg.TransactionStrategy != "none" && e.cfg.TransactionStrategy != "tidonly" && !t.skipCommit {
		e.logger.Warn("commit called without an open backend transaction")
	}
	t.runAfterCommitHooks()
	return t.tid, nil
}

// Abort rolls back t's backend transaction, if one is open, swallowing
// errors from an already-closed session.
func (e *Engine) Abort(ctx context.Context, t *Txn) error {
	if !t.session.InTransaction() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Rollback(ctx)
}
