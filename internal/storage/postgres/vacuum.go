package postgres

import (
	"context"
	"sync"

	"ostore/internal/config"
)

// vacuumWorker physically deletes objects that have been reparented
// into the trash subtree by Delete. It bootstraps its queue from
// whatever is already trashed on Start, then drains entries as Delete
// enqueues them via its after-commit hook.
type vacuumWorker struct {
	engine *Engine
	cfg    config.VacuumConfig

	queue chan string

	mu     sync.Mutex
	closed bool
	active bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newVacuumWorker(e *Engine, cfg config.VacuumConfig) *vacuumWorker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	return &vacuumWorker{
		engine: e,
		cfg:    cfg,
		queue:  make(chan string, batchSize*4),
	}
}

// Start bootstraps the queue with the currently trashed oids, then
// launches the drain loop. Oids that do not fit in the queue's capacity
// are logged and dropped; they stay in the trash subtree.
func (w *vacuumWorker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	trashed, err := w.engine.GetTrashedObjects(ctx)
	if err != nil {
		w.engine.logger.Warn("vacuum bootstrap scan failed", "error", err)
	}
	for _, oid := range trashed {
		select {
		case w.queue <- oid:
		default:
			w.engine.logger.Warn("vacuum queue full during bootstrap, dropping oid", "oid", oid)
		}
	}

	w.wg.Add(1)
	go w.run(runCtx)
}

func (w *vacuumWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case oid, ok := <-w.queue:
			if !ok {
				return
			}
			w.mu.Lock()
			w.active = true
			w.mu.Unlock()

			if err := w.vacuum(ctx, oid); err != nil {
				w.engine.logger.Warn("error vacuuming oid", "oid", oid, "error", err)
			}

			w.mu.Lock()
			w.active = false
			w.mu.Unlock()
		}
	}
}

// vacuum physically deletes oid's row, which cascades to its blob
// chunks via ON DELETE CASCADE.
func (w *vacuumWorker) vacuum(ctx context.Context, oid string) error {
	session, err := w.engine.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	sql := w.engine.sql.Get(stmtDeleteObject, w.engine.objectsTable)
	_, err = session.Exec(ctx, sql, oid)
	return err
}

// AddToQueue enqueues oid for physical deletion. Called from Delete's
// after-commit hook once the user transaction that trashed oid has
// committed. The closed check and the send happen under the same lock
// Finalize uses to close the queue, so a send can never race a close.
func (w *vacuumWorker) AddToQueue(oid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.engine.logger.Warn("vacuum worker closing, dropping oid", "oid", oid)
		return
	}
	select {
	case w.queue <- oid:
	default:
		w.engine.logger.Warn("vacuum queue full, dropping oid", "oid", oid)
	}
}

// QueueDepth reports how many oids are currently queued, consumed by
// the Prometheus gauge.
func (w *vacuumWorker) QueueDepth() int {
	return len(w.queue)
}

// Active reports whether the worker is currently processing an oid.
func (w *vacuumWorker) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Finalize stops accepting new work, drains whatever is already
// queued, and only then cancels the driving goroutine's context.
// Closing the queue before cancelling lets run's final pass through
// the !ok branch consume every oid already enqueued, rather than
// racing a cancelled context against a non-empty channel and
// potentially dropping queued-but-unvacuumed oids.
func (w *vacuumWorker) Finalize() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()

	if w.cancel != nil {
		w.cancel()
	}
}
