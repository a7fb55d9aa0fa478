package postgres

import (
	"testing"
	"time"

	"ostore/internal/config"
	"ostore/internal/logger"
)

func newTestEngineForVacuum() *Engine {
	return &Engine{
		logger: logger.Default(),
	}
}

func TestVacuumWorkerAddToQueueAndDepth(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{BatchSize: 2})

	w.AddToQueue("oid-1")
	w.AddToQueue("oid-2")

	if depth := w.QueueDepth(); depth != 2 {
		t.Errorf("expected queue depth 2, got %d", depth)
	}
}

func TestVacuumWorkerAddToQueueDropsWhenFull(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{BatchSize: 1})

	for i := 0; i < 10; i++ {
		w.AddToQueue("oid")
	}

	if depth := w.QueueDepth(); depth != cap(w.queue) {
		t.Errorf("expected queue to saturate at capacity %d, got %d", cap(w.queue), depth)
	}
}

func TestVacuumWorkerAddToQueueAfterFinalizeIsNoop(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{})
	w.cancel = func() {}

	w.Finalize()
	w.AddToQueue("oid-after-close")

	if depth := w.QueueDepth(); depth != 0 {
		t.Errorf("expected no oid enqueued after Finalize, got depth %d", depth)
	}
}

func TestVacuumWorkerFinalizeIsIdempotent(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{})
	w.cancel = func() {}

	done := make(chan struct{})
	go func() {
		w.Finalize()
		w.Finalize()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Finalize did not return; expected idempotent double-close")
	}
}

func TestVacuumWorkerActiveDefaultsFalse(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{})

	if w.Active() {
		t.Error("expected a freshly created worker to be inactive")
	}
}

func TestNewVacuumWorkerDefaultsQueueCapacity(t *testing.T) {
	e := newTestEngineForVacuum()
	w := newVacuumWorker(e, config.VacuumConfig{})

	if cap(w.queue) != 200*4 {
		t.Errorf("expected default batch size of 200 to size the queue at 800, got %d", cap(w.queue))
	}
}
