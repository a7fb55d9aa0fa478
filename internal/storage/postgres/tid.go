package postgres

import "context"

// GetNextTID advances and returns a fresh value from tid_sequence on
// the shared read session, guarded by the storage lock rather than any
// per-transaction lock since the read session is shared by every
// transaction.
func (e *Engine) GetNextTID(ctx context.Context) (int64, error) {
	e.storageLock.Lock()
	defer e.storageLock.Unlock()

	var tid int64
	row := e.readSession.QueryRow(ctx, "next_tid")
	if err := row.Scan(&tid); err != nil {
		if isBadConnection(err) {
			if restartErr := e.restartConnectionLocked(ctx); restartErr != nil {
				return 0, restartErr
			}
		}
		return 0, err
	}
	return tid, nil
}

// GetCurrentTID reads tid_sequence's last_value without advancing it.
func (e *Engine) GetCurrentTID(ctx context.Context) (int64, error) {
	e.storageLock.Lock()
	defer e.storageLock.Unlock()

	var tid int64
	row := e.readSession.QueryRow(ctx, "max_tid")
	if err := row.Scan(&tid); err != nil {
		return 0, err
	}
	return tid, nil
}
