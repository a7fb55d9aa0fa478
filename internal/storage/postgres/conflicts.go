package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ConflictRecord is a row from TXN_CONFLICTS/TXN_CONFLICTS_ON_OIDS: it
// carries enough to report the offending oid without its full state.
type ConflictRecord struct {
	OID       string
	TID       int64
	StateSize int64
	Resource  bool
	Type      string
	ID        string
}

// GetConflicts checks, on the shared read session under the storage
// lock, whether any oid this transaction modified has been written by
// another transaction with a higher tid since t started. Below 1000
// modified oids it scopes the scan with zoid = ANY(...); above that
// threshold scoping cost exceeds a full scan and it checks globally.
func (e *Engine) GetConflicts(ctx context.Context, t *Txn) ([]ConflictRecord, error) {
	if len(t.Modified()) == 0 {
		return nil, nil
	}

	e.storageLock.Lock()
	defer e.storageLock.Unlock()

	var rows pgx.Rows
	var err error

	if len(t.Modified()) < 1000 {
		oids := make([]string, 0, len(t.Modified()))
		for oid := range t.Modified() {
			oids = append(oids, oid)
		}
		sql := e.sql.Get(stmtTxnConflictsOnOIDs, e.objectsTable)
		rows, err = e.readSession.Query(ctx, sql, t.TID(), oids)
	} else {
		sql := e.sql.Get(stmtTxnConflicts, e.objectsTable)
		rows, err = e.readSession.Query(ctx, sql, t.TID())
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var c ConflictRecord
		var id *string
		if err := rows.Scan(&c.OID, &c.TID, &c.StateSize, &c.Resource, &c.Type, &id); err != nil {
			return nil, err
		}
		if id != nil {
			c.ID = *id
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
