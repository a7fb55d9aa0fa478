package postgres

import "context"

// GetTotalNumberOfObjects counts every row in the objects table,
// trashed or not.
func (e *Engine) GetTotalNumberOfObjects(ctx context.Context, t *Txn) (int64, error) {
	sql := e.sql.Get(stmtNumRows, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	err := t.session.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

// GetTotalNumberOfResources counts rows flagged resource = TRUE.
func (e *Engine) GetTotalNumberOfResources(ctx context.Context, t *Txn) (int64, error) {
	sql := e.sql.Get(stmtNumResources, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	err := t.session.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

// GetTotalResourcesOfType counts rows whose Guillotina-style content
// type string equals typ; the resource flag is not checked.
func (e *Engine) GetTotalResourcesOfType(ctx context.Context, t *Txn, typ string) (int64, error) {
	sql := e.sql.Get(stmtNumResourcesByType, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	err := t.session.QueryRow(ctx, sql, typ).Scan(&n)
	return n, err
}

// ResourcesOfType returns one page of rows of the given type (the
// resource flag is not checked), ordered by zoid for stable pagination.
func (e *Engine) ResourcesOfType(ctx context.Context, t *Txn, typ string, page, pageSize int) ([]*ChildRecord, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	sql := e.sql.Get(stmtResourcesByType, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.session.Query(ctx, sql, typ, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChildRecord
	for rows.Next() {
		rec, err := scanChildRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetTrashedObjects lists oids currently reparented into the trash
// subtree, used by ostorectl's vacuum-backlog inspection command.
func (e *Engine) GetTrashedObjects(ctx context.Context) ([]string, error) {
	sql := e.sql.Get(stmtGetTrashedObjects, e.objectsTable)

	e.storageLock.Lock()
	defer e.storageLock.Unlock()
	rows, err := e.readSession.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var oids []string
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, rows.Err()
}
