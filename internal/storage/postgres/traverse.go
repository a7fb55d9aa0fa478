package postgres

import (
	"context"

	"ostore/internal/storage"

	"github.com/jackc/pgx/v5"
)

// ChildRecord is the row shape for GET_CHILD/GET_CHILDREN/GET_CHILDREN_BATCH.
type ChildRecord struct {
	OID       string
	TID       int64
	StateSize int64
	Resource  bool
	Type      string
	State     []byte
	ID        string
}

func scanChildRow(row interface{ Scan(dest ...any) error }) (*ChildRecord, error) {
	var c ChildRecord
	var id *string
	if err := row.Scan(&c.OID, &c.TID, &c.StateSize, &c.Resource, &c.Type, &c.State, &id); err != nil {
		return nil, err
	}
	if id != nil {
		c.ID = *id
	}
	return &c, nil
}

// Keys returns the ids of oid's immediate children.
func (e *Engine) Keys(ctx context.Context, t *Txn, oid string) ([]string, error) {
	sql := e.sql.Get(stmtGetChildrenKeys, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.session.Query(ctx, taggedSQL(ctx, sql), oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChild looks up a single named child under parent.
func (e *Engine) GetChild(ctx context.Context, t *Txn, parent, id string) (*ChildRecord, error) {
	sql := e.sql.Get(stmtGetChild, e.objectsTable)

	t.mu.Lock()
	row := t.session.QueryRow(ctx, taggedSQL(ctx, sql), parent, id)
	rec, err := scanChildRow(row)
	t.mu.Unlock()

	if err != nil {
		return nil, &storage.NotFoundError{OID: id}
	}
	return rec, nil
}

// GetChildren batch-fetches every named child under parent.
func (e *Engine) GetChildren(ctx context.Context, t *Txn, parent string, ids []string) ([]*ChildRecord, error) {
	sql := e.sql.Get(stmtGetChildrenBatch, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.session.Query(ctx, taggedSQL(ctx, sql), parent, ids)
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

// HasKey reports whether parent has a child named id.
func (e *Engine) HasKey(ctx context.Context, t *Txn, parent, id string) (bool, error) {
	sql := e.sql.Get(stmtExistChild, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	var zoid string
	err := t.session.QueryRow(ctx, taggedSQL(ctx, sql), parent, id).Scan(&zoid)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Len counts parent's immediate children.
func (e *Engine) Len(ctx context.Context, t *Txn, parent string) (int64, error) {
	sql := e.sql.Get(stmtNumChildren, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	err := t.session.QueryRow(ctx, taggedSQL(ctx, sql), parent).Scan(&n)
	return n, err
}

// Items streams every immediate child of parent, in no defined order. It
// deliberately acquires its own session and never touches t's lock:
// cursors are long-lived, and holding the transaction lock across a
// stream invites deadlocks against sub-queries the caller issues while
// consuming it. The returned pgx.Rows releases the session on Close.
func (e *Engine) Items(ctx context.Context, parent string) (pgx.Rows, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	sql := e.sql.Get(stmtGetChildren, e.objectsTable)
	rows, err := session.Query(ctx, sql, parent)
	if err != nil {
		session.Release()
		return nil, err
	}
	return pool.NewTrackedRows(rows, session), nil
}

// GetAnnotation looks up a named annotation of oid, filtering out rows
// reparented into the trash subtree.
func (e *Engine) GetAnnotation(ctx context.Context, t *Txn, oid, id string) (*ObjectRecord, error) {
	sql := e.sql.Get(stmtGetAnnotation, e.objectsTable)

	t.mu.Lock()
	row := t.session.QueryRow(ctx, taggedSQL(ctx, sql), oid, id)
	var rec ObjectRecord
	var parentID, annID *string
	err := row.Scan(&rec.OID, &rec.TID, &rec.StateSize, &rec.Resource, &rec.Type, &rec.State, &annID, &parentID)
	t.mu.Unlock()

	if err != nil {
		return nil, &storage.NotFoundError{OID: id}
	}
	if annID != nil {
		rec.ID = *annID
	}
	if parentID != nil {
		rec.ParentID = *parentID
		if rec.ParentID == storage.TrashOID {
			return nil, &storage.NotFoundError{OID: id}
		}
	}
	return &rec, nil
}

// GetAnnotationKeys returns the ids of oid's annotations, filtering out
// rows reparented into the trash subtree.
func (e *Engine) GetAnnotationKeys(ctx context.Context, t *Txn, oid string) ([]string, error) {
	sql := e.sql.Get(stmtGetAnnotationsKeys, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.session.Query(ctx, taggedSQL(ctx, sql), oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, parentID *string
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, err
		}
		if parentID != nil && *parentID == storage.TrashOID {
			continue
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return ids, rows.Err()
}

// GetPageOfKeys returns a single page of parent's children, 1-indexed.
func (e *Engine) GetPageOfKeys(ctx context.Context, t *Txn, parent string, page, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	sql := e.sql.Get(stmtBatchedGetChildrenKeys, e.objectsTable)

	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.session.Query(ctx, taggedSQL(ctx, sql), parent, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
