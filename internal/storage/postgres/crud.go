package postgres

import (
	"context"
	"fmt"

	"ostore/internal/storage"
)

// Load runs GET_OID on t's session under t's lock, returning NotFound
// if oid does not exist.
func (e *Engine) Load(ctx context.Context, t *Txn, oid string) (*ObjectRecord, error) {
	sql := e.sql.Get(stmtGetOID, e.objectsTable)

	t.mu.Lock()
	row := t.session.QueryRow(ctx, taggedSQL(ctx, sql), oid)
	rec, err := scanObjectRow(row)
	t.mu.Unlock()

	if err != nil {
		return nil, &storage.NotFoundError{OID: oid}
	}
	return rec, nil
}

// Store executes the write protocol: choose NAIVE_UPSERT or
// otid-guarded UPDATE, execute
// with the fixed 12-parameter ordering, translate pg errors into the
// storage taxonomy, and inspect the returned row count.
func (e *Engine) Store(ctx context.Context, t *Txn, w storage.Writer) error {
	if e.cfg.ReadOnly {
		return storage.ErrReadOnly
	}

	pickled, err := w.Serialize()
	if err != nil {
		return fmt.Errorf("postgres: serialize %q: %w", w.OID(), err)
	}
	if len(pickled) >= storage.LargeRecordSize {
		e.logger.Info("large object state", "oid", w.OID(), "size", len(pickled))
	}

	jsonDoc, err := w.JSON()
	if err != nil {
		return fmt.Errorf("postgres: json projection of %q: %w", w.OID(), err)
	}

	part := w.Part()

	update := false
	stmtName := stmtNaiveUpsert
	pserial, hasSerial := w.PSerial()
	if !w.NewMarker() && hasSerial {
		stmtName = stmtUpdate
		update = true
	}
	sql := e.sql.Get(stmtName, e.objectsTable)

	t.mu.Lock()
	var count int64
	row := t.session.QueryRow(ctx, taggedSQL(ctx, sql),
		w.OID(), t.tid, len(pickled), part, w.Resource(),
		nullString(w.Of()), pserial, nullString(w.ParentID()),
		w.ID(), w.Type(), jsonDoc, pickled)
	scanErr := row.Scan(&count)
	t.mu.Unlock()

	if scanErr != nil {
		switch {
		case isUniqueViolationOnParentID(scanErr):
			return &storage.ConflictIDOnContainerError{ParentID: w.ParentID(), ID: w.ID()}
		case isForeignKeyViolation(scanErr):
			t.MarkDeleted(w.OID(), w)
			return &storage.TIDConflictError{OID: w.OID()}
		case isAnotherOperationInProgress(scanErr):
			return storage.ErrConflict
		case isDeadlock(scanErr):
			return storage.ErrConflict
		default:
			return fmt.Errorf("postgres: store %q: %w", w.OID(), scanErr)
		}
	}

	if count != 1 {
		if update {
			return &storage.TIDConflictError{OID: w.OID()}
		}
		return &storage.FatalError{
			Op:     "store",
			OID:    w.OID(),
			Detail: "insert returned unexpected row count",
			Count:  count,
		}
	}

	if cache := t.Cache(); cache != nil {
		cache.StoreObject(ctx, w, pickled)
	}
	return nil
}

// Delete reparents oid to the trash subtree under t's lock and
// registers an after-commit hook enqueuing it on the vacuum worker;
// physical deletion happens only once the user transaction commits.
func (e *Engine) Delete(ctx context.Context, t *Txn, oid string) error {
	if e.cfg.ReadOnly {
		return storage.ErrReadOnly
	}

	sql := e.sql.Get(stmtTrashParentID, e.objectsTable)

	t.mu.Lock()
	_, err := t.session.Exec(ctx, taggedSQL(ctx, sql), oid)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", oid, err)
	}

	t.AddAfterCommitHook(func(args ...any) {
		if e.vacuum != nil {
			e.vacuum.AddToQueue(args[0].(string))
		}
	}, oid)
	return nil
}

func scanObjectRow(row interface {
	Scan(dest ...any) error
}) (*ObjectRecord, error) {
	var rec ObjectRecord
	var of, parentID, id *string
	err := row.Scan(&rec.OID, &rec.TID, &rec.StateSize, &rec.Resource, &of, &parentID, &id, &rec.Type, &rec.State)
	if err != nil {
		return nil, err
	}
	if of != nil {
		rec.Of = *of
	}
	if parentID != nil {
		rec.ParentID = *parentID
	}
	if id != nil {
		rec.ID = *id
	}
	return &rec, nil
}
