package postgres

import (
	"context"
	"fmt"

	"ostore/internal/storage"
	"ostore/internal/storage/postgres/pool"

	"github.com/jackc/pgx/v5"
)

// WriteBlobChunk stores one chunk of a blob keyed by (bid, oid,
// chunk_index). If oid does not yet reference any object row, it
// inserts a tid=-1, type='stub' placeholder first, matching the
// original's handling of a blob written before its owning object has
// been stored.
func (e *Engine) WriteBlobChunk(ctx context.Context, t *Txn, bid, oid string, chunkIndex int, data []byte) error {
	if e.cfg.ReadOnly {
		return storage.ErrReadOnly
	}

	hasSQL := e.sql.Get(stmtHasObject, e.objectsTable)
	t.mu.Lock()
	var zoid string
	err := t.session.QueryRow(ctx, hasSQL, oid).Scan(&zoid)
	t.mu.Unlock()

	if err != nil {
		stubSQL := fmt.Sprintf(
			"INSERT INTO %s (zoid, tid, state_size, part, resource, type) VALUES ($1::varchar(%d), -1, 0, 0, TRUE, 'stub')",
			e.objectsTable, storage.MaxOIDLength)
		t.mu.Lock()
		_, stubErr := t.session.Exec(ctx, stubSQL, oid)
		t.mu.Unlock()
		if stubErr != nil {
			return fmt.Errorf("postgres: stub object for blob %q: %w", oid, stubErr)
		}
	}

	insertSQL := e.sql.Get(stmtInsertBlobChunk, e.blobsTable)
	t.mu.Lock()
	_, err = t.session.Exec(ctx, insertSQL, bid, oid, chunkIndex, encodeBlobData(data))
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("postgres: write blob chunk %q/%d: %w", bid, chunkIndex, err)
	}
	return nil
}

// ReadBlobChunk reads a single chunk of a blob, decompressing it if
// WriteBlobChunk stored it compressed.
func (e *Engine) ReadBlobChunk(ctx context.Context, t *Txn, bid string, chunkIndex int) (*BlobChunkRecord, error) {
	sql := e.sql.Get(stmtReadBlobChunk, e.blobsTable)

	t.mu.Lock()
	var rec BlobChunkRecord
	err := t.session.QueryRow(ctx, sql, bid, chunkIndex).Scan(&rec.BID, &rec.OID, &rec.ChunkIndex, &rec.Data)
	t.mu.Unlock()

	if err != nil {
		return nil, &storage.NotFoundError{OID: bid}
	}
	rec.Data, err = DecodeBlobData(rec.Data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReadBlobChunks streams every chunk of bid in order, via its own
// unlocked session so a long-lived reader never blocks the
// transaction's other work. Uses the dedicated READ_BLOB_CHUNKS
// statement rather than reusing READ_BLOB_CHUNK's (bid, chunk_index)
// shape in a loop, which silently stops after the first chunk once the
// chunk_index predicate no longer matches advancing rows. Rows stream
// out exactly as stored: callers scanning Data themselves must run it
// through DecodeBlobData before using it.
func (e *Engine) ReadBlobChunks(ctx context.Context, bid string) (pgx.Rows, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	sql := e.sql.Get(stmtReadBlobChunks, e.blobsTable)
	rows, err := session.Query(ctx, sql, bid)
	if err != nil {
		session.Release()
		return nil, err
	}
	return pool.NewTrackedRows(rows, session), nil
}

// DelBlob deletes every chunk of bid.
func (e *Engine) DelBlob(ctx context.Context, t *Txn, bid string) error {
	if e.cfg.ReadOnly {
		return storage.ErrReadOnly
	}
	sql := e.sql.Get(stmtDeleteBlob, e.blobsTable)

	t.mu.Lock()
	_, err := t.session.Exec(ctx, sql, bid)
	t.mu.Unlock()
	return err
}
