package postgres

import (
	"fmt"
	"strings"
	"sync"
)

// Statement names. Each template contains a {table_name} hole filled in
// by materialize against either the objects or blobs table configured
// on the engine.
const (
	stmtGetOID              = "GET_OID"
	stmtGetChildrenKeys      = "GET_CHILDREN_KEYS"
	stmtGetAnnotationsKeys   = "GET_ANNOTATIONS_KEYS"
	stmtGetChild             = "GET_CHILD"
	stmtGetChildrenBatch     = "GET_CHILDREN_BATCH"
	stmtExistChild           = "EXIST_CHILD"
	stmtHasObject            = "HAS_OBJECT"
	stmtGetAnnotation        = "GET_ANNOTATION"
	stmtUpsert               = "UPSERT"
	stmtNaiveUpsert          = "NAIVE_UPSERT"
	stmtUpdate               = "UPDATE"
	stmtNaiveUpdate          = "NAIVE_UPDATE"
	stmtNumChildren          = "NUM_CHILDREN"
	stmtNumRows              = "NUM_ROWS"
	stmtNumResources         = "NUM_RESOURCES"
	stmtNumResourcesByType   = "NUM_RESOURCES_BY_TYPE"
	stmtResourcesByType      = "RESOURCES_BY_TYPE"
	stmtGetChildren          = "GET_CHILDREN"
	stmtTrashParentID        = "TRASH_PARENT_ID"
	stmtInsertBlobChunk      = "INSERT_BLOB_CHUNK"
	stmtReadBlobChunk        = "READ_BLOB_CHUNK"
	stmtReadBlobChunks       = "READ_BLOB_CHUNKS"
	stmtDeleteBlob           = "DELETE_BLOB"
	stmtTxnConflicts         = "TXN_CONFLICTS"
	stmtTxnConflictsOnOIDs   = "TXN_CONFLICTS_ON_OIDS"
	stmtBatchedGetChildrenKeys = "BATCHED_GET_CHILDREN_KEYS"
	stmtDeleteObject         = "DELETE_OBJECT"
	stmtGetTrashedObjects    = "GET_TRASHED_OBJECTS"
	stmtCreateTrash          = "CREATE_TRASH"
)

// maxOIDLength mirrors storage.MaxOIDLength; duplicated as an untyped
// constant so it can be interpolated directly into SQL text.
const maxOIDLength = 32

// trashOID mirrors storage.TrashOID.
const trashOID = "__trash__"

// wrapReturnCount turns an INSERT/UPDATE body into a statement that
// returns the number of rows it actually affected, so the caller can
// distinguish "0 rows" (tid conflict) from "1 row" (success) without a
// second round trip.
func wrapReturnCount(body string) string {
	return fmt.Sprintf("WITH rows AS (\n%s\n    RETURNING 1\n)\nSELECT count(*) FROM rows", body)
}

var rawStatements = map[string]string{
	stmtGetOID: fmt.Sprintf(`SELECT zoid, tid, state_size, resource, of, parent_id, id, type, state
FROM {table_name}
WHERE zoid = $1::varchar(%d)`, maxOIDLength),

	stmtGetChildrenKeys: fmt.Sprintf(`SELECT id
FROM {table_name}
WHERE parent_id = $1::varchar(%d)`, maxOIDLength),

	stmtGetAnnotationsKeys: fmt.Sprintf(`SELECT id, parent_id
FROM {table_name}
WHERE of = $1::varchar(%d)`, maxOIDLength),

	stmtGetChild: fmt.Sprintf(`SELECT zoid, tid, state_size, resource, type, state, id
FROM {table_name}
WHERE parent_id = $1::varchar(%d) AND id = $2::text`, maxOIDLength),

	stmtGetChildrenBatch: fmt.Sprintf(`SELECT zoid, tid, state_size, resource, type, state, id
FROM {table_name}
WHERE parent_id = $1::varchar(%d) AND id = ANY($2)`, maxOIDLength),

	stmtExistChild: fmt.Sprintf(`SELECT zoid
FROM {table_name}
WHERE parent_id = $1::varchar(%d) AND id = $2::text`, maxOIDLength),

	stmtHasObject: fmt.Sprintf(`SELECT zoid
FROM {table_name}
WHERE zoid = $1::varchar(%d)`, maxOIDLength),

	stmtGetAnnotation: fmt.Sprintf(`SELECT zoid, tid, state_size, resource, type, state, id, parent_id
FROM {table_name}
WHERE of = $1::varchar(%d) AND id = $2::text`, maxOIDLength),

	stmtNumChildren: fmt.Sprintf(`SELECT count(*) FROM {table_name} WHERE parent_id = $1::varchar(%d)`, maxOIDLength),

	stmtNumRows: `SELECT count(*) FROM {table_name}`,

	stmtNumResources: `SELECT count(*) FROM {table_name} WHERE resource is TRUE`,

	stmtNumResourcesByType: `SELECT count(*) FROM {table_name} WHERE type=$1::TEXT`,

	stmtResourcesByType: `SELECT zoid, tid, state_size, resource, type, state, id
FROM {table_name}
WHERE type=$1::TEXT
ORDER BY zoid
LIMIT $2::int
OFFSET $3::int`,

	stmtGetChildren: fmt.Sprintf(`SELECT zoid, tid, state_size, resource, type, state, id
FROM {table_name}
WHERE parent_id = $1::VARCHAR(%d)`, maxOIDLength),

	stmtTrashParentID: fmt.Sprintf(`UPDATE {table_name}
SET parent_id = '%s'
WHERE zoid = $1::varchar(%d)`, trashOID, maxOIDLength),

	stmtInsertBlobChunk: fmt.Sprintf(`INSERT INTO {table_name}
(bid, zoid, chunk_index, data)
VALUES ($1::VARCHAR(%d), $2::VARCHAR(%d), $3::INT, $4::BYTEA)`, maxOIDLength, maxOIDLength),

	stmtReadBlobChunk: fmt.Sprintf(`SELECT bid, zoid, chunk_index, data FROM {table_name}
WHERE bid = $1::VARCHAR(%d)
AND chunk_index = $2::int`, maxOIDLength),

	// READ_BLOB_CHUNKS is a dedicated statement for streaming every chunk
	// of a blob in order. The original single READ_BLOB_CHUNK statement
	// was reused in a loop keyed only on chunk_index, which breaks once a
	// blob has more chunks than the loop's naive termination check
	// expects; naming the ordered, no-chunk_index-predicate query
	// separately removes the ambiguity.
	stmtReadBlobChunks: fmt.Sprintf(`SELECT bid, zoid, chunk_index, data FROM {table_name}
WHERE bid = $1::VARCHAR(%d)
ORDER BY chunk_index`, maxOIDLength),

	stmtDeleteBlob: fmt.Sprintf(`DELETE FROM {table_name} WHERE bid = $1::VARCHAR(%d)`, maxOIDLength),

	stmtTxnConflicts: `SELECT zoid, tid, state_size, resource, type, id
FROM {table_name}
WHERE tid > $1`,

	stmtTxnConflictsOnOIDs: `SELECT zoid, tid, state_size, resource, type, id
FROM {table_name}
WHERE tid > $1 AND zoid = ANY($2)`,

	stmtBatchedGetChildrenKeys: fmt.Sprintf(`SELECT id
FROM {table_name}
WHERE parent_id = $1::varchar(%d)
ORDER BY zoid
LIMIT $2::int
OFFSET $3::int`, maxOIDLength),

	stmtDeleteObject: fmt.Sprintf(`DELETE FROM {table_name}
WHERE zoid = $1::varchar(%d)`, maxOIDLength),

	stmtGetTrashedObjects: fmt.Sprintf(`SELECT zoid FROM {table_name} WHERE parent_id = '%s'`, trashOID),

	stmtCreateTrash: fmt.Sprintf(`INSERT INTO {table_name} (zoid, tid, state_size, part, resource, type)
SELECT '%s', 0, 0, 0, FALSE, 'TRASH_REF'
WHERE NOT EXISTS (SELECT * FROM {table_name} WHERE zoid = '%s')
RETURNING id`, trashOID, trashOID),
}

func init() {
	naiveUpsert := fmt.Sprintf(`INSERT INTO {table_name}
(zoid, tid, state_size, part, resource, of, otid, parent_id, id, type, json, state)
VALUES ($1::varchar(%d), $2::int, $3::int, $4::int, $5::boolean,
        $6::varchar(%d), $7::int, $8::varchar(%d),
        $9::text, $10::text, $11::json, $12::bytea)
ON CONFLICT (zoid)
DO UPDATE SET
    tid = EXCLUDED.tid,
    state_size = EXCLUDED.state_size,
    part = EXCLUDED.part,
    resource = EXCLUDED.resource,
    of = EXCLUDED.of,
    otid = EXCLUDED.otid,
    parent_id = EXCLUDED.parent_id,
    id = EXCLUDED.id,
    type = EXCLUDED.type,
    json = EXCLUDED.json,
    state = EXCLUDED.state`, maxOIDLength, maxOIDLength, maxOIDLength)

	rawStatements[stmtUpsert] = wrapReturnCount(naiveUpsert + "\nWHERE\n    tid = EXCLUDED.otid")
	rawStatements[stmtNaiveUpsert] = wrapReturnCount(naiveUpsert)

	naiveUpdate := fmt.Sprintf(`UPDATE {table_name}
SET
    tid = $2::int,
    state_size = $3::int,
    part = $4::int,
    resource = $5::boolean,
    of = $6::varchar(%d),
    otid = $7::int,
    parent_id = $8::varchar(%d),
    id = $9::text,
    type = $10::text,
    json = $11::json,
    state = $12::bytea
WHERE
    zoid = $1::varchar(%d)`, maxOIDLength, maxOIDLength, maxOIDLength)

	rawStatements[stmtUpdate] = wrapReturnCount(naiveUpdate + " AND tid = $7::int")
	rawStatements[stmtNaiveUpdate] = wrapReturnCount(naiveUpdate)
}

// sqlRegistry materializes {table_name} templates against a concrete
// table name, caching each (name, table) pair the first time it's
// requested.
type sqlRegistry struct {
	mu    sync.RWMutex
	cache map[string]string
}

func newSQLRegistry() *sqlRegistry {
	return &sqlRegistry{cache: make(map[string]string)}
}

// Get returns the materialized SQL for name against table, caching the
// result. Panics on an unknown statement name, which is a programmer
// error (a typo in a call site), not a runtime condition.
func (r *sqlRegistry) Get(name, table string) string {
	key := name + "\x00" + table
	r.mu.RLock()
	sql, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return sql
	}

	raw, ok := rawStatements[name]
	if !ok {
		panic(fmt.Sprintf("postgres: unknown statement %q", name))
	}
	sql = strings.ReplaceAll(raw, "{table_name}", table)

	r.mu.Lock()
	r.cache[key] = sql
	r.mu.Unlock()
	return sql
}

// indexTableName implements the singular-name convention used for index
// and constraint identifiers: the default table names ("objects",
// "blobs") shorten to "object"/"blob" so generated index names read
// naturally; a caller-overridden table name is used verbatim.
func indexTableName(table, defaultName, singular string) string {
	if table == defaultName {
		return singular
	}
	return table
}
