package postgres

import (
	"strings"
	"testing"
)

func TestSQLRegistryGetMaterializesTableName(t *testing.T) {
	r := newSQLRegistry()

	sql := r.Get(stmtGetOID, "objects")
	if !strings.Contains(sql, "FROM objects") {
		t.Errorf("expected materialized table name, got %q", sql)
	}
	if strings.Contains(sql, "{table_name}") {
		t.Errorf("expected no remaining template hole, got %q", sql)
	}
}

func TestSQLRegistryGetCachesPerTable(t *testing.T) {
	r := newSQLRegistry()

	objects := r.Get(stmtGetOID, "objects")
	custom := r.Get(stmtGetOID, "my_objects")

	if objects == custom {
		t.Error("expected distinct materialized SQL per table name")
	}
	if r.Get(stmtGetOID, "objects") != objects {
		t.Error("expected cached result to be stable across calls")
	}
}

func TestSQLRegistryGetUnknownStatementPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown statement name")
		}
	}()
	newSQLRegistry().Get("NOT_A_STATEMENT", "objects")
}

func TestWrapReturnCount(t *testing.T) {
	wrapped := wrapReturnCount("INSERT INTO foo (a) VALUES ($1)")
	if !strings.Contains(wrapped, "RETURNING 1") {
		t.Error("expected RETURNING 1 in wrapped body")
	}
	if !strings.Contains(wrapped, "SELECT count(*) FROM rows") {
		t.Error("expected count(*) projection in wrapped body")
	}
}

func TestUpsertRequiresMatchingOtid(t *testing.T) {
	r := newSQLRegistry()
	upsert := r.Get(stmtUpsert, "objects")
	naive := r.Get(stmtNaiveUpsert, "objects")

	if !strings.Contains(upsert, "tid = EXCLUDED.otid") {
		t.Error("expected UPSERT to guard on otid match")
	}
	if strings.Contains(naive, "tid = EXCLUDED.otid") {
		t.Error("expected NAIVE_UPSERT to skip the otid guard")
	}
}

func TestUpdateRequiresMatchingTid(t *testing.T) {
	r := newSQLRegistry()
	update := r.Get(stmtUpdate, "objects")
	naive := r.Get(stmtNaiveUpdate, "objects")

	if !strings.Contains(update, "AND tid = $7::int") {
		t.Error("expected UPDATE to guard on otid match")
	}
	if strings.Contains(naive, "AND tid = $7::int") {
		t.Error("expected NAIVE_UPDATE to skip the otid guard")
	}
}

func TestIndexTableNameUsesSingularForDefault(t *testing.T) {
	if got := indexTableName("objects", "objects", "object"); got != "object" {
		t.Errorf("expected singular index name, got %q", got)
	}
	if got := indexTableName("custom_objects", "objects", "object"); got != "custom_objects" {
		t.Errorf("expected overridden table name verbatim, got %q", got)
	}
}

func TestReadBlobChunksOrdersByChunkIndexWithoutPredicate(t *testing.T) {
	r := newSQLRegistry()
	sql := r.Get(stmtReadBlobChunks, "blobs")

	if strings.Contains(sql, "chunk_index = $2") {
		t.Error("READ_BLOB_CHUNKS must not filter on a single chunk_index")
	}
	if !strings.Contains(sql, "ORDER BY chunk_index") {
		t.Error("expected READ_BLOB_CHUNKS to order by chunk_index")
	}
}
