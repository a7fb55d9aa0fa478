package postgres

import (
	"context"
	"fmt"

	"ostore/internal/storage"
	"ostore/internal/storage/postgres/pool"
)

// objectColumns and blobColumns describe the two tables' column DDL,
// keyed in declaration order so create() emits deterministic SQL.
type columnDef struct {
	name string
	ddl  string
}

func objectColumns(objectsTable string) []columnDef {
	return []columnDef{
		{"zoid", fmt.Sprintf("VARCHAR(%d) NOT NULL PRIMARY KEY", storage.MaxOIDLength)},
		{"tid", "BIGINT NOT NULL"},
		{"state_size", "BIGINT NOT NULL"},
		{"part", "BIGINT NOT NULL"},
		{"resource", "BOOLEAN NOT NULL"},
		{"of", fmt.Sprintf("VARCHAR(%d) REFERENCES %s ON DELETE CASCADE", storage.MaxOIDLength, objectsTable)},
		{"otid", "BIGINT"},
		{"parent_id", fmt.Sprintf("VARCHAR(%d) REFERENCES %s ON DELETE CASCADE", storage.MaxOIDLength, objectsTable)},
		{"id", "TEXT"},
		{"type", "TEXT NOT NULL"},
		{"json", "JSONB"},
		{"state", "BYTEA"},
	}
}

func blobColumns(objectsTable string) []columnDef {
	return []columnDef{
		{"bid", fmt.Sprintf("VARCHAR(%d) NOT NULL", storage.MaxOIDLength)},
		{"zoid", fmt.Sprintf("VARCHAR(%d) NOT NULL REFERENCES %s ON DELETE CASCADE", storage.MaxOIDLength, objectsTable)},
		{"chunk_index", "INT NOT NULL"},
		{"data", "BYTEA"},
	}
}

func createTableStatement(table string, cols []columnDef, primaryKeys ...string) string {
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", table)
	for i, c := range cols {
		sql += fmt.Sprintf("    %s %s", c.name, c.ddl)
		if i < len(cols)-1 || len(primaryKeys) > 0 {
			sql += ","
		}
		sql += "\n"
	}
	if len(primaryKeys) > 0 {
		sql += fmt.Sprintf("    PRIMARY KEY (%s)\n", joinComma(primaryKeys))
	}
	sql += ")"
	return sql
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// bootstrapStatements returns every CREATE TABLE/INDEX/SEQUENCE
// statement needed on a fresh database, with index names derived from
// the singular table-name convention (objects -> object, blobs ->
// blob) so default-named deployments get readable index names while
// overridden table names keep their identifiers verbatim.
func bootstrapStatements(objectsTable, blobsTable string) []string {
	objectIdx := indexTableName(objectsTable, "objects", "object")
	blobIdx := indexTableName(blobsTable, "blobs", "blob")

	stmts := []string{
		createTableStatement(objectsTable, objectColumns(objectsTable)),
		createTableStatement(blobsTable, blobColumns(objectsTable), "bid", "zoid", "chunk_index"),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_tid ON %s (tid)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_of ON %s (of)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_part ON %s (part)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_parent ON %s (parent_id)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_id ON %s (id)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_type ON %s (type)", objectIdx, objectsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_bid ON %s (bid)", blobIdx, blobsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_zoid ON %s (zoid)", blobIdx, blobsTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_chunk ON %s (chunk_index)", blobIdx, blobsTable),
		"CREATE SEQUENCE IF NOT EXISTS tid_sequence",
	}
	return stmts
}

func uniqueConstraintName(objectsTable string) string {
	return objectsTable + "_parent_id_id_key"
}

func uniqueConstraintStatement(objectsTable string) string {
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (parent_id, id)",
		objectsTable, uniqueConstraintName(objectsTable))
}

// create runs every bootstrap statement, tolerating unique-violation
// races from concurrent engines bootstrapping the same fresh database
// simultaneously.
func (e *Engine) create(ctx context.Context, session *pool.Session) error {
	e.logger.Info("creating initial database objects")
	for _, stmt := range bootstrapStatements(e.objectsTable, e.blobsTable) {
		if _, err := session.Exec(ctx, stmt); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("postgres: bootstrap statement failed: %w", err)
		}
	}
	return nil
}

// hasUniqueConstraint reports whether the (parent_id, id) uniqueness
// constraint already exists, mirroring the original's
// information_schema introspection.
func (e *Engine) hasUniqueConstraint(ctx context.Context, session *pool.Session) (bool, error) {
	const q = `
SELECT tc.constraint_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu ON tc.constraint_name = kcu.constraint_name
JOIN information_schema.constraint_column_usage AS ccu ON ccu.constraint_name = tc.constraint_name
WHERE tc.constraint_name = $1 AND tc.constraint_type = 'UNIQUE'`

	rows, err := session.Query(ctx, q, uniqueConstraintName(e.objectsTable))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// migrateColumnWidths widens zoid/of/parent_id/bid columns to
// MaxOIDLength when they were created under a previous, narrower
// convention.
func (e *Engine) migrateColumnWidths(ctx context.Context, session *pool.Session) error {
	const q = `SELECT character_maximum_length FROM information_schema.columns
WHERE table_name = $1 AND column_name = 'zoid'`

	var width *int
	row := session.QueryRow(ctx, q, e.objectsTable)
	if err := row.Scan(&width); err != nil {
		return nil
	}
	if width != nil && *width == storage.MaxOIDLength {
		return nil
	}

	e.logger.Warn("migrating varchar key length", "table", e.objectsTable)
	alters := []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN zoid TYPE varchar(%d)", e.objectsTable, storage.MaxOIDLength),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN of TYPE varchar(%d)", e.objectsTable, storage.MaxOIDLength),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN parent_id TYPE varchar(%d)", e.objectsTable, storage.MaxOIDLength),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN bid TYPE varchar(%d)", e.blobsTable, storage.MaxOIDLength),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN zoid TYPE varchar(%d)", e.blobsTable, storage.MaxOIDLength),
	}
	for _, stmt := range alters {
		if _, err := session.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: column width migration failed: %w", err)
		}
	}
	return nil
}

// removeSchema drops both tables and the tid sequence, used by
// administrative tooling to reset a database between test runs.
func (e *Engine) removeSchema(ctx context.Context) error {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()

	if _, err := session.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", e.blobsTable)); err != nil {
		return err
	}
	if _, err := session.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", e.objectsTable)); err != nil {
		return err
	}
	if _, err := session.Exec(ctx, "DROP SEQUENCE IF EXISTS tid_sequence"); err != nil {
		return err
	}
	return nil
}
