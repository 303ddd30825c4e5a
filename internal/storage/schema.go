package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SchemaVersion is the version written into index_metadata by CreateSchema.
const SchemaVersion = "1.0"

// CreateSchema creates all tables and indexes of the symbol index.
// Uses one transaction so schema creation succeeds or fails as a whole.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"units", createUnitsTable},
		{"refs", createRefsTable},
		{"index_metadata", createIndexMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = sq.Insert("index_metadata").
		Columns("key", "value", "updated_at").
		Values("schema_version", SchemaVersion, now).
		Values("model_path", "", now).
		Values("last_indexed", "", now).
		Suffix("ON CONFLICT(key) DO NOTHING").
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to bootstrap index_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion retrieves the schema version from index_metadata.
// Returns "0" if the table does not exist yet.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var version string
	err := sq.Select("value").
		From("index_metadata").
		Where(sq.Eq{"key": "schema_version"}).
		RunWith(db).
		QueryRow().
		Scan(&version)
	if err != nil {
		var exists int
		if qerr := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='index_metadata'").Scan(&exists); qerr == nil && exists == 0 {
			return "0", nil
		}
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

const createUnitsTable = `
CREATE TABLE IF NOT EXISTS units (
	path TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	pair TEXT NOT NULL DEFAULT ''
)`

const createRefsTable = `
CREATE TABLE IF NOT EXISTS refs (
	ref_id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	target TEXT NOT NULL,
	roles INTEGER NOT NULL,
	file_path TEXT NOT NULL REFERENCES units(path) ON DELETE CASCADE,
	line INTEGER NOT NULL,
	col INTEGER NOT NULL DEFAULT 0,
	enclosing TEXT NOT NULL DEFAULT '',
	enclosing_class TEXT NOT NULL DEFAULT '',
	receiver TEXT NOT NULL DEFAULT ''
)`

const createIndexMetadataTable = `
CREATE TABLE IF NOT EXISTS index_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_refs_target ON refs(target, seq)",
		"CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file_path)",
		"CREATE INDEX IF NOT EXISTS idx_refs_enclosing_class ON refs(enclosing_class)",
	}
}
