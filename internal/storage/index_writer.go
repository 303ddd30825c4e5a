package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mvp-joe/project-relocate/internal/model"
)

// IndexWriter writes the units and references of a workspace to SQLite.
type IndexWriter struct {
	db     *sql.DB
	ownsDB bool // true if we opened the connection, false if shared
}

// NewIndexWriter opens (creating if needed) the index at dbPath.
func NewIndexWriter(dbPath string) (*IndexWriter, error) {
	db, err := OpenIndex(dbPath)
	if err != nil {
		return nil, err
	}
	return &IndexWriter{db: db, ownsDB: true}, nil
}

// NewIndexWriterWithDB creates an IndexWriter using an existing database connection.
// The caller is responsible for managing the database lifecycle (schema, foreign keys, close).
func NewIndexWriterWithDB(db *sql.DB) *IndexWriter {
	return &IndexWriter{db: db, ownsDB: false}
}

// Close closes the database connection if owned by this writer.
func (w *IndexWriter) Close() error {
	if !w.ownsDB {
		return nil
	}
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// WriteWorkspace replaces the stored index with the units and references of
// ws in a single transaction. progress, when non-nil, is called once per
// written reference.
//
// Steps:
//  1. Begin transaction
//  2. Clear existing units (cascade deletes their references)
//  3. Write units, then references in index order
//  4. Record the model path and index time
//  5. Commit transaction
func (w *IndexWriter) WriteWorkspace(ctx context.Context, ws *model.Workspace, modelPath string, progress func()) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := sq.Delete("refs").RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear existing data (refs): %w", err)
	}
	if _, err := sq.Delete("units").RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear existing data (units): %w", err)
	}

	units := ws.Units()
	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u.Path] = true
		if err := writeUnit(tx, u); err != nil {
			return err
		}
	}

	for seq, ref := range ws.References() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Synthesized references may point at a file the model never declared.
		if !known[ref.Location.File] {
			u := &model.Unit{Path: ref.Location.File}
			if err := writeUnit(tx, u); err != nil {
				return err
			}
			known[u.Path] = true
		}
		if err := writeReference(tx, seq, ref); err != nil {
			return err
		}
		if progress != nil {
			progress()
		}
	}

	if err := setMetadata(tx, "model_path", modelPath); err != nil {
		return err
	}
	if err := setMetadata(tx, "last_indexed", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeUnit(tx *sql.Tx, u *model.Unit) error {
	_, err := sq.Insert("units").
		Columns("path", "kind", "pair").
		Values(u.Path, u.Kind.String(), u.Pair).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert unit %s: %w", u.Path, err)
	}
	return nil
}

func writeReference(tx *sql.Tx, seq int, ref model.Reference) error {
	_, err := sq.Insert("refs").
		Columns("ref_id", "seq", "target", "roles", "file_path", "line", "col", "enclosing", "enclosing_class", "receiver").
		Values(uuid.New().String(), seq, ref.Target, int(ref.Roles), ref.Location.File, ref.Location.Line, ref.Location.Column, ref.Enclosing, ref.EnclosingClass, ref.Receiver).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert reference to %s at %s: %w", ref.Target, ref.Location, err)
	}
	return nil
}

func setMetadata(tx *sql.Tx, key, value string) error {
	_, err := sq.Update("index_metadata").
		Set("value", value).
		Set("updated_at", time.Now().UTC().Format(time.RFC3339)).
		Where(sq.Eq{"key": key}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}
