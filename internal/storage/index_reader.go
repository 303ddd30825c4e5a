package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mvp-joe/project-relocate/internal/model"
)

// IndexReader answers reference queries from a stored index. It implements
// model.Index.
type IndexReader struct {
	db     *sql.DB
	ownsDB bool
}

var _ model.Index = (*IndexReader)(nil)

// NewIndexReader opens the index at dbPath in read-only mode.
func NewIndexReader(dbPath string) (*IndexReader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open index %s: %w", dbPath, err)
	}
	return &IndexReader{db: db, ownsDB: true}, nil
}

// NewIndexReaderWithDB creates an IndexReader using an existing database connection.
func NewIndexReaderWithDB(db *sql.DB) *IndexReader {
	return &IndexReader{db: db}
}

// Close closes the database connection if owned by this reader.
func (r *IndexReader) Close() error {
	if !r.ownsDB || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// FindReferences implements model.Index.
func (r *IndexReader) FindReferences(ctx context.Context, b model.Binding) ([]model.Reference, error) {
	return r.query(ctx, sq.Eq{"target": b.BindingID()})
}

// FindDefinitions implements model.Index.
func (r *IndexReader) FindDefinitions(ctx context.Context, b model.Binding) ([]model.Reference, error) {
	return r.query(ctx, sq.And{
		sq.Eq{"target": b.BindingID()},
		sq.Expr("roles & ? != 0", int(model.RoleDefinition)),
	})
}

func (r *IndexReader) query(ctx context.Context, where sq.Sqlizer) ([]model.Reference, error) {
	rows, err := sq.Select("target", "roles", "file_path", "line", "col", "enclosing", "enclosing_class", "receiver").
		From("refs").
		Where(where).
		OrderBy("seq").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var ref model.Reference
		var roles int
		if err := rows.Scan(&ref.Target, &roles, &ref.Location.File, &ref.Location.Line, &ref.Location.Column, &ref.Enclosing, &ref.EnclosingClass, &ref.Receiver); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		ref.Roles = model.Role(roles)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}
	return refs, nil
}

// Units returns the stored compilation units sorted by path.
func (r *IndexReader) Units(ctx context.Context) ([]*model.Unit, error) {
	rows, err := sq.Select("path", "kind", "pair").
		From("units").
		OrderBy("path").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []*model.Unit
	for rows.Next() {
		var u model.Unit
		var kind string
		if err := rows.Scan(&u.Path, &kind, &u.Pair); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if kind == model.SourceFile.String() {
			u.Kind = model.SourceFile
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}

// CountReferences returns the number of stored references.
func (r *IndexReader) CountReferences(ctx context.Context) (int, error) {
	var n int
	err := sq.Select("COUNT(*)").From("refs").RunWith(r.db).QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count references: %w", err)
	}
	return n, nil
}

// Metadata returns the value stored under key in index_metadata.
func (r *IndexReader) Metadata(ctx context.Context, key string) (string, error) {
	var value string
	err := sq.Select("value").
		From("index_metadata").
		Where(sq.Eq{"key": key}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("metadata %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, nil
}
