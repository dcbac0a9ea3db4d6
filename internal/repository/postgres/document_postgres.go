package postgres

import (
	"context"
	"database/sql"
	"errors"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record,
// including the identity and timestamp assigned by the database.
func (r *DocumentPostgres) Create(ctx context.Context, filename, storagePath string, size int64) (*model.Document, error) {
	const q = `
		INSERT INTO document (filename, filepath, filesize)
		VALUES ($1, $2, $3)
		RETURNING id, filename, filepath, filesize, created_at
	`
	row := r.db.QueryRowContext(ctx, q, filename, storagePath, size)
	var out model.Document
	if err := scanDocument(row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM document
		WHERE id = $1
	`
	var d model.Document
	if err := scanDocument(r.db.QueryRowContext(ctx, q, id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns all documents ordered by ID.
func (r *DocumentPostgres) List(ctx context.Context) ([]model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM document
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document by ID. A statement that removes nothing reports
// repository.ErrNotFound so callers can tell a lost race from a real failure.
func (r *DocumentPostgres) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM document WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListStoragePaths returns the filepath column of every row.
func (r *DocumentPostgres) ListStoragePaths(ctx context.Context) ([]string, error) {
	const q = `SELECT filepath FROM document`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner, d *model.Document) error {
	return s.Scan(
		&d.ID,
		&d.Filename,
		&d.StoragePath,
		&d.Size,
		&d.CreatedAt,
	)
}
