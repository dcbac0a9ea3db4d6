package repository

import (
	"context"
	"errors"

	"docvault/internal/model"
)

// ErrNotFound is returned when no catalog row matches the given ID.
var ErrNotFound = errors.New("document row not found")

// DocumentRepository is the metadata catalog: one row per stored document.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new row. The database assigns ID and CreatedAt.
	Create(ctx context.Context, filename, storagePath string, size int64) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns every document in insertion order.
	List(ctx context.Context) ([]model.Document, error)

	// Delete removes a document by ID. It returns ErrNotFound if no row was removed.
	Delete(ctx context.Context, id int64) error

	// ListStoragePaths returns the storage path of every live row.
	ListStoragePaths(ctx context.Context) ([]string, error)
}
