package model

import "time"

// Document represents one stored PDF: the catalog row that points at a blob.
// This is a pure domain model with no database-specific dependencies or tags.
// JSON names follow the catalog columns (filepath, filesize).
type Document struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"filepath"`
	Size        int64     `json:"filesize"`
	CreatedAt   time.Time `json:"created_at"`
}
