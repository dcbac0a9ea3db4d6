// Package sqlite is a gorm-backed catalog for single-node deployments where
// running PostgreSQL is not worth it.
package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentRow is the gorm mapping of the document table. It mirrors the
// PostgreSQL schema created by the migration package.
type DocumentRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Filename  string    `gorm:"column:filename;not null"`
	Filepath  string    `gorm:"column:filepath;not null;uniqueIndex"`
	Filesize  int64     `gorm:"column:filesize;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index"`
}

// TableName keeps the table name identical across backends.
func (DocumentRow) TableName() string { return "document" }

func (r DocumentRow) toModel() model.Document {
	return model.Document{
		ID:          r.ID,
		Filename:    r.Filename,
		StoragePath: r.Filepath,
		Size:        r.Filesize,
		CreatedAt:   r.CreatedAt,
	}
}

// DocumentSQLite implements repository.DocumentRepository on top of gorm.
type DocumentSQLite struct {
	db *gorm.DB
}

// NewDocumentSQLite creates a new DocumentSQLite repository.
func NewDocumentSQLite(db *gorm.DB) *DocumentSQLite {
	return &DocumentSQLite{db: db}
}

var _ repository.DocumentRepository = (*DocumentSQLite)(nil)

func (r *DocumentSQLite) Create(ctx context.Context, filename, storagePath string, size int64) (*model.Document, error) {
	row := DocumentRow{
		Filename: filename,
		Filepath: storagePath,
		Filesize: size,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	doc := row.toModel()
	return &doc, nil
}

func (r *DocumentSQLite) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	var row DocumentRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	doc := row.toModel()
	return &doc, nil
}

func (r *DocumentSQLite) List(ctx context.Context) ([]model.Document, error) {
	var rows []DocumentRow
	if err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]model.Document, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

func (r *DocumentSQLite) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&DocumentRow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *DocumentSQLite) ListStoragePaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0)
	if err := r.db.WithContext(ctx).Model(&DocumentRow{}).Pluck("filepath", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// AutoMigrate creates or updates the document table.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&DocumentRow{})
}
