package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/repository"
)

func newRepo(t *testing.T) *DocumentSQLite {
	t.Helper()
	gdb, db, err := database.NewSQLite(config.DatabaseConfig{
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(context.Background(), gdb))
	return NewDocumentSQLite(gdb)
}

func TestDocumentSQLite_CreateAndFind(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	doc, err := r.Create(ctx, "a.pdf", "k1-a.pdf", 12)
	require.NoError(t, err)
	assert.Positive(t, doc.ID)
	assert.Equal(t, "a.pdf", doc.Filename)
	assert.Equal(t, "k1-a.pdf", doc.StoragePath)
	assert.Equal(t, int64(12), doc.Size)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := r.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.StoragePath, got.StoragePath)

	_, err = r.FindByID(ctx, doc.ID+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDocumentSQLite_DuplicatePath(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "a.pdf", "dup", 1)
	require.NoError(t, err)
	_, err = r.Create(ctx, "b.pdf", "dup", 1)
	assert.Error(t, err)
}

func TestDocumentSQLite_ListOrdered(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	empty, err := r.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, p := range []string{"k1", "k2", "k3"} {
		_, err := r.Create(ctx, p+".pdf", p, 1)
		require.NoError(t, err)
	}

	docs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i := 1; i < len(docs); i++ {
		assert.Greater(t, docs[i].ID, docs[i-1].ID)
	}

	paths, err := r.ListStoragePaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2", "k3"}, paths)
}

func TestDocumentSQLite_Delete(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	doc, err := r.Create(ctx, "a.pdf", "k", 1)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, doc.ID))
	assert.ErrorIs(t, r.Delete(ctx, doc.ID), repository.ErrNotFound)

	_, err = r.FindByID(ctx, doc.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDocumentSQLite_IDNotReused(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a, err := r.Create(ctx, "a.pdf", "ka", 1)
	require.NoError(t, err)
	b, err := r.Create(ctx, "b.pdf", "kb", 1)
	require.NoError(t, err)
	require.Greater(t, b.ID, a.ID)

	// deleting the highest row must not free its id
	require.NoError(t, r.Delete(ctx, b.ID))

	c, err := r.Create(ctx, "c.pdf", "kc", 1)
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)
}
