package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// tempPrefix marks files still being written. They never carry a valid key
// and are collected by the pruner if an upload dies halfway.
const tempPrefix = ".upload-"

// LocalStore implements BlobStore on a single local directory.
// Keys are plain file names inside that directory.
type LocalStore struct {
	dir string
}

// NewLocal creates the upload directory if needed and returns a LocalStore.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

var _ BlobStore = (*LocalStore)(nil)

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes r to a temp file, syncs it and renames it into place, so a
// reader never observes a partially written blob under a real key.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, originalFilename string, opt SaveOptions) (ObjectInfo, error) {
	if err := opt.Validate(); err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	size, err := io.Copy(tmp, newLimitReader(r, opt.MaxSize))
	if err != nil {
		cleanup()
		if errors.Is(err, ErrTooLarge) {
			return ObjectInfo{}, err
		}
		return ObjectInfo{}, fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return ObjectInfo{}, fmt.Errorf("syncing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("closing file: %w", err)
	}

	key := NewKey(originalFilename)
	if err := os.Rename(tmpPath, filepath.Join(s.dir, key)); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("renaming file: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
	}, nil
}

// Exists reports whether key names a regular file in the directory.
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	path, ok := s.resolve(key)
	if !ok {
		return false, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return st.Mode().IsRegular(), nil
}

// Open returns the file for reading. The caller must close it.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, ok := s.resolve(key)
	if !ok {
		return nil, ObjectInfo{}, ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("opening file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}
	return f, ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, ok := s.resolve(key)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// List returns every regular file in the directory, temp files included.
func (s *LocalStore) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, ObjectInfo{Key: e.Name(), Size: info.Size(), LastModified: info.ModTime()})
	}
	return out, nil
}

// resolve maps a key to a path, refusing anything that is not a bare file
// name inside the directory.
func (s *LocalStore) resolve(key string) (string, bool) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", false
	}
	return filepath.Join(s.dir, key), true
}
