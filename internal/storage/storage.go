// Package storage contains the blob store: the place document bytes live.
// Two implementations exist, a local directory and an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Open when the key does not resolve to a blob.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidContentType is returned by Save when the declared content type is not the allowed one.
	ErrInvalidContentType = errors.New("invalid content type")
	// ErrTooLarge is returned by Save when the stream exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

// maxNameBytes keeps generated keys well under common filesystem name limits.
const maxNameBytes = 200

// SaveOptions carry the upload's declared attributes and the limits Save enforces.
// Size is the declared byte count, or -1 when unknown.
type SaveOptions struct {
	ContentType        string
	Size               int64
	MaxSize            int64
	AllowedContentType string
}

// ObjectInfo contains basic information about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobStore saves, opens and removes document bytes.
// Implementations must be safe for concurrent use by multiple goroutines.
type BlobStore interface {
	// Save validates opt, then streams r to a freshly generated key. Nothing is
	// written when validation fails, and partial data is removed when the
	// stream turns out to be larger than opt.MaxSize.
	Save(ctx context.Context, r io.Reader, originalFilename string, opt SaveOptions) (ObjectInfo, error)
	// Exists reports whether key resolves to a blob.
	Exists(ctx context.Context, key string) (bool, error)
	// Open returns the blob content as a streaming reader, or ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every blob currently held by the store.
	List(ctx context.Context) ([]ObjectInfo, error)
}

// Validate checks the declared content type and size before any byte is written.
func (o SaveOptions) Validate() error {
	if o.ContentType != o.AllowedContentType {
		return fmt.Errorf("%w: got %q, want %q", ErrInvalidContentType, o.ContentType, o.AllowedContentType)
	}
	if o.MaxSize > 0 && o.Size > o.MaxSize {
		return tooLarge(o.MaxSize)
	}
	return nil
}

func tooLarge(max int64) error {
	return fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(max)))
}

// NewKey returns a key of the form <uuid>-<name>. The uuid prefix makes keys
// unique; name is the sanitized base name of the client supplied filename.
func NewKey(originalFilename string) string {
	return uuid.NewString() + "-" + sanitizeName(originalFilename)
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return "document"
	}

	var b strings.Builder
	for _, r := range base {
		if r == utf8.RuneError || !unicode.IsPrint(r) {
			r = '_'
		}
		if b.Len()+utf8.RuneLen(r) > maxNameBytes {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// limitReader fails with ErrTooLarge once more than max bytes were read.
type limitReader struct {
	r        io.Reader
	max      int64
	read     int64
	exceeded bool
}

func newLimitReader(r io.Reader, max int64) *limitReader {
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, tooLarge(l.max)
	}
	if l.max > 0 {
		// read at most one byte past the limit to detect overflow
		if allowed := l.max - l.read + 1; int64(len(p)) > allowed {
			p = p[:allowed]
		}
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.max > 0 && l.read > l.max {
		l.exceeded = true
		return n, tooLarge(l.max)
	}
	return n, err
}
