package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// Error classes. Handlers branch on these with errors.Is.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrStorageFailure = errors.New("storage failure")
)

var (
	ErrReaderNil          = fmt.Errorf("%w: reader is nil", ErrInvalidInput)
	ErrInvalidContentType = fmt.Errorf("%w: only PDF files are allowed", ErrInvalidInput)
	ErrTooLarge           = fmt.Errorf("%w: file too large", ErrInvalidInput)
	ErrFileRequired       = fmt.Errorf("%w: no PDF uploaded", ErrInvalidInput)
	ErrInvalidID          = fmt.Errorf("%w: invalid document id", ErrInvalidInput)
	ErrDocumentNotFound   = fmt.Errorf("%w: document not found", ErrNotFound)
	// ErrBlobMissing means the catalog row exists but its file is gone.
	ErrBlobMissing = fmt.Errorf("%w: file missing from server storage", ErrNotFound)
)

var tracer = otel.Tracer("docvault/internal/service")

// Download is an open document ready to be streamed to a client.
// The caller must close Content.
type Download struct {
	Document model.Document
	Content  io.ReadCloser
	Size     int64
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload saves the content to the blob store, then records it in the catalog.
	// If the catalog insert fails the blob stays behind as an orphan; the pruner
	// worker collects it later.
	Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*model.Document, error)

	// List returns every document in catalog order.
	List(ctx context.Context) ([]model.Document, error)

	// Fetch opens the blob behind a document for download.
	Fetch(ctx context.Context, id int64) (*Download, error)

	// Remove deletes the blob and the catalog row and returns the document's filename.
	Remove(ctx context.Context, id int64) (string, error)
}

// Options tune the upload limits. Zero values fall back to the defaults.
type Options struct {
	MaxUploadBytes     int64
	AllowedContentType string
	Logger             logging.Logger
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store storage.BlobStore
	repo  repository.DocumentRepository
	opts  Options
	log   logging.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.BlobStore, repo repository.DocumentRepository, opts Options) DocumentService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = config.DefaultMaxUploadBytes
	}
	if opts.AllowedContentType == "" {
		opts.AllowedContentType = config.DefaultAllowedContentType
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &documentService{
		store: store,
		repo:  repo,
		opts:  opts,
		log:   log.With("component", "document_service"),
	}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (doc *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload", trace.WithAttributes(
		attribute.String("document.filename", originalFilename),
		attribute.String("document.content_type", contentType),
		attribute.Int64("document.declared_size", size),
	))
	defer func() { endSpan(span, err) }()

	if r == nil {
		return nil, ErrReaderNil
	}

	obj, err := s.store.Save(ctx, r, originalFilename, storage.SaveOptions{
		ContentType:        contentType,
		Size:               size,
		MaxSize:            s.opts.MaxUploadBytes,
		AllowedContentType: s.opts.AllowedContentType,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidContentType):
			return nil, fmt.Errorf("%w: %v", ErrInvalidContentType, err)
		case errors.Is(err, storage.ErrTooLarge):
			return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
		default:
			return nil, fmt.Errorf("%w: upload to storage: %w", ErrStorageFailure, err)
		}
	}

	doc, err = s.repo.Create(ctx, originalFilename, obj.Key, obj.Size)
	if err != nil {
		// No rollback: the blob is left for the pruner.
		s.log.Error(ctx, "catalog insert failed, blob orphaned",
			"filename", originalFilename,
			"filepath", obj.Key,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: db save failed: %w", ErrStorageFailure, err)
	}

	span.SetAttributes(attribute.Int64("document.id", doc.ID))
	s.log.Info(ctx, "document uploaded",
		"id", doc.ID,
		"filename", doc.Filename,
		"filepath", doc.StoragePath,
		"filesize", doc.Size,
	)
	return doc, nil
}

// List returns the catalog unmodified.
func (s *documentService) List(ctx context.Context) (docs []model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.List")
	defer func() { endSpan(span, err) }()

	docs, err = s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", ErrStorageFailure, err)
	}
	if docs == nil {
		docs = []model.Document{}
	}
	span.SetAttributes(attribute.Int("document.count", len(docs)))
	return docs, nil
}

// Fetch distinguishes a missing row from a row whose file has disappeared.
func (s *documentService) Fetch(ctx context.Context, id int64) (dl *Download, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Fetch", trace.WithAttributes(
		attribute.Int64("document.id", id),
	))
	defer func() { endSpan(span, err) }()

	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	rc, info, err := s.store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn(ctx, "document blob missing",
				"id", doc.ID,
				"filepath", doc.StoragePath,
			)
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("%w: open blob: %w", ErrStorageFailure, err)
	}

	return &Download{Document: *doc, Content: rc, Size: info.Size}, nil
}

// Remove deletes the blob, then the row. Both steps are always attempted and
// their failures are joined. A row that vanished between the lookup and the
// delete means a concurrent Remove won; that is not an error.
func (s *documentService) Remove(ctx context.Context, id int64) (filename string, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Remove", trace.WithAttributes(
		attribute.Int64("document.id", id),
	))
	defer func() { endSpan(span, err) }()

	doc, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}

	var errs []error
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		s.log.Error(ctx, "blob delete failed",
			"id", doc.ID,
			"filepath", doc.StoragePath,
			"error", err.Error(),
		)
		errs = append(errs, fmt.Errorf("%w: delete blob: %w", ErrStorageFailure, err))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info(ctx, "document row already removed", "id", id)
		} else {
			s.log.Error(ctx, "catalog delete failed",
				"id", doc.ID,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("%w: delete row: %w", ErrStorageFailure, err))
		}
	}

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}

	s.log.Info(ctx, "document removed",
		"id", doc.ID,
		"filename", doc.Filename,
	)
	return doc.Filename, nil
}

// find treats ids the catalog never issues (zero, negative) as unknown.
func (s *documentService) find(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrDocumentNotFound
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%w: find document: %w", ErrStorageFailure, err)
	}
	return doc, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
