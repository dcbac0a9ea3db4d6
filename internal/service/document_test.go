package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"docvault/internal/model"
	"docvault/internal/repository"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) DocumentService {
	return NewDocumentService(mStore, mRepo, Options{MaxUploadBytes: 1024})
}

func TestNewDocumentService_Defaults(t *testing.T) {
	svc := NewDocumentService(nil, nil, Options{}).(*documentService)
	assert.Equal(t, int64(10*1024*1024), svc.opts.MaxUploadBytes)
	assert.Equal(t, "application/pdf", svc.opts.AllowedContentType)
	assert.NotNil(t, svc.log)
}

func TestErrorClasses(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidContentType, ErrInvalidInput)
	assert.ErrorIs(t, ErrTooLarge, ErrInvalidInput)
	assert.ErrorIs(t, ErrReaderNil, ErrInvalidInput)
	assert.ErrorIs(t, ErrFileRequired, ErrInvalidInput)
	assert.ErrorIs(t, ErrInvalidID, ErrInvalidInput)
	assert.ErrorIs(t, ErrDocumentNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrBlobMissing, ErrNotFound)
	assert.NotErrorIs(t, ErrBlobMissing, ErrDocumentNotFound)
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name             string
		originalFilename string
		contentType      string
		size             int64
		setupMocks       func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader
		wantErr          error
		wantErrMsg       string
	}{
		{
			name:             "happy path",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             11,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello world")
				mStore.On("Save", mock.Anything, r, "test.pdf", storage.SaveOptions{
					ContentType:        "application/pdf",
					Size:               11,
					MaxSize:            1024,
					AllowedContentType: "application/pdf",
				}).Return(storage.ObjectInfo{
					Key:         "uuid-test.pdf",
					Size:        11,
					ContentType: "application/pdf",
				}, nil)

				mRepo.On("Create", mock.Anything, "test.pdf", "uuid-test.pdf", int64(11)).
					Return(&model.Document{ID: 1, Filename: "test.pdf", StoragePath: "uuid-test.pdf", Size: 11}, nil)

				return r
			},
		},
		{
			name:             "validation error - nil reader",
			originalFilename: "test.pdf",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return nil
			},
			wantErr: ErrReaderNil,
		},
		{
			name:             "wrong content type",
			originalFilename: "notes.txt",
			contentType:      "text/plain",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Save", mock.Anything, r, "notes.txt", mock.Anything).
					Return(storage.ObjectInfo{}, storage.ErrInvalidContentType)
				return r
			},
			wantErr: ErrInvalidContentType,
		},
		{
			name:             "too large",
			originalFilename: "big.pdf",
			contentType:      "application/pdf",
			size:             -1,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Save", mock.Anything, r, "big.pdf", mock.Anything).
					Return(storage.ObjectInfo{}, errors.Join(storage.ErrTooLarge, errors.New("limit is 1.0 KiB")))
				return r
			},
			wantErr: ErrTooLarge,
		},
		{
			name:             "storage error",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Save", mock.Anything, r, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
				return r
			},
			wantErr:    ErrStorageFailure,
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name:             "repository error leaves blob in place",
			originalFilename: "test.pdf",
			contentType:      "application/pdf",
			size:             5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Save", mock.Anything, r, mock.Anything, mock.Anything).
					Return(func(ctx context.Context, r io.Reader, name string, opt storage.SaveOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: "uuid-" + name, Size: 5}
					}, nil)
				mRepo.On("Create", mock.Anything, "test.pdf", "uuid-test.pdf", int64(5)).
					Return(nil, errors.New("db fail"))
				return r
			},
			wantErr:    ErrStorageFailure,
			wantErrMsg: "db save failed: db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newService(mStore, mRepo)

			r := tt.setupMocks(mStore, mRepo)

			doc, err := svc.Upload(ctx, r, tt.originalFilename, tt.contentType, tt.size)

			switch {
			case tt.wantErr != nil || tt.wantErrMsg != "":
				require.Error(t, err)
				assert.Nil(t, doc)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				if tt.wantErrMsg != "" {
					assert.Contains(t, err.Error(), tt.wantErrMsg)
				}
			default:
				assert.NoError(t, err)
				assert.NotNil(t, doc)
			}

			mStore.AssertExpectations(t)
			mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantLen    int
		wantErr    error
	}{
		{
			name: "success",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything).Return([]model.Document{{ID: 1}, {ID: 2}}, nil)
			},
			wantLen: 2,
		},
		{
			name: "nil from repository becomes empty",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything).Return(nil, nil)
			},
			wantLen: 0,
		},
		{
			name: "repository error",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newService(new(storeMocks.MockBlobStore), mRepo)
			tt.setupMocks(mRepo)

			docs, err := svc.List(ctx)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, docs)
			} else {
				require.NoError(t, err)
				require.NotNil(t, docs)
				assert.Len(t, docs, tt.wantLen)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Fetch(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: 7, Filename: "a.pdf", StoragePath: "k-a.pdf", Size: 3}

	tests := []struct {
		name       string
		setupMocks func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "success",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(7)).Return(doc, nil)
				mStore.On("Open", mock.Anything, "k-a.pdf").
					Return(io.NopCloser(strings.NewReader("abc")), storage.ObjectInfo{Key: "k-a.pdf", Size: 3}, nil)
			},
		},
		{
			name: "row not found",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(7)).Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrDocumentNotFound,
		},
		{
			name: "repository error",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(7)).Return(nil, errors.New("conn reset"))
			},
			wantErr: ErrStorageFailure,
		},
		{
			name: "blob missing",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(7)).Return(doc, nil)
				mStore.On("Open", mock.Anything, "k-a.pdf").Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)
			},
			wantErr: ErrBlobMissing,
		},
		{
			name: "blob store error",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(7)).Return(doc, nil)
				mStore.On("Open", mock.Anything, "k-a.pdf").Return(nil, storage.ObjectInfo{}, errors.New("io"))
			},
			wantErr: ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newService(mStore, mRepo)
			tt.setupMocks(mStore, mRepo)

			dl, err := svc.Fetch(ctx, 7)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, dl)
			} else {
				require.NoError(t, err)
				defer dl.Content.Close()
				body, _ := io.ReadAll(dl.Content)
				assert.Equal(t, "abc", string(body))
				assert.Equal(t, "a.pdf", dl.Document.Filename)
				assert.Equal(t, int64(3), dl.Size)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Remove(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: 3, Filename: "a.pdf", StoragePath: "k-a.pdf"}

	tests := []struct {
		name         string
		setupMocks   func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository)
		wantFilename string
		wantErr      error
		wantErrMsgs  []string
	}{
		{
			name: "success",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(3)).Return(doc, nil)
				mStore.On("Delete", mock.Anything, "k-a.pdf").Return(nil)
				mRepo.On("Delete", mock.Anything, int64(3)).Return(nil)
			},
			wantFilename: "a.pdf",
		},
		{
			name: "not found",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrDocumentNotFound,
		},
		{
			name: "row removed concurrently",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(3)).Return(doc, nil)
				mStore.On("Delete", mock.Anything, "k-a.pdf").Return(nil)
				mRepo.On("Delete", mock.Anything, int64(3)).Return(repository.ErrNotFound)
			},
			wantFilename: "a.pdf",
		},
		{
			name: "blob delete fails, row still deleted",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(3)).Return(doc, nil)
				mStore.On("Delete", mock.Anything, "k-a.pdf").Return(errors.New("permission denied"))
				mRepo.On("Delete", mock.Anything, int64(3)).Return(nil)
			},
			wantErr:     ErrStorageFailure,
			wantErrMsgs: []string{"delete blob: permission denied"},
		},
		{
			name: "both steps fail",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, int64(3)).Return(doc, nil)
				mStore.On("Delete", mock.Anything, "k-a.pdf").Return(errors.New("permission denied"))
				mRepo.On("Delete", mock.Anything, int64(3)).Return(errors.New("db down"))
			},
			wantErr:     ErrStorageFailure,
			wantErrMsgs: []string{"delete blob: permission denied", "delete row: db down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newService(mStore, mRepo)
			tt.setupMocks(mStore, mRepo)

			filename, err := svc.Remove(ctx, 3)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, filename)
				for _, msg := range tt.wantErrMsgs {
					assert.Contains(t, err.Error(), msg)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFilename, filename)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_NeverIssuedID(t *testing.T) {
	mStore := new(storeMocks.MockBlobStore)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := newService(mStore, mRepo)

	for _, id := range []int64{0, -1} {
		_, err := svc.Fetch(context.Background(), id)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
		assert.NotErrorIs(t, err, ErrInvalidInput)

		_, err = svc.Remove(context.Background(), id)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	}

	mRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
