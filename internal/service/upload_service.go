package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/ids"
	"github.com/steinsgo/personal-site/internal/media/sniffer"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/storage"
	"github.com/steinsgo/personal-site/internal/tasks"
)

type UploadRecords interface {
	Create(ctx context.Context, upload models.Upload) (models.Upload, error)
	GetByID(ctx context.Context, id string) (models.Upload, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore is satisfied by *storage.ObjectStore.
type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
}

type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task tasks.Task) error
}

type UploadInput struct {
	User   models.User
	File   multipart.File
	Header *multipart.FileHeader
}

type UploadResult struct {
	Upload models.Upload
	URL    string
}

type UploadService struct {
	records      UploadRecords
	blobs        BlobStore
	queue        TaskEnqueuer
	publicPrefix string
	maxBytes     int64
	now          func() time.Time
	log          zerolog.Logger
}

// NewUploadService builds the upload collaborator. queue may be nil.
func NewUploadService(records UploadRecords, blobs BlobStore, queue TaskEnqueuer, publicPrefix string, maxBytes int64, log zerolog.Logger) *UploadService {
	return &UploadService{
		records:      records,
		blobs:        blobs,
		queue:        queue,
		publicPrefix: publicPrefix,
		maxBytes:     maxBytes,
		now:          time.Now,
		log:          log,
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.File == nil || input.Header == nil {
		return UploadResult{}, invalid("file", "is required")
	}
	if input.Header.Size > s.maxBytes {
		return UploadResult{}, invalid("file", "must be at most %d bytes", s.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(input.File, s.maxBytes+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return UploadResult{}, invalid("file", "is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return UploadResult{}, invalid("file", "must be at most %d bytes", s.maxBytes)
	}

	format, err := sniffer.Detect(data[:min(len(data), sniffer.HeadSize)])
	if err != nil {
		return UploadResult{}, invalid("file", "must be a jpeg, png, webp or gif image")
	}
	if declared := sniffer.DeclaredMIME(input.Header.Header); declared != "" && declared != format.MIME {
		return UploadResult{}, invalid("file", "declared %s but content is %s", declared, format.MIME)
	}

	uploadID := ids.New()
	objectKey := s.objectKey(uploadID, format.Ext)

	info, err := s.blobs.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), format.MIME)
	if err != nil {
		return UploadResult{}, err
	}

	sum := sha256.Sum256(data)
	upload, err := s.records.Create(ctx, models.Upload{
		ID:        uploadID,
		UserID:    input.User.ID,
		Bucket:    s.blobs.Bucket(),
		ObjectKey: objectKey,
		MIME:      format.MIME,
		SizeBytes: info.Size,
		Checksum:  sum[:],
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("save metadata: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, tasks.Task{Type: tasks.TypeUploadCheck, UploadID: upload.ID}); err != nil {
			s.log.Warn().Err(err).Str("upload_id", upload.ID).Msg("enqueue upload check failed")
		}
	}

	return UploadResult{Upload: upload, URL: s.publicPrefix + objectKey}, nil
}

// Open streams a stored upload back. Unknown or malformed keys are
// ErrNotFound.
func (s *UploadService) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") || path.Clean(key) != key {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}

	body, info, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("get object: %w", err)
	}
	return body, info, nil
}

// Verify checks that an upload's object exists with the recorded size and
// drops the metadata row when the object is gone.
func (s *UploadService) Verify(ctx context.Context, uploadID string) error {
	upload, err := s.records.GetByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, repository.ErrUploadNotFound) {
			return nil
		}
		return fmt.Errorf("load upload: %w", err)
	}

	info, err := s.blobs.Stat(ctx, upload.ObjectKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		s.log.Warn().Str("upload_id", upload.ID).Str("object_key", upload.ObjectKey).Msg("upload object missing, dropping record")
		if err := s.records.Delete(ctx, upload.ID); err != nil && !errors.Is(err, repository.ErrUploadNotFound) {
			return fmt.Errorf("delete upload: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stat object: %w", err)
	}

	if info.Size != upload.SizeBytes {
		s.log.Warn().
			Str("upload_id", upload.ID).
			Int64("recorded", upload.SizeBytes).
			Int64("stored", info.Size).
			Msg("upload size mismatch")
	}
	return nil
}

func (s *UploadService) objectKey(id, ext string) string {
	return path.Join(s.now().UTC().Format("2006/01/02"), id+"."+ext)
}
