// Package storage uploads loan exports to an object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/bibliotheque/apiserver/config"
)

// Supported values of STORAGE_BACKEND.
const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

// Object is one upload. Filename, when set, is offered to browsers as the
// download name. Metadata is stored as user metadata on the object.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
	Metadata    map[string]string
}

// ContentDisposition returns the attachment header for Filename, or "".
func (o Object) ContentDisposition() string {
	if strings.TrimSpace(o.Filename) == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": o.Filename})
}

// ObjectStorage defines the object operations used by exports.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, obj Object) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// NewFromConfig builds the backend selected by cfg.Backend and makes sure
// its bucket exists.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch name := strings.ToLower(strings.TrimSpace(cfg.Backend)); name {
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return s, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads obj to the configured bucket.
func (s *Storage) Put(ctx context.Context, obj Object) error {
	if strings.TrimSpace(obj.Key) == "" {
		return fmt.Errorf("object key is required")
	}
	return s.backend.Put(ctx, obj)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend client.
func (s *Storage) Close() error {
	return s.backend.Close()
}
