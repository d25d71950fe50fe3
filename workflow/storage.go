package workflow

import (
	"context"
	"io"
	"sync"

	"github.com/mmdatafocus/docgen_backend/utils"
)

// ArtifactStorage is the opaque storage contract for generated artifacts.
type ArtifactStorage interface {
	// Save persists the artifact and returns its location key.
	Save(ctx context.Context, data []byte, name string, contentType string) (string, error)
	OpenRead(ctx context.Context, locationKey string) (io.ReadCloser, error)
	// Delete is idempotent; the bool reports whether anything was removed.
	Delete(ctx context.Context, locationKey string) (bool, error)
	// PublicURL maps a location key to a caller-facing URL; may return the
	// key itself when no access base is configured.
	PublicURL(locationKey string) string
}

// GCSStorage stores artifacts in the service's Google Cloud Storage bucket.
type GCSStorage struct{}

func NewGCSStorage() *GCSStorage { return &GCSStorage{} }

func (s *GCSStorage) Save(ctx context.Context, data []byte, name string, contentType string) (string, error) {
	if err := utils.UploadBytesToGCS(ctx, name, data, contentType); err != nil {
		return "", err
	}
	return name, nil
}

func (s *GCSStorage) OpenRead(ctx context.Context, locationKey string) (io.ReadCloser, error) {
	return utils.OpenGCSObject(ctx, locationKey)
}

func (s *GCSStorage) Delete(ctx context.Context, locationKey string) (bool, error) {
	return utils.DeleteGCSObject(ctx, locationKey)
}

func (s *GCSStorage) PublicURL(locationKey string) string {
	return utils.BuildObjectAccessURL(locationKey)
}

// MemoryStorage keeps artifacts in process memory for tests and local runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: map[string][]byte{}}
}

func (s *MemoryStorage) Save(ctx context.Context, data []byte, name string, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[name] = cp
	return name, nil
}

func (s *MemoryStorage) OpenRead(ctx context.Context, locationKey string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[locationKey]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return io.NopCloser(newBytesReader(data)), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, locationKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[locationKey]
	delete(s.objects, locationKey)
	return ok, nil
}

func (s *MemoryStorage) PublicURL(locationKey string) string { return locationKey }

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

type bytesReader struct {
	data []byte
	off  int
}

func newBytesReader(data []byte) *bytesReader { return &bytesReader{data: data} }

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}
