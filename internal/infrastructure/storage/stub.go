package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
)

var _ stocktakingapp.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage keeps reports in process memory. It backs development
// setups without an S3 endpoint; links point at BaseURL.
type MemoryObjectStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryObjectStorage creates an empty MemoryObjectStorage
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8080/files"
	}
	return &MemoryObjectStorage{
		BaseURL: baseURL,
		objects: make(map[string]memoryObject),
	}
}

// Upload stores body under key
func (s *MemoryObjectStorage) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if key == "" {
		return errKeyRequired
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{contentType: contentType, data: data}
	return nil
}

// GenerateDownloadURL returns a pseudo-presigned link for key
func (s *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	if key == "" {
		return "", errKeyRequired
	}
	expiresAt := time.Now().Add(expires)
	return s.BaseURL + "/" + key + "?expires=" + expiresAt.UTC().Format(time.RFC3339), nil
}

// Open returns the stored object and its content type
func (s *MemoryObjectStorage) Open(key string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}
