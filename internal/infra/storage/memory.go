package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

type blob struct {
	contentType string
	data        []byte
}

// MemoryStore keeps object-reference previews in process memory. URIs point
// at the router's /v1/blobs/{key} endpoint.
type MemoryStore struct {
	baseURL string

	mu    sync.Mutex
	blobs map[string]blob
}

// NewMemoryStore; baseURL is the public origin of the API ("" for relative URIs).
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string]blob),
	}
}

func (s *MemoryStore) Acquire(ctx context.Context, file domain.SubmittedFile) (domain.Preview, error) {
	if err := ctx.Err(); err != nil {
		return domain.Preview{}, err
	}
	key := uuid.New().String()
	data := append([]byte(nil), file.Content...)

	s.mu.Lock()
	s.blobs[key] = blob{contentType: file.MIMEType, data: data}
	s.mu.Unlock()

	return domain.Preview{
		Kind: domain.PreviewObjectRef,
		URI:  s.baseURL + "/v1/blobs/" + key,
		Key:  key,
	}, nil
}

// Release frees the blob. Keys are never reused, so releasing a key that is
// not live (already released or unknown) fails with ErrPreviewReleased.
func (s *MemoryStore) Release(ctx context.Context, p domain.Preview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[p.Key]; !ok {
		return domain.ErrPreviewReleased
	}
	delete(s.blobs, p.Key)
	return nil
}

// Open returns the blob bytes for serving.
func (s *MemoryStore) Open(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, "", false
	}
	return b.data, b.contentType, true
}

// Live returns how many previews are currently acquired.
func (s *MemoryStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Check implements the health checker.
func (s *MemoryStore) Check(ctx context.Context) error {
	return ctx.Err()
}
