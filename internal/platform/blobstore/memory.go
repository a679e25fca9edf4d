package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedBlob struct {
	object  Object
	content []byte
}

// InMemoryStore keeps files in memory. It applies the same validation as
// DiskStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string]*storedBlob
	baseURL  string
	maxBytes int64
}

func NewInMemoryStore(baseURL string, maxBytes int64) *InMemoryStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}
	return &InMemoryStore{blobs: make(map[string]*storedBlob), baseURL: baseURL, maxBytes: maxBytes}
}

func (s *InMemoryStore) Save(_ context.Context, up Upload) (*Object, error) {
	head, content, err := sniff(up.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	contentType, ext, err := Classify(up.FileName, up.ContentType, head)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	id := uuid.NewString()
	obj := Object{
		ID:          id,
		FileName:    up.FileName,
		StoredName:  id + ext,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		URL:         s.baseURL + "/" + id + ext,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[obj.StoredName] = &storedBlob{object: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *InMemoryStore) Open(_ context.Context, storedName string) (io.ReadCloser, error) {
	s.mu.RLock()
	blob, ok := s.blobs[storedName]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.content)), nil
}

func (s *InMemoryStore) Delete(_ context.Context, storedName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[storedName]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, storedName)
	return nil
}

// Len reports how many files are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
