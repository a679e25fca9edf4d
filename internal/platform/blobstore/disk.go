package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var storedNamePattern = regexp.MustCompile(`^[0-9a-f-]{36}\.[a-z]+$`)

// DiskStore writes files to a local directory served under baseURL.
type DiskStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewDiskStore creates dir if needed. Stored files are named <uuid><ext>.
func NewDiskStore(dir, baseURL string, maxBytes int64) (*DiskStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: baseURL, maxBytes: maxBytes}, nil
}

func (s *DiskStore) Save(_ context.Context, up Upload) (*Object, error) {
	head, content, err := sniff(up.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	contentType, ext, err := Classify(up.FileName, up.ContentType, head)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), io.LimitReader(content, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	id := uuid.NewString()
	stored := id + ext
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, stored)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &Object{
		ID:          id,
		FileName:    filepath.Base(up.FileName),
		StoredName:  stored,
		ContentType: contentType,
		Size:        n,
		Hash:        hex.EncodeToString(hash.Sum(nil)),
		URL:         path.Join(s.baseURL, stored),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *DiskStore) Open(_ context.Context, storedName string) (io.ReadCloser, error) {
	if !storedNamePattern.MatchString(storedName) {
		return nil, ErrBlobNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, storedName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

func (s *DiskStore) Delete(_ context.Context, storedName string) error {
	if !storedNamePattern.MatchString(storedName) {
		return ErrBlobNotFound
	}
	err := os.Remove(filepath.Join(s.dir, storedName))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}
