package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore is the narrow contract with the attachment storage backend.
// Put persists the bytes and returns an opaque storage path.
type BlobStore interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
}

// DiskStore writes attachment blobs under a local directory. Files get
// uuid-prefixed names so logical filenames never collide.
type DiskStore struct {
	dir string
}

// NewDiskStore ensures the directory exists and returns the store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Put writes the blob and returns its path.
func (s *DiskStore) Put(ctx context.Context, filename string, data []byte) (string, error) {
	name := uuid.NewString() + "_" + filepath.Base(filename)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return path, nil
}
