package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemStore implements ObjectStore on a local directory tree. Keys
// map to paths under the base directory.
type FilesystemStore struct {
	basePath string
}

// NewFilesystemStore creates a filesystem-backed object store rooted at
// basePath, creating the directory if needed.
func NewFilesystemStore(basePath string) (*FilesystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required for filesystem storage")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemStore{basePath: basePath}, nil
}

// Put writes data at key, creating intermediate directories.
func (f *FilesystemStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(f.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Get reads the object at key.
func (f *FilesystemStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether an object is present at key.
func (f *FilesystemStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(f.basePath, filepath.FromSlash(key)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
