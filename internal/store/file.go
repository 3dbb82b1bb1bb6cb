// internal/store/file.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileBackend stores each value as <dir>/<namespace>/<key>.json
type FileBackend struct {
	dir string
}

// NewFileBackend creates the root directory if needed
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(namespace, key string) string {
	return filepath.Join(f.dir, unsafeName.ReplaceAllString(namespace, "_"), unsafeName.ReplaceAllString(key, "_")+".json")
}

// Get reads the value file
func (f *FileBackend) Get(namespace, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(namespace, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	return data, true, nil
}

// Set writes the value through a temp file so readers never see a partial write
func (f *FileBackend) Set(namespace, key string, value []byte) error {
	path := f.path(namespace, key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0600); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes the value file
func (f *FileBackend) Delete(namespace, key string) error {
	err := os.Remove(f.path(namespace, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Close is a no-op
func (f *FileBackend) Close() error {
	return nil
}
