// internal/store/backend.go
package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBackend is returned by OpenBackend for an unsupported kind
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend is a namespaced key-value store holding serialized tool state.
// Each tool namespace owns the "items", "ui" and "schema" keys.
type Backend interface {
	// Get returns the value stored under namespace/key and whether it exists
	Get(namespace, key string) ([]byte, bool, error)

	// Set stores value under namespace/key, replacing any previous value
	Set(namespace, key string, value []byte) error

	// Delete removes namespace/key; deleting a missing key is not an error
	Delete(namespace, key string) error

	// Close releases the backend's resources
	Close() error
}

// Backend kinds accepted by OpenBackend
const (
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindMemory = "memory"
)

// OpenBackend opens the backend of the given kind rooted at dataDir
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch strings.ToLower(kind) {
	case KindSQLite, "":
		return OpenSQLite(dataDir)
	case KindFile:
		return NewFileBackend(dataDir)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}
