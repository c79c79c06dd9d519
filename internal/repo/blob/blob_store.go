package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

var (
	// ErrWrongType is returned when a key exists but does not hold a byte string.
	ErrWrongType = errors.New("wrong type")
	// ErrStoreAccess is returned when reading, resizing or writing a key fails.
	ErrStoreAccess = errors.New("store access")
	// ErrKeyNotFound is returned when reading a key that does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrReadOnly is returned when writing through a handle opened with ModeRead.
	ErrReadOnly = errors.New("handle is read-only")
	// ErrHandleClosed is returned when using a handle after Close.
	ErrHandleClosed = errors.New("handle closed")
	// ErrUnknownBackend is returned by the factory for an unsupported store backend.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// KeyType is the kind of value held under a key.
type KeyType int

const (
	KeyTypeEmpty KeyType = iota
	KeyTypeString
	KeyTypeOther
)

func (kt KeyType) String() string {
	switch kt {
	case KeyTypeEmpty:
		return "empty"
	case KeyTypeString:
		return "string"
	case KeyTypeOther:
		return "other"
	default:
		return fmt.Sprintf("KeyType(%d)", int(kt))
	}
}

// Mode selects the access a Handle is opened with.
type Mode int

const (
	ModeRead Mode = iota
	ModeReadWrite
)

func (mode Mode) String() string {
	if mode == ModeReadWrite {
		return "rw"
	}

	return "r"
}

// Store is a keyed byte-string store.
type Store interface {
	// Open acquires a handle on key. The handle's open-to-close span is atomic with
	// respect to other handles writing the same key: a write through a ModeReadWrite
	// handle fails with ErrStoreAccess rather than clobbering a concurrent change.
	// Opening an absent key succeeds; Handle.Type reports KeyTypeEmpty.
	Open(ctx context.Context, key domain.BlobKey, mode Mode) (Handle, error)

	// Put stores blob under its key, creating or replacing a byte string.
	// Returns ErrWrongType if the key holds a non-string value.
	Put(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves the byte string under key.
	// Returns ErrKeyNotFound if the key is absent and ErrWrongType for non-string values.
	Fetch(ctx context.Context, key domain.BlobKey) (*domain.Blob, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key domain.BlobKey) error

	// Close releases resources held by the store.
	Close() error
}

// Handle is an open reference to one key.
type Handle interface {
	// Key returns the key the handle was opened on.
	Key() domain.BlobKey

	// Type reports whether the key is absent, a byte string, or something else.
	Type(ctx context.Context) (KeyType, error)

	// Read returns the key's bytes. The returned slice is owned by the caller's handle
	// and must not be retained after Close.
	// Returns ErrWrongType if the key is not a byte string.
	Read(ctx context.Context) ([]byte, error)

	// TruncateAndWrite resizes the key's value to len(data) and overwrites it with data.
	// Returns an error wrapping ErrStoreAccess on failure.
	TruncateAndWrite(ctx context.Context, data []byte) error

	// Close releases the handle. Calling Close more than once is a no-op.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
// Returns an error if initialization fails.
type StoreFactory func(ctx context.Context) (Store, error)

// StoreConfig selects and configures the store backend.
type StoreConfig struct {
	// Backend is either "redis" or "filesystem"
	Backend string `env:"BACKEND" default:"redis"`

	Redis      RedisBlobStoreConfig      `envPrefix:"REDIS_"`
	FileSystem FileSystemBlobStoreConfig `envPrefix:"FS_"`
}

// NewStoreFactory returns a StoreFactory for the backend named in cfg.
func NewStoreFactory(cfg StoreConfig) (StoreFactory, error) {
	switch cfg.Backend {
	case "redis":
		return RedisBlobStoreFactory(cfg.Redis), nil
	case "filesystem", "fs":
		return FileSystemBlobStoreFactory(cfg.FileSystem), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
