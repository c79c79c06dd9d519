package blob

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	"github.com/mkrupp/homecase-imagekv/internal/util/encoding"
)

var (
	ErrBytesWrittenMismatch = errors.New("bytes written mismatch")
	ErrBytesReadMismatch    = errors.New("bytes read mismatch")
)

const (
	dirPrefixLength = 2 // 32^2 = 1024 directories
	dirPrefixDepth  = 3 // 1024^3 directories

	lockRetryInterval = 10 * time.Millisecond
)

// FileSystemBlobStoreConfig holds configuration for the filesystem-based blob store.
type FileSystemBlobStoreConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobStoreFactory creates a factory function that returns a new FileSystemStore.
// The factory function implements the StoreFactory type.
func FileSystemBlobStoreFactory(cfg FileSystemBlobStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewFileSystemBlobStore(ctx, cfg)
	}
}

// NewFileSystemBlobStore creates a new FileSystemStore rooted at cfg.Basedir.
// Returns an error if the base directory cannot be created.
func NewFileSystemBlobStore(ctx context.Context, cfg FileSystemBlobStoreConfig) (*FileSystemStore, error) {
	log := logging.GetLogger("repo.blob.filesystem_store").With(
		logging.Group("repo", "basedir", cfg.Basedir),
	)

	store := &FileSystemStore{
		cfg: cfg,
		log: log,
	}

	if err := store.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return store, nil
}

// FileSystemStore implements Store using the local filesystem.
// Each key maps to one file in a hashed directory hierarchy. A regular file holds a byte
// string; any other node at that path (e.g. a directory) is reported as KeyTypeOther.
// Handles hold an flock on a sidecar lock file for their whole lifetime.
type FileSystemStore struct {
	cfg FileSystemBlobStoreConfig
	log logging.Logger
}

var _ Store = (*FileSystemStore)(nil)

// Open implements Store.Open.
func (fsStore *FileSystemStore) Open(ctx context.Context, key domain.BlobKey, mode Mode) (Handle, error) {
	if key == "" {
		return nil, domain.ErrNoKey
	}

	filename := fsStore.GetFilename(key)

	lockMode := syscall.LOCK_SH
	if mode == ModeReadWrite {
		lockMode = syscall.LOCK_EX
	}

	release, err := fsStore.flock(ctx, filename, lockMode)
	if err != nil {
		return nil, fmt.Errorf("%w: flock: %w", ErrStoreAccess, err)
	}

	return &fileSystemHandle{
		store:    fsStore,
		key:      key,
		filename: filename,
		mode:     mode,
		release:  release,
		once:     new(sync.Once),
	}, nil
}

// Put implements Store.Put.
func (fsStore *FileSystemStore) Put(ctx context.Context, blob *domain.Blob) error {
	handle, err := fsStore.Open(ctx, blob.Key, ModeReadWrite)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer handle.Close()

	if kt, err := handle.Type(ctx); err != nil {
		return fmt.Errorf("type: %w", err)
	} else if kt == KeyTypeOther {
		return ErrWrongType
	}

	return handle.TruncateAndWrite(ctx, blob.Bytes())
}

// Fetch implements Store.Fetch.
func (fsStore *FileSystemStore) Fetch(ctx context.Context, key domain.BlobKey) (*domain.Blob, error) {
	handle, err := fsStore.Open(ctx, key, ModeRead)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer handle.Close()

	data, err := handle.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return domain.NewBlob(key, data), nil
}

// Delete implements Store.Delete.
func (fsStore *FileSystemStore) Delete(ctx context.Context, key domain.BlobKey) (err error) {
	filename := fsStore.GetFilename(key)

	defer func() {
		log := fsStore.log.With(logging.Group("blob", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	release, err := fsStore.flock(ctx, filename, syscall.LOCK_EX)
	if err != nil {
		return fmt.Errorf("%w: flock: %w", ErrStoreAccess, err)
	}
	defer release()

	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove: %w", ErrStoreAccess, err)
	}

	return nil
}

// Close implements Store.Close. The filesystem store holds no global resources.
func (fsStore *FileSystemStore) Close() error {
	return nil
}

// GetFilename returns the full filesystem path for the value under key.
func (fsStore *FileSystemStore) GetFilename(key domain.BlobKey) string {
	return fsStore.getBasename(key) + ".bin"
}

func (fsStore *FileSystemStore) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			fsStore.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsStore.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(fsStore.cfg.Basedir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

func (fsStore *FileSystemStore) getBasename(key domain.BlobKey) string {
	// Keys are arbitrary strings, so the file name is derived from their hash
	sum := sha256.Sum256([]byte(key))
	basename := encoding.EncodeCrockfordB32LC(sum[:])

	// Split the filename into dirPrefixDepth chunks of dirPrefixLength characters
	// and create a directory structure like this:
	//   5f/56/69/5f56692f0df9ff68607abdb054943ed86bcee7c9f2a2d01fdcb27032f70f3fe9.bin
	prefixes := make([]string, 0, dirPrefixDepth)
	for i := 0; i < dirPrefixLength*dirPrefixDepth; i += dirPrefixLength {
		prefixes = append(prefixes, basename[i:i+dirPrefixLength])
	}

	return filepath.Join(append(append([]string{fsStore.cfg.Basedir}, prefixes...), basename)...)
}

func (fsStore *FileSystemStore) flock(ctx context.Context, filename string, mode int) (release func(), err error) {
	lockfile := filename + ".lock"
	log := fsStore.log.With(logging.Group("blob", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	// Poll with LOCK_NB so a waiting caller still honours ctx
	for {
		err = syscall.Flock(int(file.Fd()), mode|syscall.LOCK_NB)
		if err == nil {
			break
		}

		if !errors.Is(err, syscall.EWOULDBLOCK) {
			_ = file.Close()

			return nil, fmt.Errorf("flock: %w", err)
		}

		select {
		case <-ctx.Done():
			_ = file.Close()

			return nil, fmt.Errorf("flock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}

type fileSystemHandle struct {
	store    *FileSystemStore
	key      domain.BlobKey
	filename string
	mode     Mode
	release  func()
	closed   bool
	once     *sync.Once
}

var _ Handle = (*fileSystemHandle)(nil)

func (h *fileSystemHandle) Key() domain.BlobKey {
	return h.key
}

func (h *fileSystemHandle) Type(_ context.Context) (KeyType, error) {
	if h.closed {
		return KeyTypeEmpty, ErrHandleClosed
	}

	info, err := os.Lstat(h.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return KeyTypeEmpty, nil
		}

		return KeyTypeEmpty, fmt.Errorf("%w: stat: %w", ErrStoreAccess, err)
	}

	if !info.Mode().IsRegular() {
		return KeyTypeOther, nil
	}

	return KeyTypeString, nil
}

func (h *fileSystemHandle) Read(ctx context.Context) (data []byte, err error) {
	if h.closed {
		return nil, ErrHandleClosed
	}

	defer func() {
		log := h.store.log.With(logging.Group("blob", "key", h.key, "filename", h.filename))
		if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched", "size", len(data))
		}
	}()

	file, err := os.OpenFile(h.filename, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}

		return nil, fmt.Errorf("%w: open: %w", ErrStoreAccess, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %w", ErrStoreAccess, err)
	} else if !info.Mode().IsRegular() {
		return nil, ErrWrongType
	}

	//nolint:exhaustruct
	blob := &domain.Blob{Key: h.key}
	if n, err := blob.ReadFrom(file); err != nil {
		if errors.Is(err, syscall.EISDIR) {
			return nil, ErrWrongType
		}

		return nil, fmt.Errorf("%w: read: %w", ErrStoreAccess, err)
	} else if n != info.Size() {
		return nil, fmt.Errorf("%w: %w: expected %d, got %d", ErrStoreAccess, ErrBytesReadMismatch, info.Size(), n)
	}

	return blob.Bytes(), nil
}

func (h *fileSystemHandle) TruncateAndWrite(ctx context.Context, data []byte) (err error) {
	if h.closed {
		return ErrHandleClosed
	}

	if h.mode != ModeReadWrite {
		return fmt.Errorf("%w: %w", ErrStoreAccess, ErrReadOnly)
	}

	blob := domain.NewBlob(h.key, data)

	defer func() {
		log := h.store.log.With(logging.Group("blob", "key", h.key, "filename", h.filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(h.filename), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir all: %w", ErrStoreAccess, err)
	}

	file, err := os.OpenFile(h.filename, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open: %w", ErrStoreAccess, err)
	}
	defer file.Close()

	if err := file.Truncate(blob.Size()); err != nil {
		return fmt.Errorf("%w: truncate: %w", ErrStoreAccess, err)
	}

	if bytes, err := blob.WriteTo(file); err != nil {
		return fmt.Errorf("%w: write: %w", ErrStoreAccess, err)
	} else if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrStoreAccess, err)
	} else if info, err := file.Stat(); err != nil {
		return fmt.Errorf("%w: stat: %w", ErrStoreAccess, err)
	} else if bytes != info.Size() || bytes != blob.Size() {
		return fmt.Errorf("%w: %w: expected %d, got %d", ErrStoreAccess, ErrBytesWrittenMismatch, blob.Size(), bytes)
	}

	return nil
}

func (h *fileSystemHandle) Close() error {
	h.once.Do(func() {
		h.closed = true
		h.release()
	})

	return nil
}
