package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
)

// ErrConcurrentModification is returned when a watched key changed between Open and write.
var ErrConcurrentModification = errors.New("key modified concurrently")

// RedisBlobStoreConfig holds configuration for the Redis-backed blob store.
type RedisBlobStoreConfig struct {
	// Addr is the host:port of the Redis server
	Addr string `env:"ADDR" default:"localhost:6379"`
	// Username for ACL authentication, empty for none
	Username string `env:"USERNAME" default:""`
	// Password for authentication, empty for none
	Password string `env:"PASSWORD" default:""`
	// DB is the logical database index
	DB int `env:"DB" default:"0"`
	// KeyPrefix is prepended to every key
	KeyPrefix string `env:"KEY_PREFIX" default:""`
}

// RedisBlobStoreFactory creates a factory function that returns a new RedisStore.
// The factory function implements the StoreFactory type.
func RedisBlobStoreFactory(cfg RedisBlobStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewRedisBlobStore(ctx, cfg)
	}
}

// NewRedisBlobStore connects to Redis and verifies connectivity.
func NewRedisBlobStore(ctx context.Context, cfg RedisBlobStoreConfig) (*RedisStore, error) {
	//nolint:exhaustruct
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("ping: %w", err)
	}

	return NewRedisBlobStoreFromClient(rdb, cfg.KeyPrefix), nil
}

// NewRedisBlobStoreFromClient wraps an existing client. The store takes ownership of rdb.
func NewRedisBlobStoreFromClient(rdb *redis.Client, keyPrefix string) *RedisStore {
	log := logging.GetLogger("repo.blob.redis_store").With(
		logging.Group("repo",
			"addr", rdb.Options().Addr,
			"db", rdb.Options().DB,
			"prefix", keyPrefix,
		),
	)

	return &RedisStore{
		rdb:    rdb,
		prefix: keyPrefix,
		log:    log,
	}
}

// RedisStore implements Store on top of Redis string keys.
// Read-write handles pin a connection and WATCH the key, so the final write is applied
// only if nobody else touched the key in between.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	log    logging.Logger
}

var _ Store = (*RedisStore)(nil)

func (store *RedisStore) redisKey(key domain.BlobKey) string {
	return store.prefix + string(key)
}

// Open implements Store.Open.
func (store *RedisStore) Open(ctx context.Context, key domain.BlobKey, mode Mode) (_ Handle, err error) {
	if key == "" {
		return nil, domain.ErrNoKey
	}

	log := store.log.With(logging.Group("blob", "key", key, "mode", mode))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "blob open failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob opened")
		}
	}()

	conn := store.rdb.Conn()
	handle := &redisHandle{
		conn:     conn,
		key:      key,
		redisKey: store.redisKey(key),
		mode:     mode,
		log:      log,
		once:     new(sync.Once),
	}

	if mode == ModeReadWrite {
		if err := conn.Process(ctx, redis.NewStatusCmd(ctx, "WATCH", handle.redisKey)); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("%w: watch: %w", ErrStoreAccess, err)
		}

		handle.watching = true
	}

	return handle, nil
}

// Put implements Store.Put.
func (store *RedisStore) Put(ctx context.Context, blob *domain.Blob) (err error) {
	defer func() {
		log := store.log.With(logging.Group("blob", "key", blob.Key))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	handle, err := store.Open(ctx, blob.Key, ModeReadWrite)
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
func (store *RedisStore) Fetch(ctx context.Context, key domain.BlobKey) (_ *domain.Blob, err error) {
	handle, err := store.Open(ctx, key, ModeRead)
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
func (store *RedisStore) Delete(ctx context.Context, key domain.BlobKey) error {
	if err := store.rdb.Del(ctx, store.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: del: %w", ErrStoreAccess, err)
	}

	return nil
}

// Close implements Store.Close by closing the Redis client.
func (store *RedisStore) Close() error {
	if err := store.rdb.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}

type redisHandle struct {
	conn     *redis.Conn
	key      domain.BlobKey
	redisKey string
	mode     Mode
	watching bool
	closed   bool
	log      logging.Logger
	once     *sync.Once
}

var _ Handle = (*redisHandle)(nil)

func (h *redisHandle) Key() domain.BlobKey {
	return h.key
}

func (h *redisHandle) Type(ctx context.Context) (KeyType, error) {
	if h.closed {
		return KeyTypeEmpty, ErrHandleClosed
	}

	typ, err := h.conn.Type(ctx, h.redisKey).Result()
	if err != nil {
		return KeyTypeEmpty, fmt.Errorf("%w: type: %w", ErrStoreAccess, err)
	}

	switch typ {
	case "none":
		return KeyTypeEmpty, nil
	case "string":
		return KeyTypeString, nil
	default:
		return KeyTypeOther, nil
	}
}

func (h *redisHandle) Read(ctx context.Context) ([]byte, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}

	data, err := h.conn.Get(ctx, h.redisKey).Bytes()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
			return nil, ErrKeyNotFound
		case isWrongTypeError(err):
			return nil, ErrWrongType
		default:
			return nil, fmt.Errorf("%w: get: %w", ErrStoreAccess, err)
		}
	}

	return data, nil
}

func (h *redisHandle) TruncateAndWrite(ctx context.Context, data []byte) error {
	if h.closed {
		return ErrHandleClosed
	}

	if h.mode != ModeReadWrite {
		return fmt.Errorf("%w: %w", ErrStoreAccess, ErrReadOnly)
	}

	_, err := h.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, h.redisKey, data, redis.KeepTTL)

		return nil
	})

	// EXEC drops the watch whether or not the transaction ran.
	h.watching = false

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("%w: %w", ErrStoreAccess, ErrConcurrentModification)
		}

		return fmt.Errorf("%w: set: %w", ErrStoreAccess, err)
	}

	return nil
}

func (h *redisHandle) Close() (err error) {
	h.once.Do(func() {
		h.closed = true

		if h.watching {
			ctx := context.Background()
			if uerr := h.conn.Process(ctx, redis.NewStatusCmd(ctx, "UNWATCH")); uerr != nil {
				h.log.Warn("blob unwatch failed", "error", uerr)
			}

			h.watching = false
		}

		if err = h.conn.Close(); err != nil {
			err = fmt.Errorf("close conn: %w", err)
		}

		h.log.Debug("blob closed")
	})

	return err
}

func isWrongTypeError(err error) bool {
	return strings.HasPrefix(err.Error(), "WRONGTYPE")
}
