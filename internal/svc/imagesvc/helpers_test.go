package imagesvc_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/telemetry"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
	"github.com/mkrupp/homecase-imagekv/internal/repo/journal"

	. "github.com/mkrupp/homecase-imagekv/internal/svc/imagesvc"
)

// spyStore counts handle activity and can make writes fail.
type spyStore struct {
	blob.Store

	opens    atomic.Int32
	closes   atomic.Int32
	writeErr error
}

func (s *spyStore) Open(ctx context.Context, key domain.BlobKey, mode blob.Mode) (blob.Handle, error) {
	s.opens.Add(1)

	handle, err := s.Store.Open(ctx, key, mode)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &spyHandle{Handle: handle, store: s}, nil
}

type spyHandle struct {
	blob.Handle

	store  *spyStore
	closed atomic.Bool
}

func (h *spyHandle) TruncateAndWrite(ctx context.Context, data []byte) error {
	if h.store.writeErr != nil {
		return h.store.writeErr
	}

	return h.Handle.TruncateAndWrite(ctx, data) //nolint:wrapcheck
}

func (h *spyHandle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.store.closes.Add(1)
	}

	return h.Handle.Close() //nolint:wrapcheck
}

// hookCodec wraps the real codec with failure and timing hooks.
type hookCodec struct {
	*codec.Codec

	beforeDecode func()
	encodeErr    error
}

func (c *hookCodec) Decode(data []byte, cfg *codec.Config) (*codec.Image, error) {
	if c.beforeDecode != nil {
		c.beforeDecode()
	}

	return c.Codec.Decode(data, cfg) //nolint:wrapcheck
}

func (c *hookCodec) Encode(img *codec.Image, cfg *codec.Config) ([]byte, error) {
	if c.encodeErr != nil {
		return nil, c.encodeErr
	}

	return c.Codec.Encode(img, cfg) //nolint:wrapcheck
}

type serviceFixture struct {
	svc      *BlobImageService
	store    *spyStore
	codec    *hookCodec
	registry *prometheus.Registry
	// plantOther stores a non-string value under key
	plantOther func(key domain.BlobKey)
	mr         *miniredis.Miniredis
}

type fixtureOption func(cfg *ImageConfig)

func withCodecConfig(fn func(cfg *codec.Config)) fixtureOption {
	return func(cfg *ImageConfig) { fn(&cfg.Codec) }
}

func withMaxConcurrent(n int) fixtureOption {
	return func(cfg *ImageConfig) { cfg.MaxConcurrent = n }
}

func newFixture(t *testing.T, store blob.Store, opts ...fixtureOption) *serviceFixture {
	t.Helper()

	cfg := DefaultImageConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	spy := &spyStore{Store: store}         //nolint:exhaustruct
	hook := &hookCodec{Codec: codec.New()} //nolint:exhaustruct
	registry := prometheus.NewRegistry()

	svc, err := NewBlobImageService(
		context.Background(),
		func(context.Context) (blob.Store, error) { return spy, nil },
		journal.SQLiteRepositoryFactory(journal.SQLiteRepositoryConfig{
			DatabasePath: filepath.Join(t.TempDir(), "journal.db"),
		}),
		hook,
		telemetry.NewMetrics(registry),
		cfg,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	//nolint:exhaustruct
	return &serviceFixture{
		svc:      svc,
		store:    spy,
		codec:    hook,
		registry: registry,
	}
}

func newRedisFixture(t *testing.T, opts ...fixtureOption) *serviceFixture {
	t.Helper()

	mr := miniredis.RunT(t)

	//nolint:exhaustruct
	store := blob.NewRedisBlobStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")

	fx := newFixture(t, store, opts...)
	fx.mr = mr
	fx.plantOther = func(key domain.BlobKey) {
		_, err := mr.Lpush(string(key), "item")
		require.NoError(t, err)
	}

	return fx
}

func newFileSystemFixture(t *testing.T, opts ...fixtureOption) *serviceFixture {
	t.Helper()

	store, err := blob.NewFileSystemBlobStore(context.Background(),
		blob.FileSystemBlobStoreConfig{Basedir: t.TempDir()})
	require.NoError(t, err)

	fx := newFixture(t, store, opts...)
	fx.plantOther = func(key domain.BlobKey) {
		require.NoError(t, os.MkdirAll(store.GetFilename(key), 0o755))
	}

	return fx
}

type fixtureFactory struct {
	name string
	new  func(t *testing.T, opts ...fixtureOption) *serviceFixture
}

func fixtureFactories() []fixtureFactory {
	return []fixtureFactory{
		{name: "redis", new: newRedisFixture},
		{name: "filesystem", new: newFileSystemFixture},
	}
}

func (fx *serviceFixture) put(t *testing.T, key domain.BlobKey, data []byte) {
	t.Helper()

	require.NoError(t, fx.svc.Store(context.Background(), domain.NewBlob(key, data)))
}

func (fx *serviceFixture) get(t *testing.T, key domain.BlobKey) []byte {
	t.Helper()

	stored, err := fx.svc.Fetch(context.Background(), key)
	require.NoError(t, err)

	return stored.Bytes()
}

func (fx *serviceFixture) exists(t *testing.T, key domain.BlobKey) bool {
	t.Helper()

	_, err := fx.svc.Fetch(context.Background(), key)
	if err == nil {
		return true
	}

	require.ErrorIs(t, err, blob.ErrKeyNotFound)

	return false
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 7), B: 0x40, A: 0xff}) //nolint:gosec
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) image.Point {
	t.Helper()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)

	return image.Pt(cfg.Width, cfg.Height)
}
