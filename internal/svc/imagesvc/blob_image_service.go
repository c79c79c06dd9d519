package imagesvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
	context_ "github.com/mkrupp/homecase-imagekv/internal/infra/context"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	"github.com/mkrupp/homecase-imagekv/internal/infra/telemetry"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
	"github.com/mkrupp/homecase-imagekv/internal/repo/journal"
)

// BlobImageService implements ImageService on top of a blob store.
// Mutating commands run through a TransformContext; TYPE only probes the stored bytes.
type BlobImageService struct {
	store   blob.Store
	journal journal.Repository
	codec   ImageCodec
	metrics *telemetry.Metrics
	slots   chan struct{}
	cfg     ImageConfig
	log     logging.Logger
}

var _ ImageService = (*BlobImageService)(nil)

// NewBlobImageService creates a new BlobImageService with the given configuration.
// It requires:
// - A store factory for the keyed blob store
// - A journal factory for recording executed commands
// - The codec used to decode and encode images
// metrics may be nil. Returns an error if the configuration is invalid or a factory fails.
func NewBlobImageService(
	ctx context.Context,
	storeFactory blob.StoreFactory,
	journalFactory journal.RepositoryFactory,
	imageCodec ImageCodec,
	metrics *telemetry.Metrics,
	cfg ImageConfig,
) (*BlobImageService, error) {
	if err := cfg.Codec.Validate(); err != nil {
		return nil, fmt.Errorf("codec config: %w", err)
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	store, err := storeFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}

	journalRepo, err := journalFactory()
	if err != nil {
		_ = store.Close()

		return nil, fmt.Errorf("new journal: %w", err)
	}

	return &BlobImageService{
		store:   store,
		journal: journalRepo,
		codec:   imageCodec,
		metrics: metrics,
		slots:   make(chan struct{}, cfg.MaxConcurrent),
		cfg:     cfg,
		log:     logging.GetLogger("svc.imagesvc.blob_image_service"),
	}, nil
}

// Execute implements ImageService.Execute.
func (imageSvc *BlobImageService) Execute(ctx context.Context, args []string) domain.Reply {
	cmd, err := ParseCommand(args)
	if err != nil {
		reply := commandErrorReply(args, err)

		name := "unknown"
		if cmd.Name != "" {
			name = cmd.Name
		}

		imageSvc.metrics.ObserveCommand(name, reply.Outcome(), 0)
		imageSvc.log.DebugContext(ctx, "command rejected", "args", args, "error", err)

		if cmd.Key != "" {
			imageSvc.record(ctx, cmd, reply, 0)
		}

		return reply
	}

	return imageSvc.Run(ctx, cmd)
}

// Run implements ImageService.Run.
func (imageSvc *BlobImageService) Run(ctx context.Context, cmd Command) (reply domain.Reply) {
	ctx = context_.WithCommand(ctx, cmd.Name)

	var (
		start = time.Now()
		err   error
		log   = imageSvc.log.With(logging.Group("command", "name", cmd.Name, "key", cmd.Key, "args", cmd.Args))
	)

	defer func() {
		elapsed := time.Since(start)

		imageSvc.metrics.ObserveCommand(cmd.Name, reply.Outcome(), elapsed)
		imageSvc.record(ctx, cmd, reply, elapsed)

		if err != nil {
			log.ErrorContext(ctx, "command failed", "error", err, "reply", reply.Text)
		} else {
			log.DebugContext(ctx, "command executed", "reply", reply.Text, "elapsed", elapsed)
		}
	}()

	release, err := imageSvc.acquireSlot(ctx)
	if err != nil {
		return domain.ErrorReply(domain.CodeServiceShutdown, domain.MsgShuttingDown)
	}
	defer release()

	if !cmd.Mutating() {
		reply, err = imageSvc.probeType(ctx, cmd.Key)

		return reply
	}

	reply, err = imageSvc.transform(ctx, cmd)

	return reply
}

func (imageSvc *BlobImageService) transform(ctx context.Context, cmd Command) (domain.Reply, error) {
	tctx := NewTransformContext(imageSvc.store, imageSvc.codec, imageSvc.cfg.Codec, imageSvc.metrics)
	defer tctx.Release() //nolint:errcheck

	if tctx.Acquire(ctx, cmd.Key) && tctx.Apply(cmd.Op) {
		tctx.Commit(ctx)
	}

	return tctx.Reply(), tctx.Err()
}

// probeType identifies the format of the value under key without decoding it.
// Unlike the mutating commands a missing key is an error.
func (imageSvc *BlobImageService) probeType(ctx context.Context, key domain.BlobKey) (domain.Reply, error) {
	handle, err := imageSvc.store.Open(ctx, key, blob.ModeRead)
	if err != nil {
		return domain.ErrorReply(domain.CodeStoreAccess, domain.MsgStoreUnavailable), fmt.Errorf("open: %w", err)
	}
	defer handle.Close()

	keyType, err := handle.Type(ctx)
	if err != nil {
		return domain.ErrorReply(domain.CodeStoreAccess, domain.MsgStoreUnavailable), fmt.Errorf("type: %w", err)
	}

	switch keyType {
	case blob.KeyTypeEmpty:
		return domain.ErrorReply(domain.CodeEmptyKey, domain.MsgEmptyKey), nil
	case blob.KeyTypeOther:
		return domain.ErrorReply(domain.CodeStoreType, domain.MsgWrongType), blob.ErrWrongType
	case blob.KeyTypeString:
	}

	data, err := handle.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrKeyNotFound):
			return domain.ErrorReply(domain.CodeEmptyKey, domain.MsgEmptyKey), nil
		case errors.Is(err, blob.ErrWrongType):
			return domain.ErrorReply(domain.CodeStoreType, domain.MsgWrongType), err
		default:
			return domain.ErrorReply(domain.CodeStoreAccess, domain.MsgStoreUnavailable), fmt.Errorf("read: %w", err)
		}
	}

	imageSvc.metrics.ObserveBlob("in", len(data))

	format, err := imageSvc.codec.Probe(data)
	if err != nil {
		var diag codec.Channel

		text := codec.DefaultErrorText(domain.MsgUnknownFormat)
		if diag.CaptureError(err) {
			text = diag.Drain()
		}

		return domain.ErrorReply(domain.CodeCodecDecode, text), fmt.Errorf("probe: %w", err)
	}

	return domain.SimpleReply(format), nil
}

func (imageSvc *BlobImageService) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case imageSvc.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire slot: %w", ctx.Err())
	}

	done := imageSvc.metrics.TrackInflight()

	return func() {
		done()
		<-imageSvc.slots
	}, nil
}

func (imageSvc *BlobImageService) record(ctx context.Context, cmd Command, reply domain.Reply, elapsed time.Duration) {
	traceID, _ := context_.TraceIDFromContext(ctx)

	//nolint:exhaustruct
	entry := &domain.JournalEntry{
		TraceID:  traceID,
		Key:      cmd.Key,
		Command:  cmd.Name,
		Args:     cmd.Args,
		Outcome:  reply.Outcome(),
		Reply:    reply.Text,
		Duration: elapsed.Microseconds(),
	}

	if err := imageSvc.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		imageSvc.log.WarnContext(ctx, "journal record failed", "error", err)
	}
}

// Store implements ImageService.Store.
func (imageSvc *BlobImageService) Store(ctx context.Context, upload *domain.Blob) (err error) {
	log := imageSvc.log.With(logging.Group("blob", "key", upload.Key, "size", upload.Size()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored")
		}
	}()

	if err := upload.Validate(imageSvc.MaxSize()); err != nil {
		return err //nolint:wrapcheck
	}

	if err := imageSvc.store.Put(ctx, upload); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	imageSvc.metrics.ObserveBlob("out", int(upload.Size()))

	return nil
}

// Fetch implements ImageService.Fetch.
func (imageSvc *BlobImageService) Fetch(ctx context.Context, key domain.BlobKey) (*domain.Blob, error) {
	stored, err := imageSvc.store.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	imageSvc.metrics.ObserveBlob("in", int(stored.Size()))

	return stored, nil
}

// Delete implements ImageService.Delete.
func (imageSvc *BlobImageService) Delete(ctx context.Context, key domain.BlobKey) (err error) {
	defer func() {
		log := imageSvc.log.With(logging.Group("blob", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	if key == "" {
		return domain.ErrNoKey
	}

	if err := imageSvc.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// Journal implements ImageService.Journal.
func (imageSvc *BlobImageService) Journal(
	ctx context.Context,
	key domain.BlobKey,
	limit int,
) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = imageSvc.cfg.JournalLimit
	}

	entries, err := imageSvc.journal.ListByKey(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}

	return entries, nil
}

// MaxSize implements ImageService.MaxSize.
func (imageSvc *BlobImageService) MaxSize() int64 {
	return imageSvc.cfg.MaxSize
}

// Close implements ImageService.Close.
func (imageSvc *BlobImageService) Close() error {
	return errors.Join(imageSvc.journal.Close(), imageSvc.store.Close())
}
