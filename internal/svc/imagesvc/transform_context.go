package imagesvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	"github.com/mkrupp/homecase-imagekv/internal/infra/telemetry"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
	"github.com/mkrupp/homecase-imagekv/internal/transform"
)

// ErrInvalidState is returned when a TransformContext step runs out of order.
var ErrInvalidState = errors.New("invalid transform context state")

// ImageCodec converts between stored bytes and decoded images.
type ImageCodec interface {
	Decode(data []byte, cfg *codec.Config) (*codec.Image, error)
	Probe(data []byte) (string, error)
	Encode(img *codec.Image, cfg *codec.Config) ([]byte, error)
}

var _ ImageCodec = (*codec.Codec)(nil)

type contextState int

const (
	stateStart contextState = iota
	stateAcquired
	stateTransformed
	stateCommitted
	stateReleased
)

func (s contextState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateAcquired:
		return "acquired"
	case stateTransformed:
		return "transformed"
	case stateCommitted:
		return "committed"
	default:
		return "released"
	}
}

// TransformContext carries one mutating command from reading the key to writing it back.
// Each step reports whether the pipeline should go on; once a step returns false the
// reply is final. Release must be called on every path and may be called more than once.
type TransformContext struct {
	store   blob.Store
	codec   ImageCodec
	cfg     *codec.Config
	metrics *telemetry.Metrics
	log     logging.Logger

	diag     codec.Channel
	handle   blob.Handle
	original *codec.Image
	result   *codec.Image

	state contextState
	reply *domain.Reply
	err   error
}

// NewTransformContext creates a context using its own clone of cfg.
func NewTransformContext(
	store blob.Store,
	imageCodec ImageCodec,
	cfg codec.Config,
	metrics *telemetry.Metrics,
) *TransformContext {
	//nolint:exhaustruct
	return &TransformContext{
		store:   store,
		codec:   imageCodec,
		cfg:     cfg.Clone(),
		metrics: metrics,
		log:     logging.GetLogger("svc.imagesvc.transform_context"),
		state:   stateStart,
	}
}

// Acquire opens key for writing and decodes its value.
// A missing key is a successful no-op: the reply is OK and Acquire returns false.
//
//nolint:cyclop
func (tc *TransformContext) Acquire(ctx context.Context, key domain.BlobKey) bool {
	if tc.state != stateStart {
		return tc.fail(domain.CodeInternal, domain.MsgInternal,
			fmt.Errorf("%w: acquire in state %s", ErrInvalidState, tc.state))
	}

	tc.log = tc.log.With(logging.Group("blob", "key", key))

	handle, err := tc.store.Open(ctx, key, blob.ModeReadWrite)
	if err != nil {
		return tc.fail(domain.CodeStoreAccess, domain.MsgStoreUnavailable, fmt.Errorf("open: %w", err))
	}

	tc.handle = handle

	keyType, err := handle.Type(ctx)
	if err != nil {
		return tc.fail(domain.CodeStoreAccess, domain.MsgStoreUnavailable, fmt.Errorf("type: %w", err))
	}

	switch keyType {
	case blob.KeyTypeEmpty:
		return tc.finish(domain.OKReply())
	case blob.KeyTypeOther:
		return tc.fail(domain.CodeStoreType, domain.MsgWrongType, blob.ErrWrongType)
	case blob.KeyTypeString:
	}

	data, err := handle.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrKeyNotFound):
			return tc.finish(domain.OKReply())
		case errors.Is(err, blob.ErrWrongType):
			return tc.fail(domain.CodeStoreType, domain.MsgWrongType, err)
		default:
			return tc.fail(domain.CodeStoreAccess, domain.MsgStoreUnavailable, fmt.Errorf("read: %w", err))
		}
	}

	tc.metrics.ObserveBlob("in", len(data))

	img, err := tc.codec.Decode(data, tc.cfg)
	if err != nil {
		return tc.failCodec(domain.CodeCodecDecode, codec.DefaultErrorText(domain.MsgBadInputImage),
			fmt.Errorf("decode: %w", err))
	}

	tc.original = img
	tc.state = stateAcquired

	return true
}

// Apply runs op on the original image and keeps the outcome as the result.
func (tc *TransformContext) Apply(op transform.Operator) bool {
	if tc.state != stateAcquired {
		return tc.fail(domain.CodeInternal, domain.MsgInternal,
			fmt.Errorf("%w: apply in state %s", ErrInvalidState, tc.state))
	}

	result, err := op.Apply(tc.original, tc.cfg)
	if err != nil {
		return tc.failCodec(domain.CodeCodecTransform, op.Kind.DefaultMessage(),
			fmt.Errorf("apply %s: %w", op.Kind, err))
	}

	tc.result = result
	tc.state = stateTransformed

	return true
}

// Commit encodes the result and replaces the stored value with it.
func (tc *TransformContext) Commit(ctx context.Context) bool {
	if tc.state != stateTransformed {
		return tc.fail(domain.CodeInternal, domain.MsgInternal,
			fmt.Errorf("%w: commit in state %s", ErrInvalidState, tc.state))
	}

	data, err := tc.codec.Encode(tc.result, tc.cfg)
	if err != nil {
		return tc.failCodec(domain.CodeCodecEncode, codec.DefaultErrorText(""), fmt.Errorf("encode: %w", err))
	}

	if err := tc.handle.TruncateAndWrite(ctx, data); err != nil {
		if errors.Is(err, blob.ErrWrongType) {
			return tc.fail(domain.CodeStoreType, domain.MsgWrongType, err)
		}

		return tc.fail(domain.CodeStoreAccess, domain.MsgResizeFailed, fmt.Errorf("write: %w", err))
	}

	tc.metrics.ObserveBlob("out", len(data))
	tc.state = stateCommitted

	return tc.finish(domain.OKReply())
}

// Release closes the store handle and drops both images.
func (tc *TransformContext) Release() error {
	if tc.state == stateReleased {
		return nil
	}

	var errs []error

	if tc.handle != nil {
		if err := tc.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close handle: %w", err))
		}

		tc.handle = nil
	}

	tc.original.Release()
	tc.original = nil
	tc.result.Release()
	tc.result = nil
	tc.diag.Clear()
	tc.cfg = nil
	tc.state = stateReleased

	if err := errors.Join(errs...); err != nil {
		tc.log.Error("transform context release failed", "error", err)

		return err
	}

	return nil
}

// Reply returns the final reply, or an internal error reply if no step has finished the context.
func (tc *TransformContext) Reply() domain.Reply {
	if tc.reply == nil {
		return domain.ErrorReply(domain.CodeInternal, domain.MsgInternal)
	}

	return *tc.reply
}

// Err returns the error behind an error reply, if any.
func (tc *TransformContext) Err() error {
	return tc.err
}

// Released reports whether Release has run.
func (tc *TransformContext) Released() bool {
	return tc.state == stateReleased
}

// finish records reply unless one was already recorded. Always returns false.
func (tc *TransformContext) finish(reply domain.Reply) bool {
	if tc.reply == nil {
		tc.reply = &reply
	}

	return false
}

func (tc *TransformContext) fail(code domain.ErrorCode, text string, err error) bool {
	if tc.err == nil {
		tc.err = err
	}

	return tc.finish(domain.ErrorReply(code, text))
}

// failCodec replies with the codec's diagnostic if it left one, else with fallback.
func (tc *TransformContext) failCodec(code domain.ErrorCode, fallback string, err error) bool {
	tc.diag.Clear()

	text := fallback
	if tc.diag.CaptureError(err) {
		text = tc.diag.Drain()
	}

	return tc.fail(code, text, err)
}
