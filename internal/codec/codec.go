package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
)

// Stage names the part of a cycle a codec Error originated from.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageTransform Stage = "transform"
	StageEncode    Stage = "encode"
)

var (
	// ErrDecode matches every decode or probe failure.
	ErrDecode = errors.New("decode image")

	// ErrTransform matches every transform failure.
	ErrTransform = errors.New("transform image")

	// ErrEncode matches every encode failure.
	ErrEncode = errors.New("encode image")
)

// Error is a codec failure carrying a client-facing Diagnostic.
type Error struct {
	Stage      Stage
	Diagnostic Diagnostic
	Err        error
}

// NewError creates an Error for stage. err may be nil.
func NewError(stage Stage, severity Severity, reason, description string, err error) *Error {
	return &Error{
		Stage: stage,
		Diagnostic: Diagnostic{
			Severity:    severity,
			Reason:      reason,
			Description: description,
		},
		Err: err,
	}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Stage, e.Diagnostic.Reason, e.Diagnostic.Description)
	if e.Err != nil && e.Err.Error() != e.Diagnostic.Description {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{stageSentinel(e.Stage)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

func stageSentinel(stage Stage) error {
	switch stage {
	case StageDecode:
		return ErrDecode
	case StageTransform:
		return ErrTransform
	default:
		return ErrEncode
	}
}

// Codec converts between encoded blobs and decoded images.
// It holds no per-call state and is safe for concurrent use.
type Codec struct {
	log logging.Logger
}

// New creates a Codec.
func New() *Codec {
	return &Codec{
		log: logging.GetLogger("codec"),
	}
}

// Probe identifies the format of data without decoding the raster.
func (c *Codec) Probe(data []byte) (string, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", decodeError(err)
	}

	return formatFromName(name), nil
}

// Decode reads data into an Image, enforcing cfg.MaxPixels.
func (c *Codec) Decode(data []byte, cfg *Config) (img *Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = NewError(StageDecode, SeverityCorruptImage, "corrupt image", fmt.Sprint(r), nil)
		}
	}()

	if len(data) == 0 {
		return nil, NewError(StageDecode, SeverityCorruptImage, "empty blob", "no image data", nil)
	}

	header, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	if header.Width <= 0 || header.Height <= 0 {
		return nil, NewError(StageDecode, SeverityCorruptImage, "invalid image dimensions",
			fmt.Sprintf("%dx%d", header.Width, header.Height), nil)
	}

	if cfg.MaxPixels > 0 && int64(header.Width)*int64(header.Height) > cfg.MaxPixels {
		return nil, NewError(StageDecode, SeverityResourceLimit, "image dimensions exceed limit",
			fmt.Sprintf("%dx%d", header.Width, header.Height), domain.ErrImageTooLarge)
	}

	pixels, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	c.log.Debug("image decoded",
		"format", formatFromName(name),
		"width", header.Width,
		"height", header.Height,
	)

	return NewImage(pixels, formatFromName(name)), nil
}

// Encode writes img in the format chosen by OutputFormatFor.
func (c *Codec) Encode(img *Image, cfg *Config) ([]byte, error) {
	if img.Released() {
		return nil, NewError(StageEncode, SeverityImage, "unable to encode image", "image released", nil)
	}

	format := OutputFormatFor(img.Format(), cfg)

	encoder, err := getEncoderByFormat(format)
	if err != nil {
		return nil, NewError(StageEncode, SeverityMissingDelegate, "no encode delegate for this image format",
			format, err)
	}

	var buf bytes.Buffer
	if err := encoder(&buf, img.Pixels(), cfg); err != nil {
		return nil, NewError(StageEncode, SeverityCoder, "unable to encode image", err.Error(), err)
	}

	c.log.Debug("image encoded", "format", format, "size", buf.Len())

	return buf.Bytes(), nil
}

// OutputFormatFor decides the encoded format for an image read from source.
func OutputFormatFor(source string, cfg *Config) string {
	if cfg.OutputFormat != "" {
		return NormalizeFormat(cfg.OutputFormat)
	}

	if CanEncode(source) {
		return NormalizeFormat(source)
	}

	return NormalizeFormat(cfg.DefaultFormat)
}

func decodeError(err error) *Error {
	if errors.Is(err, image.ErrFormat) {
		return NewError(StageDecode, SeverityMissingDelegate, "no decode delegate for this image format",
			err.Error(), fmt.Errorf("%w: %w", domain.ErrImageTypeNotSupported, err))
	}

	return NewError(StageDecode, SeverityCorruptImage, "corrupt image", err.Error(), err)
}
