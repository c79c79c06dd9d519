// Package transform implements the pixel operators applied by mutating commands.
package transform

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
)

// DefaultMessage is the reply used when an operator fails without a diagnostic.
const DefaultMessage = codec.ErrorPrefix

var (
	// ErrInvalidParams is returned by Operator.Validate.
	ErrInvalidParams = errors.New("invalid transform parameters")

	// ErrUnknownKind is returned for an operator kind that has no implementation.
	ErrUnknownKind = errors.New("unknown transform kind")
)

// Kind identifies an operator.
type Kind string

const (
	KindRotate    Kind = "ROTATE"
	KindSwirl     Kind = "SWIRL"
	KindBlur      Kind = "BLUR"
	KindThumbnail Kind = "THUMBNAIL"
)

// DefaultMessage returns the fallback reply text for a failure of k.
// Every operator shares the same text.
func (k Kind) DefaultMessage() string {
	return DefaultMessage
}

// Params carries the arguments of every operator kind; each kind reads only its own fields.
type Params struct {
	// Degrees is used by ROTATE and SWIRL
	Degrees float64
	// Radius and Sigma are used by BLUR
	Radius float64
	Sigma  float64
	// Width and Height are used by THUMBNAIL
	Width  int
	Height int
}

// Operator is one transform with its arguments.
type Operator struct {
	Kind   Kind
	Params Params
}

// Rotate returns a clockwise rotation by degrees.
func Rotate(degrees float64) Operator {
	//nolint:exhaustruct
	return Operator{Kind: KindRotate, Params: Params{Degrees: degrees}}
}

// Swirl returns a swirl around the image centre by degrees.
func Swirl(degrees float64) Operator {
	//nolint:exhaustruct
	return Operator{Kind: KindSwirl, Params: Params{Degrees: degrees}}
}

// Blur returns a Gaussian blur. A radius of zero derives the kernel size from sigma.
func Blur(radius, sigma float64) Operator {
	//nolint:exhaustruct
	return Operator{Kind: KindBlur, Params: Params{Radius: radius, Sigma: sigma}}
}

// Thumbnail returns a scale to exactly width x height.
func Thumbnail(width, height int) Operator {
	//nolint:exhaustruct
	return Operator{Kind: KindThumbnail, Params: Params{Width: width, Height: height}}
}

// Args renders the operator's parameters the way they are passed on the command line.
func (op Operator) Args() []string {
	switch op.Kind {
	case KindRotate, KindSwirl:
		return []string{formatFloat(op.Params.Degrees)}
	case KindBlur:
		return []string{formatFloat(op.Params.Radius), formatFloat(op.Params.Sigma)}
	case KindThumbnail:
		return []string{strconv.Itoa(op.Params.Width), strconv.Itoa(op.Params.Height)}
	default:
		return nil
	}
}

func (op Operator) String() string {
	s := string(op.Kind)
	for _, arg := range op.Args() {
		s += " " + arg
	}

	return s
}

// Validate checks the parameters that are rejected before any store access.
// Values the operators themselves refuse, such as a non-positive blur sigma, pass.
func (op Operator) Validate() error {
	switch op.Kind {
	case KindRotate, KindSwirl, KindBlur:
		return nil
	case KindThumbnail:
		if op.Params.Width <= 0 || op.Params.Height <= 0 {
			return fmt.Errorf("%w: thumbnail size %dx%d", ErrInvalidParams, op.Params.Width, op.Params.Height)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
}

// Apply runs the operator on img and returns a new image in the same format.
// img is left untouched.
func (op Operator) Apply(img *codec.Image, cfg *codec.Config) (_ *codec.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = codec.NewError(codec.StageTransform, codec.SeverityResourceLimit,
				"transform failed", fmt.Sprintf("%s: %v", op.Kind, r), nil)
		}
	}()

	if img.Released() {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityImage,
			"no image to transform", string(op.Kind), nil)
	}

	if err := op.Validate(); err != nil {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"invalid transform parameters", op.String(), err)
	}

	var (
		src = img.Pixels()
		dst *image.RGBA
	)

	switch op.Kind {
	case KindRotate:
		dst, err = rotate(src, op.Params.Degrees, cfg)
	case KindSwirl:
		dst, err = swirl(src, op.Params.Degrees)
	case KindBlur:
		dst, err = blur(src, op.Params.Radius, op.Params.Sigma)
	case KindThumbnail:
		dst, err = thumbnail(src, op.Params.Width, op.Params.Height, cfg)
	}

	if err != nil {
		return nil, err
	}

	return codec.NewImage(dst, img.Format()), nil
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	} else if math.IsInf(f, -1) {
		return "-inf"
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}
