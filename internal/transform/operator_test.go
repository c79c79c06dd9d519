package transform_test

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"

	. "github.com/mkrupp/homecase-imagekv/internal/transform"
)

//nolint:gochecknoglobals
var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}

	return img
}

// marked returns a 3x2 image with distinct colours in three corners.
func marked() *image.RGBA {
	img := filled(3, 2, black)
	img.SetRGBA(0, 0, red)
	img.SetRGBA(2, 0, green)
	img.SetRGBA(0, 1, blue)

	return img
}

func apply(t *testing.T, op Operator, src image.Image) (*image.RGBA, error) {
	t.Helper()

	out, err := op.Apply(codec.NewImage(src, codec.FormatPNG), codec.DefaultConfig().Clone())
	if err != nil {
		return nil, err
	}

	assert.Equal(t, codec.FormatPNG, out.Format())

	rgba, ok := out.Pixels().(*image.RGBA)
	require.True(t, ok)

	return rgba, nil
}

func TestOperator_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		op      Operator
		wantErr error
	}{
		{name: "rotate", op: Rotate(45)},
		{name: "rotate inf passes", op: Rotate(math.Inf(1))},
		{name: "swirl", op: Swirl(-30)},
		{name: "blur zero sigma passes", op: Blur(0, 0)},
		{name: "thumbnail", op: Thumbnail(10, 20)},
		{name: "thumbnail zero width", op: Thumbnail(0, 20), wantErr: ErrInvalidParams},
		{name: "thumbnail negative height", op: Thumbnail(10, -1), wantErr: ErrInvalidParams},
		{name: "unknown", op: Operator{Kind: "SHEAR"}, wantErr: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.op.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOperator_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ROTATE 90", Rotate(90).String())
	assert.Equal(t, "BLUR 0 1.5", Blur(0, 1.5).String())
	assert.Equal(t, "THUMBNAIL 64 32", Thumbnail(64, 32).String())
	assert.Equal(t, []string{"-inf"}, Swirl(math.Inf(-1)).Args())
	assert.Equal(t, "image codec error", KindSwirl.DefaultMessage())
}

func TestOperator_ApplyReleased(t *testing.T) {
	t.Parallel()

	img := codec.NewImage(filled(2, 2, red), codec.FormatPNG)
	img.Release()

	_, err := Rotate(90).Apply(img, codec.DefaultConfig().Clone())
	assert.ErrorIs(t, err, codec.ErrTransform)
}

func TestOperator_ApplyLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	src := marked()
	img := codec.NewImage(src, codec.FormatJPEG)

	out, err := Rotate(90).Apply(img, codec.DefaultConfig().Clone())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, red, src.RGBAAt(0, 0))
	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Bounds())
	assert.Equal(t, codec.FormatJPEG, out.Format())
}

func TestRotate_QuarterTurns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		degrees float64
		size    image.Point
		// where the red, green and blue corners of the source end up
		red, green, blue image.Point
	}{
		{degrees: 0, size: image.Pt(3, 2), red: image.Pt(0, 0), green: image.Pt(2, 0), blue: image.Pt(0, 1)},
		{degrees: 90, size: image.Pt(2, 3), red: image.Pt(1, 0), green: image.Pt(1, 2), blue: image.Pt(0, 0)},
		{degrees: 180, size: image.Pt(3, 2), red: image.Pt(2, 1), green: image.Pt(0, 1), blue: image.Pt(2, 0)},
		{degrees: 270, size: image.Pt(2, 3), red: image.Pt(0, 2), green: image.Pt(0, 0), blue: image.Pt(1, 2)},
		{degrees: -90, size: image.Pt(2, 3), red: image.Pt(0, 2), green: image.Pt(0, 0), blue: image.Pt(1, 2)},
		{degrees: 450, size: image.Pt(2, 3), red: image.Pt(1, 0), green: image.Pt(1, 2), blue: image.Pt(0, 0)},
	}

	for _, tt := range tests {
		out, err := apply(t, Rotate(tt.degrees), marked())
		require.NoError(t, err)

		assert.Equal(t, tt.size, out.Bounds().Size(), "degrees %v", tt.degrees)
		assert.Equal(t, red, out.RGBAAt(tt.red.X, tt.red.Y), "red at %v degrees", tt.degrees)
		assert.Equal(t, green, out.RGBAAt(tt.green.X, tt.green.Y), "green at %v degrees", tt.degrees)
		assert.Equal(t, blue, out.RGBAAt(tt.blue.X, tt.blue.Y), "blue at %v degrees", tt.degrees)
	}
}

func TestRotate_Arbitrary(t *testing.T) {
	t.Parallel()

	out, err := apply(t, Rotate(45), filled(10, 10, red))
	require.NoError(t, err)

	assert.Equal(t, image.Pt(15, 15), out.Bounds().Size())
	assert.Equal(t, white, out.RGBAAt(0, 0), "uncovered corner takes the background")
	assert.Equal(t, red, out.RGBAAt(7, 7))

	_, err = apply(t, Rotate(math.Inf(1)), filled(2, 2, red))
	assert.ErrorIs(t, err, codec.ErrTransform)
}

func TestRotate_ResultLimit(t *testing.T) {
	t.Parallel()

	cfg := codec.DefaultConfig().Clone()
	cfg.MaxPixels = 100

	_, err := Rotate(30).Apply(codec.NewImage(filled(10, 10, red), codec.FormatPNG), cfg)
	assert.ErrorIs(t, err, codec.ErrTransform)
}

func TestSwirl(t *testing.T) {
	t.Parallel()

	src := filled(10, 10, black)
	for x := range 10 {
		src.SetRGBA(x, 5, white)
	}

	still, err := apply(t, Swirl(0), src)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, still.Pix)

	twisted, err := apply(t, Swirl(180), src)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), twisted.Bounds())
	assert.NotEqual(t, src.Pix, twisted.Pix)
	assert.Equal(t, black, twisted.RGBAAt(0, 0), "corners lie outside the radius")
	assert.Equal(t, black, twisted.RGBAAt(9, 9), "corners lie outside the radius")

	_, err = apply(t, Swirl(math.NaN()), src)
	assert.ErrorIs(t, err, codec.ErrTransform)
}

func TestBlur(t *testing.T) {
	t.Parallel()

	uniform, err := apply(t, Blur(0, 2), filled(8, 8, green))
	require.NoError(t, err)
	assert.Equal(t, filled(8, 8, green).Pix, uniform.Pix)

	dot := filled(9, 9, black)
	dot.SetRGBA(4, 4, white)

	spread, err := apply(t, Blur(2, 1), dot)
	require.NoError(t, err)
	assert.Less(t, spread.RGBAAt(4, 4).R, uint8(0xff))
	assert.Greater(t, spread.RGBAAt(5, 4).R, uint8(0))
	assert.Greater(t, spread.RGBAAt(4, 5).R, uint8(0))
	assert.Equal(t, uint8(0), spread.RGBAAt(0, 0).R, "outside the kernel radius")
}

func TestBlur_InvalidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		radius, sigma float64
	}{
		{name: "zero sigma", radius: 1, sigma: 0},
		{name: "negative sigma", radius: 1, sigma: -1},
		{name: "infinite sigma", radius: 1, sigma: math.Inf(1)},
		{name: "negative radius", radius: -1, sigma: 1},
		{name: "infinite radius", radius: math.Inf(1), sigma: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := apply(t, Blur(tt.radius, tt.sigma), filled(4, 4, red))
			require.ErrorIs(t, err, codec.ErrTransform)

			var codecErr *codec.Error
			require.ErrorAs(t, err, &codecErr)
			assert.Equal(t, codec.SeverityOption, codecErr.Diagnostic.Severity)
		})
	}
}

func TestThumbnail(t *testing.T) {
	t.Parallel()

	for _, interpolator := range []string{"nearestneighbor", "catmullrom", "bilinear", "ApproxBiLinear"} {
		cfg := codec.DefaultConfig().Clone()
		cfg.Interpolator = interpolator

		out, err := Thumbnail(7, 9).Apply(codec.NewImage(filled(40, 20, blue), codec.FormatGIF), cfg)
		require.NoError(t, err, interpolator)

		assert.Equal(t, image.Pt(7, 9), out.Bounds().Size(), interpolator)
		assert.Equal(t, codec.FormatGIF, out.Format())
	}
}

func TestThumbnail_Errors(t *testing.T) {
	t.Parallel()

	src := codec.NewImage(filled(4, 4, blue), codec.FormatPNG)

	cfg := codec.DefaultConfig().Clone()
	cfg.Interpolator = "lanczos"

	_, err := Thumbnail(2, 2).Apply(src, cfg)
	assert.ErrorIs(t, err, ErrUnknownInterpolator)
	assert.ErrorIs(t, err, codec.ErrTransform)

	cfg = codec.DefaultConfig().Clone()
	cfg.MaxPixels = 1000

	_, err = Thumbnail(100, 100).Apply(src, cfg)
	assert.ErrorIs(t, err, codec.ErrTransform)

	_, err = Thumbnail(0, 100).Apply(src, codec.DefaultConfig().Clone())
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestThumbnail_HugeDimensions(t *testing.T) {
	t.Parallel()

	src := codec.NewImage(filled(4, 3, blue), codec.FormatPNG)

	unlimited := codec.DefaultConfig().Clone()
	unlimited.MaxPixels = 0

	limited := codec.DefaultConfig().Clone()
	limited.MaxPixels = 1000

	tests := []struct {
		name          string
		width, height int
		cfg           *codec.Config
	}{
		{name: "product wraps to zero", width: 1 << 32, height: 1 << 32, cfg: limited},
		{name: "product wraps without limit", width: 1 << 32, height: 1 << 32, cfg: unlimited},
		{name: "buffer length overflows", width: math.MaxInt / 2, height: 3, cfg: unlimited},
		{name: "max int width", width: math.MaxInt, height: 1, cfg: unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := Thumbnail(tt.width, tt.height).Apply(src, tt.cfg)
			assert.Nil(t, out)
			require.ErrorIs(t, err, codec.ErrTransform)
			assert.ErrorIs(t, err, domain.ErrImageTooLarge)
		})
	}
}
