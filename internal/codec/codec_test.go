package codec_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-imagekv/internal/domain"

	. "github.com/mkrupp/homecase-imagekv/internal/codec"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 0x80, A: 0xff}) //nolint:gosec
		}
	}

	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))

	return buf.Bytes()
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   string
	}{
		{name: "keeps source format", output: "", want: FormatPNG},
		{name: "jpeg", output: "jpg", want: FormatJPEG},
		{name: "gif", output: "GIF", want: FormatGIF},
		{name: "tiff", output: "tiff", want: FormatTIFF},
		{name: "bmp", output: "bmp", want: FormatBMP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New()
			cfg := DefaultConfig().Clone()
			cfg.OutputFormat = tt.output

			img, err := c.Decode(encodePNG(t, 12, 7), cfg)
			require.NoError(t, err)
			assert.Equal(t, FormatPNG, img.Format())
			assert.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())

			data, err := c.Encode(img, cfg)
			require.NoError(t, err)

			format, err := c.Probe(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, format)

			reread, err := c.Decode(data, DefaultConfig().Clone())
			require.NoError(t, err)
			assert.Equal(t, 12, reread.Bounds().Dx())
			assert.Equal(t, 7, reread.Bounds().Dy())
		})
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	t.Parallel()

	valid := encodePNG(t, 4, 4)

	tests := []struct {
		name      string
		data      []byte
		maxPixels int64
		severity  Severity
		wantErr   error
	}{
		{
			name:     "empty",
			data:     nil,
			severity: SeverityCorruptImage,
		},
		{
			name:     "unknown format",
			data:     []byte("definitely not an image"),
			severity: SeverityMissingDelegate,
			wantErr:  domain.ErrImageTypeNotSupported,
		},
		{
			name:     "truncated png",
			data:     valid[:len(valid)/2],
			severity: SeverityCorruptImage,
		},
		{
			name:      "too large",
			data:      valid,
			maxPixels: 15,
			severity:  SeverityResourceLimit,
			wantErr:   domain.ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig().Clone()
			cfg.MaxPixels = tt.maxPixels

			img, err := New().Decode(tt.data, cfg)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.ErrorIs(t, err, ErrDecode)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			var codecErr *Error
			require.ErrorAs(t, err, &codecErr)
			assert.Equal(t, StageDecode, codecErr.Stage)
			assert.Equal(t, tt.severity, codecErr.Diagnostic.Severity)
			assert.NotEmpty(t, codecErr.Diagnostic.Reason)
		})
	}
}

func TestCodec_Probe(t *testing.T) {
	t.Parallel()

	c := New()

	format, err := c.Probe(encodePNG(t, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, "PNG", format)

	_, err = c.Probe([]byte("garbage"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", ContentType(encodePNG(t, 3, 3)))
	assert.Empty(t, ContentType([]byte("garbage")))

	assert.Equal(t, "image/jpeg", MIMEType("jpg"))
	assert.Equal(t, "image/webp", MIMEType("WEBP"))
	assert.Empty(t, MIMEType("svg"))
}

func TestCodec_EncodeReleased(t *testing.T) {
	t.Parallel()

	img := NewImage(testImage(2, 2), FormatPNG)
	img.Release()

	_, err := New().Encode(img, DefaultConfig().Clone())
	assert.ErrorIs(t, err, ErrEncode)
}

func TestImage_Release(t *testing.T) {
	t.Parallel()

	img := NewImage(testImage(2, 2), FormatPNG)
	assert.False(t, img.Released())

	img.Release()
	img.Release()

	assert.True(t, img.Released())
	assert.Nil(t, img.Pixels())
	assert.Equal(t, image.Rectangle{}, img.Bounds())
	assert.Equal(t, FormatPNG, img.Format())

	var nilImage *Image
	assert.NotPanics(t, nilImage.Release)
	assert.True(t, nilImage.Released())
}

func TestOutputFormatFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		output string
		want   string
	}{
		{source: FormatJPEG, output: "", want: FormatJPEG},
		{source: FormatWEBP, output: "", want: FormatPNG},
		{source: FormatWEBP, output: "jpeg", want: FormatJPEG},
		{source: FormatPNG, output: "tif", want: FormatTIFF},
	}

	for _, tt := range tests {
		cfg := DefaultConfig().Clone()
		cfg.OutputFormat = tt.output

		assert.Equal(t, tt.want, OutputFormatFor(tt.source, cfg), "source %s output %q", tt.source, tt.output)
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	require.NoError(t, base.Validate())

	clone := base.Clone()
	clone.OutputFormat = "JPEG"
	assert.Empty(t, base.OutputFormat)

	invalid := DefaultConfig().Clone()
	invalid.OutputFormat = "WEBP"
	invalid.JPEGQuality = 0
	invalid.Background = "white"
	assert.ErrorIs(t, invalid.Validate(), ErrInvalidConfig)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, invalid.BackgroundColor())
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#ff0000", want: color.NRGBA{R: 0xff, A: 0xff}},
		{in: "#00FF0080", want: color.NRGBA{G: 0xff, A: 0x80}},
		{in: "none", want: color.NRGBA{}},
		{in: "ff0000", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidColor, tt.in)

			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
