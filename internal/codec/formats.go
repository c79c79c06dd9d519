package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// Registers the WEBP decoder with the image package. There is no encoder.
	_ "golang.org/x/image/webp"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

// Format identifiers as reported by Probe.
const (
	FormatJPEG = "JPEG"
	FormatPNG  = "PNG"
	FormatGIF  = "GIF"
	FormatTIFF = "TIFF"
	FormatBMP  = "BMP"
	FormatWEBP = "WEBP"
)

type encodeFunc func(w io.Writer, img image.Image, cfg *Config) error

//nolint:gochecknoglobals
var (
	// formatNames maps the names the image package registers decoders under to format identifiers.
	formatNames = map[string]string{
		"jpeg": FormatJPEG,
		"png":  FormatPNG,
		"gif":  FormatGIF,
		"tiff": FormatTIFF,
		"bmp":  FormatBMP,
		"webp": FormatWEBP,
	}

	formatMIMETypes = map[string]string{
		FormatJPEG: "image/jpeg",
		FormatPNG:  "image/png",
		FormatGIF:  "image/gif",
		FormatTIFF: "image/tiff",
		FormatBMP:  "image/bmp",
		FormatWEBP: "image/webp",
	}

	imageEncoders = map[string]encodeFunc{
		FormatJPEG: func(w io.Writer, img image.Image, cfg *Config) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: cfg.JPEGQuality})
		},
		FormatPNG: func(w io.Writer, img image.Image, _ *Config) error {
			return png.Encode(w, img)
		},
		FormatGIF: func(w io.Writer, img image.Image, _ *Config) error {
			return gif.Encode(w, img, nil)
		},
		FormatTIFF: func(w io.Writer, img image.Image, _ *Config) error {
			//nolint:exhaustruct
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		},
		FormatBMP: func(w io.Writer, img image.Image, _ *Config) error {
			return bmp.Encode(w, img)
		},
	}
)

// formatFromName converts a decoder registration name into a format identifier.
func formatFromName(name string) string {
	if format, ok := formatNames[name]; ok {
		return format
	}

	return strings.ToUpper(name)
}

// NormalizeFormat canonicalises a user supplied format name, accepting common aliases.
func NormalizeFormat(name string) string {
	format := strings.ToUpper(strings.TrimSpace(name))

	switch format {
	case "JPG":
		return FormatJPEG
	case "TIF":
		return FormatTIFF
	default:
		return format
	}
}

// CanEncode reports whether images can be written in format.
func CanEncode(format string) bool {
	_, ok := imageEncoders[NormalizeFormat(format)]

	return ok
}

// MIMEType returns the media type of a format identifier, or the empty string if unknown.
func MIMEType(format string) string {
	return formatMIMETypes[NormalizeFormat(format)]
}

// ContentType returns the media type of encoded image data, or the empty string
// if no registered decoder recognises it.
func ContentType(data []byte) string {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	return MIMEType(formatFromName(name))
}

func getEncoderByFormat(format string) (encodeFunc, error) {
	encoder, ok := imageEncoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, format)
	}

	return encoder, nil
}
