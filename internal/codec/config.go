package codec

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid codec config")

	// ErrInvalidColor is returned when a background colour cannot be parsed.
	ErrInvalidColor = errors.New("invalid color")
)

// Config holds the settings applied to a single decode/transform/encode cycle.
// Callers hold a process-wide template and Clone it for each invocation.
type Config struct {
	// OutputFormat forces the encoded format. Empty keeps the source format when it is writable.
	OutputFormat string `env:"OUTPUT_FORMAT" default:""`
	// DefaultFormat is used when the source format has no encoder
	DefaultFormat string `env:"DEFAULT_FORMAT" default:"PNG"`
	// JPEGQuality is the quality used when encoding JPEG, 1 to 100
	JPEGQuality int `env:"JPEG_QUALITY" default:"75"`
	// Interpolator specifies the scaling algorithm used by thumbnails.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`
	// MaxPixels rejects images whose width*height exceeds it. Zero disables the limit.
	MaxPixels int64 `env:"MAX_PIXELS" default:"100000000"`
	// Background fills areas uncovered by a rotation, as #rrggbb or #rrggbbaa
	Background string `env:"BACKGROUND" default:"#ffffff"`
}

// DefaultConfig returns the configuration used when none is loaded from the environment.
func DefaultConfig() Config {
	return Config{
		OutputFormat:  "",
		DefaultFormat: FormatPNG,
		JPEGQuality:   75, //nolint:mnd
		Interpolator:  "catmullrom",
		MaxPixels:     100_000_000, //nolint:mnd
		Background:    "#ffffff",
	}
}

// Clone returns an independent copy of cfg.
func (cfg Config) Clone() *Config {
	return &cfg
}

// Validate checks that every setting is usable.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.OutputFormat != "" && !CanEncode(cfg.OutputFormat) {
		errs = append(errs, fmt.Errorf("output format %q not writable", cfg.OutputFormat))
	}

	if !CanEncode(cfg.DefaultFormat) {
		errs = append(errs, fmt.Errorf("default format %q not writable", cfg.DefaultFormat))
	}

	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality %d out of range", cfg.JPEGQuality))
	}

	if cfg.MaxPixels < 0 {
		errs = append(errs, fmt.Errorf("max pixels %d negative", cfg.MaxPixels))
	}

	if _, err := ParseColor(cfg.Background); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// BackgroundColor returns the parsed background, or opaque white if it cannot be parsed.
func (cfg *Config) BackgroundColor() color.NRGBA {
	c, err := ParseColor(cfg.Background)
	if err != nil {
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}

	return c
}

// ParseColor parses "#rrggbb", "#rrggbbaa" or "none" (fully transparent).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "none" || s == "transparent" {
		return color.NRGBA{}, nil
	}

	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 6 && len(hex) != 8) {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	return color.NRGBA{
		R: uint8(v >> 24), //nolint:gosec
		G: uint8(v >> 16), //nolint:gosec
		B: uint8(v >> 8),  //nolint:gosec
		A: uint8(v),       //nolint:gosec
	}, nil
}
