package transform

import (
	"errors"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is configured.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

//nolint:gochecknoglobals
var (
	// interpolMap maps interpolator names to their implementations.
	// Supported values: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear".
	interpolMap = map[string]draw.Interpolator{
		"nearestneighbor": draw.NearestNeighbor,
		"catmullrom":      draw.CatmullRom,
		"bilinear":        draw.BiLinear,
		"approxbilinear":  draw.ApproxBiLinear,
	}
)

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownInterpolator
	}

	return interpol, nil
}

// thumbnail scales src to exactly width x height, ignoring the aspect ratio.
func thumbnail(src image.Image, width, height int, cfg *codec.Config) (*image.RGBA, error) {
	name := "catmullrom"
	if cfg != nil && cfg.Interpolator != "" {
		name = cfg.Interpolator
	}

	interpol, err := getInterpolatorByName(name)
	if err != nil {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"unknown interpolator", name, err)
	}

	if err := checkResultSize(KindThumbnail, width, height, cfg); err != nil {
		return nil, err
	}

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	interpol.Scale(bitmap, bitmap.Bounds(), src, src.Bounds(), draw.Src, nil)

	return bitmap, nil
}
