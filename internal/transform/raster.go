package transform

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

// toRGBA returns src as a premultiplied RGBA raster anchored at the origin.
// The result may share pixels with src; operators never write to it.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return dst
}

// maxRasterPixels is the largest pixel count whose RGBA buffer length fits in an int.
const maxRasterPixels = int64(math.MaxInt / 4)

// checkResultSize refuses to allocate rasters larger than the configured pixel limit.
func checkResultSize(kind Kind, width, height int, cfg *codec.Config) error {
	if width <= 0 || height <= 0 {
		return codec.NewError(codec.StageTransform, codec.SeverityImage,
			"invalid result dimensions", fmt.Sprintf("%dx%d", width, height), nil)
	}

	// width*height may overflow int64; compare against the quotient instead.
	if int64(width) > maxRasterPixels/int64(height) ||
		(cfg != nil && cfg.MaxPixels > 0 && int64(width) > cfg.MaxPixels/int64(height)) {
		return codec.NewError(codec.StageTransform, codec.SeverityResourceLimit,
			"result dimensions exceed limit",
			fmt.Sprintf("%s %dx%d", kind, width, height), domain.ErrImageTooLarge)
	}

	return nil
}

// sampleBilinear interpolates src at (x, y) in pixel-centre coordinates,
// clamping to the nearest edge pixel outside the raster.
func sampleBilinear(src *image.RGBA, x, y float64) [4]float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()

	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := x - x0
	fy := y - y0

	ix0 := clamp(int(x0), 0, w-1)
	iy0 := clamp(int(y0), 0, h-1)
	ix1 := clamp(int(x0)+1, 0, w-1)
	iy1 := clamp(int(y0)+1, 0, h-1)

	var out [4]float64

	for c := range 4 {
		p00 := float64(src.Pix[iy0*src.Stride+ix0*4+c])
		p10 := float64(src.Pix[iy0*src.Stride+ix1*4+c])
		p01 := float64(src.Pix[iy1*src.Stride+ix0*4+c])
		p11 := float64(src.Pix[iy1*src.Stride+ix1*4+c])

		top := p00 + (p10-p00)*fx
		bottom := p01 + (p11-p01)*fx
		out[c] = top + (bottom-top)*fy
	}

	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}

	return v
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255: //nolint:mnd
		return 255 //nolint:mnd
	default:
		return uint8(v + 0.5) //nolint:mnd
	}
}
