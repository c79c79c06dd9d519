package transform

import (
	"image"
	"math"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
)

// swirl twists pixels around the image centre. The twist is strongest at the centre
// and fades to nothing at the radius; pixels outside the radius are copied unchanged.
func swirl(src image.Image, degrees float64) (*image.RGBA, error) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"invalid swirl angle", formatFloat(degrees), nil)
	}

	rgba := toRGBA(src)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	dst := image.NewRGBA(rgba.Rect)

	centerX, centerY := float64(w)/2, float64(h)/2 //nolint:mnd
	radius := math.Max(centerX, centerY)

	scaleX, scaleY := 1.0, 1.0
	if w > h {
		scaleY = float64(w) / float64(h)
	} else if w < h {
		scaleX = float64(h) / float64(w)
	}

	rad := degrees * math.Pi / 180 //nolint:mnd

	for y := range h {
		deltaY := scaleY * (float64(y) - centerY)

		for x := range w {
			deltaX := scaleX * (float64(x) - centerX)
			distance := deltaX*deltaX + deltaY*deltaY
			offset := y*dst.Stride + x*4

			if distance >= radius*radius {
				copy(dst.Pix[offset:offset+4], rgba.Pix[offset:offset+4])

				continue
			}

			factor := 1 - math.Sqrt(distance)/radius
			sin, cos := math.Sincos(rad * factor * factor)

			px := sampleBilinear(rgba,
				(cos*deltaX-sin*deltaY)/scaleX+centerX,
				(sin*deltaX+cos*deltaY)/scaleY+centerY,
			)

			for c := range 4 {
				dst.Pix[offset+c] = clampByte(px[c])
			}
		}
	}

	return dst, nil
}
