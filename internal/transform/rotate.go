package transform

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
)

// rotate turns src clockwise by degrees. Quarter turns are exact; other angles
// grow the canvas to the rotated bounding box and fill the corners with the background.
func rotate(src image.Image, degrees float64, cfg *codec.Config) (*image.RGBA, error) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"invalid rotation angle", formatFloat(degrees), nil)
	}

	rgba := toRGBA(src)

	angle := math.Mod(degrees, 360) //nolint:mnd
	if angle < 0 {
		angle += 360
	}

	switch angle {
	case 0:
		return copyRGBA(rgba), nil
	case 90: //nolint:mnd
		return rotateQuarter(rgba, 1), nil
	case 180: //nolint:mnd
		return rotateQuarter(rgba, 2), nil //nolint:mnd
	case 270: //nolint:mnd
		return rotateQuarter(rgba, 3), nil //nolint:mnd
	}

	return rotateArbitrary(rgba, angle, cfg)
}

func copyRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)

	return dst
}

// rotateQuarter rotates by turns*90 degrees clockwise with exact pixel remapping.
func rotateQuarter(src *image.RGBA, turns int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()

	dw, dh := w, h
	if turns%2 == 1 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := range h {
		for x := range w {
			var dx, dy int

			switch turns {
			case 1:
				dx, dy = h-1-y, x
			case 2: //nolint:mnd
				dx, dy = w-1-x, h-1-y
			default:
				dx, dy = y, w-1-x
			}

			so := y*src.Stride + x*4
			do := dy*dst.Stride + dx*4
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}

	return dst
}

func rotateArbitrary(src *image.RGBA, angle float64, cfg *codec.Config) (*image.RGBA, error) {
	w, h := float64(src.Rect.Dx()), float64(src.Rect.Dy())

	rad := angle * math.Pi / 180 //nolint:mnd
	sin, cos := math.Sincos(rad)

	dw := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin) - 1e-9)) //nolint:mnd
	dh := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos) - 1e-9)) //nolint:mnd

	if err := checkResultSize(KindRotate, dw, dh, cfg); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(backgroundOf(cfg)), image.Point{}, draw.Src)

	// Maps source coordinates onto the destination: move the source centre to the origin,
	// rotate (clockwise on screen, y grows downwards) and move to the destination centre.
	cx, cy := w/2, h/2                       //nolint:mnd
	ncx, ncy := float64(dw)/2, float64(dh)/2 //nolint:mnd
	s2d := f64.Aff3{
		cos, -sin, ncx - cos*cx + sin*cy,
		sin, cos, ncy - sin*cx - cos*cy,
	}

	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Over, nil)

	return dst, nil
}

func backgroundOf(cfg *codec.Config) color.Color {
	if cfg == nil {
		return color.White
	}

	return cfg.BackgroundColor()
}
