package transform

import (
	"fmt"
	"image"
	"math"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
)

// MaxBlurWidth caps the Gaussian kernel width.
const MaxBlurWidth = 2*256 + 1

// blur applies a separable Gaussian. radius bounds the kernel (zero derives it from sigma).
func blur(src image.Image, radius, sigma float64) (*image.RGBA, error) {
	kernel, err := gaussianKernel(radius, sigma)
	if err != nil {
		return nil, err
	}

	rgba := toRGBA(src)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	half := len(kernel) / 2 //nolint:mnd

	// Horizontal pass into a float buffer, vertical pass into the result.
	tmp := make([]float64, w*h*4)

	for y := range h {
		row := rgba.Pix[y*rgba.Stride:]

		for x := range w {
			var acc [4]float64

			for k, weight := range kernel {
				sx := clamp(x+k-half, 0, w-1) * 4

				for c := range 4 {
					acc[c] += weight * float64(row[sx+c])
				}
			}

			copy(tmp[(y*w+x)*4:], acc[:])
		}
	}

	dst := image.NewRGBA(rgba.Rect)

	for y := range h {
		for x := range w {
			var acc [4]float64

			for k, weight := range kernel {
				sy := clamp(y+k-half, 0, h-1)

				for c := range 4 {
					acc[c] += weight * tmp[(sy*w+x)*4+c]
				}
			}

			offset := y*dst.Stride + x*4
			for c := range 4 {
				dst.Pix[offset+c] = clampByte(acc[c])
			}
		}
	}

	return dst, nil
}

// gaussianKernel returns normalised weights of odd length.
func gaussianKernel(radius, sigma float64) ([]float64, error) {
	switch {
	case math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0:
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"invalid blur sigma", formatFloat(sigma), nil)
	case math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0:
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"invalid blur radius", formatFloat(radius), nil)
	}

	reach := radius
	if reach == 0 {
		reach = 3 * sigma //nolint:mnd
	}

	width := MaxBlurWidth
	if half := math.Ceil(reach); half < float64(MaxBlurWidth/2) { //nolint:mnd
		width = 2*int(half) + 1
	}

	kernel := make([]float64, width)
	half := width / 2 //nolint:mnd

	var sum float64

	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}

	if sum == 0 || math.IsNaN(sum) {
		return nil, codec.NewError(codec.StageTransform, codec.SeverityOption,
			"unable to build blur kernel", fmt.Sprintf("radius %s sigma %s", formatFloat(radius), formatFloat(sigma)), nil)
	}

	for i := range kernel {
		kernel[i] /= sum
	}

	return kernel, nil
}
