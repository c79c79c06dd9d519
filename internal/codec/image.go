package codec

import "image"

// Image is a decoded raster together with the format it was read from.
// Release drops the pixel data; it is safe to call more than once.
type Image struct {
	pixels image.Image
	format string
}

// NewImage wraps pixels read from (or destined for) format.
func NewImage(pixels image.Image, format string) *Image {
	return &Image{
		pixels: pixels,
		format: format,
	}
}

// Pixels returns the raster, or nil once released.
func (img *Image) Pixels() image.Image {
	if img == nil {
		return nil
	}

	return img.pixels
}

// Format returns the source format identifier.
func (img *Image) Format() string {
	if img == nil {
		return ""
	}

	return img.format
}

// Bounds returns the raster bounds, or the empty rectangle once released.
func (img *Image) Bounds() image.Rectangle {
	if img == nil || img.pixels == nil {
		return image.Rectangle{}
	}

	return img.pixels.Bounds()
}

// Release drops the raster.
func (img *Image) Release() {
	if img == nil {
		return
	}

	img.pixels = nil
}

// Released reports whether the raster has been dropped.
func (img *Image) Released() bool {
	return img == nil || img.pixels == nil
}
