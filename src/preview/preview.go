package preview

import (
	"image"

	"github.com/nfnt/resize"
)

const (
	DefaultMaxWidth  = 320
	DefaultMaxHeight = 240
)

// Thumbnail scales img to fit inside maxW x maxH, keeping the aspect ratio.
// Images that already fit are returned unchanged; nothing is upscaled.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	if img == nil {
		return nil
	}
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return resize.Thumbnail(uint(maxW), uint(maxH), img, resize.Bilinear)
}
