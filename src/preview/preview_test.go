package preview

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThumbnailKeepsSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	assert.Same(t, img, Thumbnail(img, 320, 240))
}

func TestThumbnailFitsBox(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
	}{
		{"wide", 1920, 1080, 320, 240},
		{"tall", 300, 2000, 320, 240},
		{"defaults", 1000, 1000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Thumbnail(img, tt.maxW, tt.maxH).Bounds()

			maxW, maxH := tt.maxW, tt.maxH
			if maxW == 0 {
				maxW, maxH = DefaultMaxWidth, DefaultMaxHeight
			}
			assert.LessOrEqual(t, got.Dx(), maxW)
			assert.LessOrEqual(t, got.Dy(), maxH)
			assert.Positive(t, got.Dx())
			assert.Positive(t, got.Dy())
		})
	}
}

func TestThumbnailNil(t *testing.T) {
	assert.Nil(t, Thumbnail(nil, 10, 10))
}
