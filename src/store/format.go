package store

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

const DefaultQuality = 90

// Format is an output encoding selected by file extension.
type Format struct {
	Ext      string
	Lossless bool
	encode   func(w io.Writer, img image.Image, quality int) error
}

var formats = map[string]Format{
	"png": {Ext: "png", Lossless: true, encode: func(w io.Writer, img image.Image, _ int) error {
		return png.Encode(w, img)
	}},
	"jpg": {Ext: "jpg", encode: func(w io.Writer, img image.Image, quality int) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}},
	"bmp": {Ext: "bmp", Lossless: true, encode: func(w io.Writer, img image.Image, _ int) error {
		return bmp.Encode(w, img)
	}},
	"webp": {Ext: "webp", encode: func(w io.Writer, img image.Image, quality int) error {
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}},
}

// ResolveFormat maps a configured extension (with or without a leading dot,
// any case) to its Format.
func ResolveFormat(ext string) (Format, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if key == "jpeg" {
		key = "jpg"
	}
	f, ok := formats[key]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// SupportedExtensions lists the canonical extensions in display order.
func SupportedExtensions() []string {
	return []string{"jpg", "png", "bmp", "webp"}
}

// Encode writes img in this format. Quality applies to lossy formats only and
// falls back to DefaultQuality outside 1..100.
func (f Format) Encode(w io.Writer, img image.Image, quality int) error {
	if f.encode == nil {
		return fmt.Errorf("%w: zero Format", ErrUnsupportedFormat)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return f.encode(w, img, quality)
}
