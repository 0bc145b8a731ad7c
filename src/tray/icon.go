package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	selectionBlue = color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	shutterGray   = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// drawIcon renders a dashed selection rectangle with a filled corner handle.
func drawIcon() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	const lo, hi = 4, iconSize - 5
	for i := lo; i <= hi; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for _, w := range []int{0, 1} {
			img.SetRGBA(i, lo+w, selectionBlue)
			img.SetRGBA(i, hi-w, selectionBlue)
			img.SetRGBA(lo+w, i, selectionBlue)
			img.SetRGBA(hi-w, i, selectionBlue)
		}
	}
	for y := hi - 6; y <= hi; y++ {
		for x := hi - 6; x <= hi; x++ {
			img.SetRGBA(x, y, shutterGray)
		}
	}
	return img
}

// IconPNG returns the tray icon as PNG.
func IconPNG() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, drawIcon())
	return buf.Bytes()
}

// IconData returns the icon in the encoding systray expects on this platform:
// an ICO container on Windows and plain PNG elsewhere.
func IconData() []byte {
	if runtime.GOOS == "windows" {
		return wrapICO(IconPNG(), iconSize)
	}
	return IconPNG()
}

// wrapICO embeds a PNG image as the single entry of an ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image.
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size % 256),
		Height:   uint8(size % 256),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
