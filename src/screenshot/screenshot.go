package screenshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

var (
	ErrNoDisplays  = errors.New("no active displays found")
	ErrEmptyRegion = errors.New("region has no extent")
)

// Region represents a screen region to capture
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

type Point struct {
	X int
	Y int
}

// FromCorners builds a normalized region from two arbitrary corner points.
// Width and height are never negative.
func FromCorners(a, b Point) Region {
	x1, x2 := a.X, b.X
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	y1, y2 := a.Y, b.Y
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Clamp trims the region to bounds. The result is empty when the two do not overlap.
func (r Region) Clamp(bounds image.Rectangle) Region {
	c := r.Rect().Intersect(bounds)
	if c.Empty() {
		return Region{X: c.Min.X, Y: c.Min.Y}
	}
	return Region{X: c.Min.X, Y: c.Min.Y, Width: c.Dx(), Height: c.Dy()}
}

// Grabber rasterizes screen regions using the kbinani/screenshot backend.
// Regions are clamped to Bounds.
type Grabber struct {
	Bounds image.Rectangle
}

// NewGrabber pins Bounds to the primary display. With no display attached
// Bounds stays empty and is looked up again on each call.
func NewGrabber() *Grabber {
	g := &Grabber{}
	if b, err := GetDisplayBounds(); err == nil {
		g.Bounds = b
	}
	return g
}

// ScreenBounds returns the rectangle regions are clamped to.
func (g *Grabber) ScreenBounds() (image.Rectangle, error) {
	if g != nil && !g.Bounds.Empty() {
		return g.Bounds, nil
	}
	return GetDisplayBounds()
}

// CaptureRegion clamps the region to the screen and captures it.
func (g *Grabber) CaptureRegion(region Region) (*image.RGBA, error) {
	bounds, err := g.ScreenBounds()
	if err != nil {
		return nil, err
	}
	clamped := region.Clamp(bounds)
	if clamped.Empty() {
		return nil, fmt.Errorf("region %s outside screen %v: %w", region, bounds, ErrEmptyRegion)
	}

	img, err := screenshot.CaptureRect(clamped.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", clamped, err)
	}
	return img, nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoDisplays
	}
	return screenshot.GetDisplayBounds(0), nil
}
