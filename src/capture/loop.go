package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"quick-capture/src/preview"
	"quick-capture/src/screenshot"
	"quick-capture/src/store"
)

const DefaultInterval = 50 * time.Millisecond

var (
	// ErrCancelled is returned by Run when the cancel key stopped the loop.
	ErrCancelled = errors.New("capture cancelled by cancel key")
	// ErrTickPanic wraps a panic recovered from inside a tick.
	ErrTickPanic = errors.New("capture tick panicked")
)

// Sampler is the subset of input.Sampler the loop reads each tick.
type Sampler interface {
	ModifierHeld() bool
	CancelPressed() bool
	CursorPosition() (x, y int)
}

// Grabber rasterizes a region of the screen.
type Grabber interface {
	ScreenBounds() (image.Rectangle, error)
	CaptureRegion(region screenshot.Region) (*image.RGBA, error)
}

// FrameWriter persists a finished frame.
type FrameWriter interface {
	Save(img image.Image) (store.Saved, error)
}

// Frame is one grabbed raster together with the region it came from.
type Frame struct {
	Image      *image.RGBA
	Region     screenshot.Region
	CapturedAt time.Time
}

// State is owned by the loop and never shared with UI code.
type State struct {
	Dragging bool
	Start    screenshot.Point
	// Pending is the most recent grab of the current drag. At most one exists.
	Pending *Frame
	Ticks   uint64
	Saved   int
}

type Options struct {
	Interval         time.Duration
	ShowPreview      bool
	PreviewMaxWidth  int
	PreviewMaxHeight int

	Sampler Sampler
	Grabber Grabber
	Writer  FrameWriter
	Status  StatusSink
	Preview PreviewSink
	// OnSaved runs on the loop goroutine after each successful write.
	OnSaved func(frame Frame, saved store.Saved)
}

// Loop is the drag-to-capture state machine. Tick and Run must be called
// from a single goroutine.
type Loop struct {
	opts    Options
	state   State
	bounds  image.Rectangle
	status  StatusSink
	preview PreviewSink
	now     func() time.Time
}

func New(opts Options) (*Loop, error) {
	if opts.Sampler == nil {
		return nil, errors.New("Sampler is required")
	}
	if opts.Grabber == nil {
		return nil, errors.New("Grabber is required")
	}
	if opts.Writer == nil {
		return nil, errors.New("Writer is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	l := &Loop{
		opts:    opts,
		status:  opts.Status,
		preview: opts.Preview,
		now:     time.Now,
	}
	if l.status == nil {
		l.status = LogStatus{}
	}
	if l.preview == nil || !opts.ShowPreview {
		l.preview = nopPreview{}
	}
	return l, nil
}

// State returns a copy of the loop state, for tests and diagnostics.
func (l *Loop) State() State { return l.state }

// Run ticks at the configured interval until ctx is done, the cancel key is
// pressed or a tick panics. Any pending frame is dropped on exit.
func (l *Loop) Run(ctx context.Context) error {
	defer l.release()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	logrus.Infof("Capture loop started (interval %v, preview %v)", l.opts.Interval, l.opts.ShowPreview)
	for {
		if err := ctx.Err(); err != nil {
			logrus.Infof("Capture loop stopped: %v", err)
			return err
		}
		stop, err := l.safeTick()
		if err != nil {
			return err
		}
		if stop {
			logrus.Infof("Capture loop stopped by cancel key after %d ticks", l.state.Ticks)
			return ErrCancelled
		}
		select {
		case <-ctx.Done():
			logrus.Infof("Capture loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) safeTick() (stop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("PANIC in capture tick: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
			l.status.Report(fmt.Sprintf("Error: %v", r))
		}
	}()
	return l.Tick(), nil
}

// Tick runs one iteration and reports whether the loop should stop.
func (l *Loop) Tick() bool {
	s := &l.state
	s.Ticks++

	if l.opts.Sampler.CancelPressed() {
		return true
	}

	held := l.opts.Sampler.ModifierHeld()
	x, y := l.opts.Sampler.CursorPosition()
	cursor := screenshot.Point{X: x, Y: y}

	switch {
	case held && !s.Dragging:
		s.Dragging = true
		s.Start = cursor
		logrus.Debugf("Drag started at (%d,%d)", x, y)
	case !held && s.Dragging:
		l.finishDrag()
	}

	if s.Dragging {
		region := screenshot.FromCorners(s.Start, cursor)
		if !region.Empty() {
			l.grab(region)
		}
	}
	return false
}

func (l *Loop) grab(region screenshot.Region) {
	if l.bounds.Empty() {
		b, err := l.opts.Grabber.ScreenBounds()
		if err != nil {
			l.status.Report(fmt.Sprintf("Capture error: %v", err))
			return
		}
		l.bounds = b
	}
	clamped := region.Clamp(l.bounds)
	if clamped.Empty() {
		l.status.Report(fmt.Sprintf("Capture error: selection %s is outside the screen", region))
		return
	}

	img, err := l.opts.Grabber.CaptureRegion(clamped)
	if err != nil {
		// The previous pending frame stays valid.
		l.status.Report(fmt.Sprintf("Capture error: %v", err))
		return
	}
	l.state.Pending = &Frame{Image: img, Region: clamped, CapturedAt: l.now()}
	if l.opts.ShowPreview {
		l.preview.Publish(preview.Thumbnail(img, l.opts.PreviewMaxWidth, l.opts.PreviewMaxHeight))
	}
}

func (l *Loop) finishDrag() {
	s := &l.state
	frame := s.Pending
	s.Dragging = false
	s.Start = screenshot.Point{}
	s.Pending = nil
	l.preview.Hide()

	if frame == nil {
		logrus.Debugf("Drag ended without a frame")
		return
	}
	l.persist(*frame)
}

func (l *Loop) persist(frame Frame) {
	saved, err := l.opts.Writer.Save(frame.Image)
	if err != nil {
		logrus.Errorf("Failed to save capture: %v", err)
		l.status.Report(fmt.Sprintf("File save error: %v", err))
		return
	}
	l.state.Saved++
	logrus.Infof("Saved %s region=%s bytes=%d", saved.Path, frame.Region, saved.Size)
	l.status.Report(fmt.Sprintf("Saved %s (%s)", saved.Path, humanize.Bytes(uint64(saved.Size))))
	if l.opts.OnSaved != nil {
		l.opts.OnSaved(frame, saved)
	}
}

func (l *Loop) release() {
	if l.state.Pending != nil {
		logrus.Debugf("Dropping pending frame %s", l.state.Pending.Region)
	}
	l.state.Pending = nil
	l.state.Dragging = false
	l.preview.Hide()
}
