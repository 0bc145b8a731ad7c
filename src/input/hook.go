package input

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-vgo/robotgo"
	gohook "github.com/robotn/gohook"
	"github.com/sirupsen/logrus"
)

// HookSampler keeps a snapshot of key and cursor state fed by the global
// gohook event stream. Keys are matched on libuiohook key codes, so the same
// tables work on every platform gohook supports.
type HookSampler struct {
	modifier Chord
	cancel   Chord

	// codes is built once in newHookSampler and only read afterwards.
	codes map[uint16]*atomic.Bool

	cancelLatched atomic.Bool
	x, y          atomic.Int32

	done chan struct{}
	stop func()
}

// NewHookSampler starts the global hook and begins tracking the chords. The
// cursor starts at its current position, since the hook only reports it once
// the mouse moves.
func NewHookSampler(modifier, cancel Chord) (*HookSampler, error) {
	x, y := robotgo.Location()
	s := newHookSampler(modifier, cancel, x, y)
	evChan := gohook.Start()
	if evChan == nil {
		return nil, errors.New("gohook.Start() returned nil channel")
	}
	s.stop = gohook.End
	go s.consume(evChan)
	logrus.Infof("Hook sampler started: modifier=%s cancel=%s cursor=(%d,%d)", modifier, cancel, x, y)
	return s, nil
}

func newHookSampler(modifier, cancel Chord, x, y int) *HookSampler {
	s := &HookSampler{
		modifier: modifier,
		cancel:   cancel,
		codes:    make(map[uint16]*atomic.Bool),
		done:     make(chan struct{}),
	}
	for _, chord := range []Chord{modifier, cancel} {
		for _, k := range chord {
			for _, code := range k.Uiohook {
				if _, ok := s.codes[code]; !ok {
					s.codes[code] = new(atomic.Bool)
				}
			}
		}
	}
	s.x.Store(int32(x))
	s.y.Store(int32(y))
	return s
}

func (s *HookSampler) consume(evChan <-chan gohook.Event) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("PANIC in hook sampler goroutine: %v", r)
		}
	}()
	for ev := range evChan {
		s.handle(ev)
	}
	logrus.Debugf("Hook event channel closed")
}

func (s *HookSampler) handle(ev gohook.Event) {
	switch ev.Kind {
	// libuiohook reports "typed" only for printable keys, so KeyHold is the
	// reliable press signal for modifiers.
	case gohook.KeyDown, gohook.KeyHold:
		s.setKey(ev.Keycode, true)
		if s.chordHeld(s.cancel) {
			s.cancelLatched.Store(true)
		}
	case gohook.KeyUp:
		s.setKey(ev.Keycode, false)
	case gohook.MouseMove, gohook.MouseDrag, gohook.MouseDown, gohook.MouseUp, gohook.MouseHold:
		s.x.Store(int32(ev.X))
		s.y.Store(int32(ev.Y))
	}
}

func (s *HookSampler) setKey(code uint16, down bool) {
	if b, ok := s.codes[code]; ok {
		b.Store(down)
	}
}

func (s *HookSampler) keyHeld(k Key) bool {
	for _, code := range k.Uiohook {
		if b, ok := s.codes[code]; ok && b.Load() {
			return true
		}
	}
	return false
}

func (s *HookSampler) chordHeld(c Chord) bool {
	if len(c) == 0 {
		return false
	}
	for _, k := range c {
		if !s.keyHeld(k) {
			return false
		}
	}
	return true
}

func (s *HookSampler) ModifierHeld() bool { return s.chordHeld(s.modifier) }

func (s *HookSampler) CancelPressed() bool {
	latched := s.cancelLatched.Swap(false)
	return latched || s.chordHeld(s.cancel)
}

func (s *HookSampler) CursorPosition() (int, int) {
	return int(s.x.Load()), int(s.y.Load())
}

// Close stops the global hook and waits briefly for the event goroutine.
func (s *HookSampler) Close() error {
	if s.stop == nil {
		return nil
	}
	stop := s.stop
	s.stop = nil
	stop()
	select {
	case <-s.done:
	case <-time.After(time.Second):
		logrus.Warnf("Hook sampler: event goroutine did not exit within 1s")
	}
	return nil
}
