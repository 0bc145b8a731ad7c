package input

import (
	"testing"

	gohook "github.com/robotn/gohook"
)

func mustChord(t *testing.T, s string) Chord {
	t.Helper()
	c, err := ParseChord(s)
	if err != nil {
		t.Fatalf("ParseChord(%q): %v", s, err)
	}
	return c
}

func TestHookSamplerModifier(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 0, 0)

	if s.ModifierHeld() {
		t.Fatal("modifier should start released")
	}
	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x001D})
	if !s.ModifierHeld() {
		t.Fatal("expected left ctrl to hold the modifier")
	}
	s.handle(gohook.Event{Kind: gohook.KeyUp, Keycode: 0x001D})
	if s.ModifierHeld() {
		t.Fatal("expected modifier released after KeyUp")
	}

	s.handle(gohook.Event{Kind: gohook.KeyDown, Keycode: 0x0E1D})
	if !s.ModifierHeld() {
		t.Fatal("expected right ctrl to hold the modifier")
	}
}

func TestHookSamplerChordNeedsAllKeys(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl+shift"), mustChord(t, "esc"), 0, 0)

	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x001D})
	if s.ModifierHeld() {
		t.Fatal("ctrl alone must not satisfy ctrl+shift")
	}
	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x0036})
	if !s.ModifierHeld() {
		t.Fatal("expected ctrl+shift held")
	}
}

func TestHookSamplerCancelLatches(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 0, 0)

	// A tap between two polls must still be observed once.
	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x0001})
	s.handle(gohook.Event{Kind: gohook.KeyUp, Keycode: 0x0001})
	if !s.CancelPressed() {
		t.Fatal("expected latched cancel press")
	}
	if s.CancelPressed() {
		t.Fatal("latch should clear after being read")
	}
}

func TestHookSamplerIgnoresUnrelatedKeys(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 0, 0)
	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x0010})
	if s.ModifierHeld() || s.CancelPressed() {
		t.Fatal("unrelated key changed sampler state")
	}
}

func TestHookSamplerCursor(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 0, 0)
	s.handle(gohook.Event{Kind: gohook.MouseMove, X: 120, Y: -40})
	x, y := s.CursorPosition()
	if x != 120 || y != -40 {
		t.Fatalf("CursorPosition() = (%d,%d), expected (120,-40)", x, y)
	}
	s.handle(gohook.Event{Kind: gohook.MouseDrag, X: 5, Y: 6})
	if x, y = s.CursorPosition(); x != 5 || y != 6 {
		t.Fatalf("CursorPosition() = (%d,%d), expected (5,6)", x, y)
	}
}

func TestHookSamplerStartsAtSeededCursor(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 640, 360)

	// Holding the modifier without moving the mouse keeps the seeded position.
	s.handle(gohook.Event{Kind: gohook.KeyHold, Keycode: 0x001D})
	if !s.ModifierHeld() {
		t.Fatal("expected modifier held")
	}
	if x, y := s.CursorPosition(); x != 640 || y != 360 {
		t.Fatalf("CursorPosition() = (%d,%d), expected seeded (640,360)", x, y)
	}

	s.handle(gohook.Event{Kind: gohook.MouseMove, X: 700, Y: 400})
	if x, y := s.CursorPosition(); x != 700 || y != 400 {
		t.Fatalf("CursorPosition() = (%d,%d), expected (700,400) after move", x, y)
	}
}

func TestHookSamplerConsumeExitsOnClose(t *testing.T) {
	s := newHookSampler(mustChord(t, "ctrl"), mustChord(t, "esc"), 0, 0)
	ch := make(chan gohook.Event, 2)
	ch <- gohook.Event{Kind: gohook.KeyHold, Keycode: 0x001D}
	close(ch)
	s.consume(ch)
	<-s.done
	if !s.ModifierHeld() {
		t.Fatal("expected buffered event to be processed")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() on unstarted sampler: %v", err)
	}
}
