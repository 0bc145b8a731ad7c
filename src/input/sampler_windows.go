//go:build windows

package input

import (
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

func newPlatformSampler(modifier, cancel Chord) (Sampler, error) {
	return &pollSampler{modifier: modifier, cancel: cancel}, nil
}

// pollSampler reads key and cursor state synchronously on each call, so no
// background hook is installed.
type pollSampler struct {
	modifier Chord
	cancel   Chord
}

// asyncKeyState returns the GetAsyncKeyState bits: down is the high bit,
// tapped is the "pressed since last query" bit.
func asyncKeyState(vk uint16) (down, tapped bool) {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	state := uint16(r)
	return state&0x8000 != 0, state&0x0001 != 0
}

func keyDown(k Key) (down, tapped bool) {
	for _, vk := range k.VK {
		d, t := asyncKeyState(vk)
		down = down || d
		tapped = tapped || t
	}
	return down, tapped
}

func (s *pollSampler) ModifierHeld() bool {
	if len(s.modifier) == 0 {
		return false
	}
	for _, k := range s.modifier {
		if down, _ := keyDown(k); !down {
			return false
		}
	}
	return true
}

func (s *pollSampler) CancelPressed() bool {
	if len(s.cancel) == 0 {
		return false
	}
	for _, k := range s.cancel {
		if down, tapped := keyDown(k); !down && !tapped {
			return false
		}
	}
	return true
}

func (s *pollSampler) CursorPosition() (int, int) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return 0, 0
	}
	return int(pt.X), int(pt.Y)
}

func (s *pollSampler) Close() error { return nil }
