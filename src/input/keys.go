package input

import (
	"fmt"
	"strings"
)

// Key is one physical key with its codes on both sampling backends.
// Modifiers list both left and right variants.
type Key struct {
	Name    string
	VK      []uint16 // Win32 virtual-key codes
	Uiohook []uint16 // libuiohook virtual key codes, as reported by gohook's Keycode
}

// Chord is a set of keys that count as held only while all of them are held.
type Chord []Key

func (c Chord) String() string {
	names := make([]string, len(c))
	for i, k := range c {
		names[i] = k.Name
	}
	return strings.Join(names, "+")
}

// ParseChord converts a string like "Ctrl+Shift" into a Chord.
func ParseChord(config string) (Chord, error) {
	names := parseKeyNames(config)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty key configuration %q", config)
	}
	chord := make(Chord, 0, len(names))
	for _, name := range names {
		k, ok := LookupKey(name)
		if !ok {
			return nil, fmt.Errorf("unknown key name %q in %q", name, config)
		}
		chord = append(chord, k)
	}
	return chord, nil
}

// parseKeyNames converts a key string like "Ctrl+Alt+q" to normalized key names
func parseKeyNames(config string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(config), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		case "escape":
			keys = append(keys, "esc")
		case "return":
			keys = append(keys, "enter")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// LookupKey resolves a normalized or aliased key name.
func LookupKey(name string) (Key, bool) {
	names := parseKeyNames(name)
	if len(names) != 1 {
		return Key{}, false
	}
	k, ok := keyTable[names[0]]
	return k, ok
}

var keyTable = buildKeyTable()

func buildKeyTable() map[string]Key {
	t := map[string]Key{
		"ctrl":      {VK: []uint16{162, 163}, Uiohook: []uint16{0x001D, 0x0E1D}}, // VK_LCONTROL, VK_RCONTROL
		"alt":       {VK: []uint16{164, 165}, Uiohook: []uint16{0x0038, 0x0E38}}, // VK_LMENU, VK_RMENU
		"shift":     {VK: []uint16{160, 161}, Uiohook: []uint16{0x002A, 0x0036}}, // VK_LSHIFT, VK_RSHIFT
		"cmd":       {VK: []uint16{91, 92}, Uiohook: []uint16{0x0E5B, 0x0E5C}},   // VK_LWIN, VK_RWIN
		"esc":       {VK: []uint16{27}, Uiohook: []uint16{0x0001}},
		"space":     {VK: []uint16{32}, Uiohook: []uint16{0x0039}},
		"enter":     {VK: []uint16{13}, Uiohook: []uint16{0x001C}},
		"tab":       {VK: []uint16{9}, Uiohook: []uint16{0x000F}},
		"backspace": {VK: []uint16{8}, Uiohook: []uint16{0x000E}},
		"delete":    {VK: []uint16{46}, Uiohook: []uint16{0x0E53}},
		"insert":    {VK: []uint16{45}, Uiohook: []uint16{0x0E52}},
		"home":      {VK: []uint16{36}, Uiohook: []uint16{0x0E47}},
		"end":       {VK: []uint16{35}, Uiohook: []uint16{0x0E4F}},
		"pageup":    {VK: []uint16{33}, Uiohook: []uint16{0x0E49}},
		"pagedown":  {VK: []uint16{34}, Uiohook: []uint16{0x0E51}},
		"left":      {VK: []uint16{37}, Uiohook: []uint16{0xE04B}},
		"up":        {VK: []uint16{38}, Uiohook: []uint16{0xE048}},
		"right":     {VK: []uint16{39}, Uiohook: []uint16{0xE04D}},
		"down":      {VK: []uint16{40}, Uiohook: []uint16{0xE050}},
	}

	// libuiohook follows set-1 scancodes, so letters go row by row.
	rows := []struct {
		letters string
		first   uint16
	}{
		{"qwertyuiop", 0x0010},
		{"asdfghjkl", 0x001E},
		{"zxcvbnm", 0x002C},
	}
	for _, row := range rows {
		for i, r := range row.letters {
			t[string(r)] = Key{
				VK:      []uint16{uint16('A' + (r - 'a'))},
				Uiohook: []uint16{row.first + uint16(i)},
			}
		}
	}

	// Digits: VK 0x30-0x39; uiohook 1-9 are 0x02-0x0A and 0 is 0x0B.
	for d := 0; d <= 9; d++ {
		code := uint16(0x0B)
		if d > 0 {
			code = uint16(0x01 + d)
		}
		t[fmt.Sprint(d)] = Key{VK: []uint16{uint16(0x30 + d)}, Uiohook: []uint16{code}}
	}

	// Function keys: VK_F1 is 112. uiohook F1-F10 are contiguous from 0x3B,
	// F11/F12 are 0x57/0x58 and F13-F24 are 0x5B-0x66.
	for n := 1; n <= 24; n++ {
		var code uint16
		switch {
		case n <= 10:
			code = uint16(0x3B + n - 1)
		case n <= 12:
			code = uint16(0x57 + n - 11)
		default:
			code = uint16(0x5B + n - 13)
		}
		t[fmt.Sprintf("f%d", n)] = Key{VK: []uint16{uint16(111 + n)}, Uiohook: []uint16{code}}
	}

	aliases := map[string]string{"del": "delete", "ins": "insert", "pgup": "pageup", "pgdn": "pagedown"}
	for alias, target := range aliases {
		t[alias] = t[target]
	}

	for name, k := range t {
		k.Name = name
		t[name] = k
	}
	return t
}
