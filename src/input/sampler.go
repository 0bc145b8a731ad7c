package input

// Sampler reads global keyboard and cursor state. The capture loop calls the
// read methods once per tick from a single goroutine.
type Sampler interface {
	ModifierHeld() bool
	// CancelPressed reports whether the cancel chord is held, or was pressed
	// at any point since the previous call.
	CancelPressed() bool
	CursorPosition() (x, y int)
	Close() error
}

// NewSampler returns the platform default sampler for the given chords.
func NewSampler(modifier, cancel Chord) (Sampler, error) {
	return newPlatformSampler(modifier, cancel)
}
