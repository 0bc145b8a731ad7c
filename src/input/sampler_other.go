//go:build !windows

package input

func newPlatformSampler(modifier, cancel Chord) (Sampler, error) {
	return NewHookSampler(modifier, cancel)
}
