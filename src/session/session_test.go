package session

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quick-capture/src/capture"
	"quick-capture/src/config"
	"quick-capture/src/input"
	"quick-capture/src/screenshot"
)

type step struct {
	held   bool
	cancel bool
	x, y   int
}

// stepSampler replays steps, advancing once per tick. When the script runs
// out it holds the last step, or reports cancel if endWithCancel is set.
type stepSampler struct {
	mu            sync.Mutex
	steps         []step
	i             int
	cur           step
	endWithCancel bool
	closed        atomic.Bool
}

func (s *stepSampler) next() step {
	if s.i < len(s.steps) {
		st := s.steps[s.i]
		s.i++
		return st
	}
	if s.endWithCancel {
		return step{cancel: true}
	}
	if len(s.steps) == 0 {
		return step{}
	}
	return s.steps[len(s.steps)-1]
}

// CancelPressed is sampled first in every tick, so it advances the script.
func (s *stepSampler) CancelPressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = s.next()
	return s.cur.cancel
}

func (s *stepSampler) ModifierHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.held
}

func (s *stepSampler) CursorPosition() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.x, s.cur.y
}

func (s *stepSampler) Close() error {
	s.closed.Store(true)
	return nil
}

type screenGrabber struct{}

func (screenGrabber) ScreenBounds() (image.Rectangle, error) {
	return image.Rect(0, 0, 100, 100), nil
}

func (screenGrabber) CaptureRegion(r screenshot.Region) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}

type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusLog) Report(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, msg)
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type fakeClipboard struct {
	initErr error
	mu      sync.Mutex
	images  []image.Image
}

func (c *fakeClipboard) Init() error { return c.initErr }

func (c *fakeClipboard) WriteImage(img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, img)
	return nil
}

func (c *fakeClipboard) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

type harness struct {
	cfg     *config.Config
	sampler *stepSampler
	opened  atomic.Int32
	status  *statusLog
	clip    *fakeClipboard
	stopped chan error
	sess    *Session
}

func newHarness(t *testing.T, sampler *stepSampler) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.FileExt = "png"
	cfg.PollIntervalMs = 1
	cfg.ShowPreview = false

	h := &harness{
		cfg:     cfg,
		sampler: sampler,
		status:  &statusLog{},
		clip:    &fakeClipboard{},
		stopped: make(chan error, 1),
	}
	sess, err := New(Options{
		Config: cfg,
		NewSampler: func(modifier, cancel input.Chord) (input.Sampler, error) {
			h.opened.Add(1)
			return h.sampler, nil
		},
		Grabber:   screenGrabber{},
		Status:    h.status,
		Clipboard: h.clip,
		OnStopped: func(err error) { h.stopped <- err },
	})
	require.NoError(t, err)
	h.sess = sess
	return h
}

func (h *harness) waitStopped(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.stopped:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, &stepSampler{})
	require.NoError(t, h.sess.Start(context.Background()))

	assert.True(t, h.sess.Running())
	assert.Equal(t, StateCapturing, h.sess.State())
	assert.DirExists(t, h.cfg.OutputDir)

	h.sess.Stop()
	err := h.waitStopped(t)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.sess.Running())
	assert.Equal(t, StateIdle, h.sess.State())
	assert.True(t, h.sampler.closed.Load())

	lines := h.status.all()
	require.NotEmpty(t, lines)
	assert.Equal(t, "Capture mode: hold ctrl and drag", lines[0])
	assert.Equal(t, "Stopped", lines[len(lines)-1])
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	h := newHarness(t, &stepSampler{})
	require.NoError(t, h.sess.Start(context.Background()))
	require.NoError(t, h.sess.Start(context.Background()))
	assert.Equal(t, int32(1), h.opened.Load())
	h.sess.Stop()
	h.waitStopped(t)
}

func TestStopWhenIdle(t *testing.T) {
	h := newHarness(t, &stepSampler{})
	h.sess.Stop()
	assert.False(t, h.sess.Running())
}

func TestStartFailsWhenDirectoryCannotBeCreated(t *testing.T) {
	h := newHarness(t, &stepSampler{})
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	h.cfg.OutputDir = filepath.Join(blocker, "out")

	err := h.sess.Start(context.Background())
	require.Error(t, err)
	assert.False(t, h.sess.Running())
	assert.Equal(t, int32(0), h.opened.Load(), "sampler must not be opened")
}

func TestStartRejectsBadKeys(t *testing.T) {
	h := newHarness(t, &stepSampler{})
	h.cfg.ModifierKey = "hyper"
	assert.Error(t, h.sess.Start(context.Background()))
	assert.False(t, h.sess.Running())
}

func TestCancelKeyEndsRun(t *testing.T) {
	h := newHarness(t, &stepSampler{endWithCancel: true})
	require.NoError(t, h.sess.Start(context.Background()))

	err := h.waitStopped(t)
	assert.True(t, errors.Is(err, capture.ErrCancelled))
	assert.False(t, h.sess.Running())
	assert.True(t, h.sampler.closed.Load())
}

func TestDragSavesAndCopiesToClipboard(t *testing.T) {
	sampler := &stepSampler{
		endWithCancel: true,
		steps: []step{
			{held: false},
			{held: true, x: 0, y: 0},
			{held: true, x: 20, y: 10},
			{held: false, x: 20, y: 10},
		},
	}
	h := newHarness(t, sampler)
	h.cfg.CopyToClipboard = true
	require.NoError(t, h.sess.Start(context.Background()))
	h.waitStopped(t)

	assert.FileExists(t, filepath.Join(h.cfg.OutputDir, "000000.png"))
	assert.NoFileExists(t, filepath.Join(h.cfg.OutputDir, "000001.png"))
	assert.Equal(t, 1, h.clip.count())
}

func TestClipboardInitFailureDisablesCopy(t *testing.T) {
	sampler := &stepSampler{
		endWithCancel: true,
		steps: []step{
			{held: true, x: 0, y: 0},
			{held: true, x: 5, y: 5},
			{held: false, x: 5, y: 5},
		},
	}
	h := newHarness(t, sampler)
	h.cfg.CopyToClipboard = true
	h.clip.initErr = errors.New("no display")
	require.NoError(t, h.sess.Start(context.Background()))
	h.waitStopped(t)

	assert.Equal(t, 0, h.clip.count())
	var reports int
	for _, line := range h.status.all() {
		if line == "Clipboard unavailable, copying disabled: no display" {
			reports++
		}
	}
	assert.Equal(t, 1, reports)
	assert.FileExists(t, filepath.Join(h.cfg.OutputDir, "000000.png"))
}

func TestToggle(t *testing.T) {
	h := newHarness(t, &stepSampler{})

	st, err := h.sess.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCapturing, st)

	st, err = h.sess.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st)
	h.waitStopped(t)
	assert.False(t, h.sess.Running())
}

func TestStartWaitsForFinishingRun(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.PollIntervalMs = 1
	cfg.ShowPreview = false

	samplers := []*stepSampler{{endWithCancel: true}, {}}
	var opened atomic.Int32
	var stops atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	sess, err := New(Options{
		Config: cfg,
		NewSampler: func(input.Chord, input.Chord) (input.Sampler, error) {
			return samplers[opened.Add(1)-1], nil
		},
		Grabber: screenGrabber{},
		Status:  &statusLog{},
		OnStopped: func(error) {
			if stops.Add(1) == 1 {
				close(entered)
				<-release
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not stop")
	}
	assert.False(t, sess.Running(), "a finishing run is not running")

	started := make(chan error, 1)
	go func() { started <- sess.Start(context.Background()) }()
	select {
	case err := <-started:
		t.Fatalf("Start returned before the previous run finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the previous run finished")
	}
	assert.True(t, sess.Running())
	assert.Equal(t, StateCapturing, sess.State())
	assert.Equal(t, int32(2), opened.Load())
	assert.Equal(t, int32(1), stops.Load(), "old run must not report the new run as stopped")

	sess.Stop()
	assert.Equal(t, int32(2), stops.Load())
	assert.False(t, sess.Running())
}
