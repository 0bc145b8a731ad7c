package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"

	"quick-capture/src/capture"
	"quick-capture/src/clipboard"
	"quick-capture/src/config"
	"quick-capture/src/input"
	"quick-capture/src/screenshot"
	"quick-capture/src/store"
)

// State is the externally visible run state, as reported over IPC.
type State string

const (
	StateCapturing State = "capturing"
	StateIdle      State = "idle"
)

type SamplerFactory func(modifier, cancel input.Chord) (input.Sampler, error)

// ClipboardWriter receives each saved frame when clipboard copy is enabled.
type ClipboardWriter interface {
	Init() error
	WriteImage(img image.Image) error
}

type Options struct {
	Config     *config.Config
	NewSampler SamplerFactory
	Grabber    capture.Grabber
	Status     capture.StatusSink
	Preview    capture.PreviewSink
	Clipboard  ClipboardWriter
	// OnSaved runs on the loop goroutine after each successful write.
	OnSaved func(frame capture.Frame, saved store.Saved)
	// OnStarted runs on the caller's goroutine after a successful Start.
	OnStarted func()
	// OnStopped runs on the loop goroutine once a run has fully ended. A
	// Start issued meanwhile waits for it to return, so it must not call Start.
	OnStopped func(err error)
}

// Session owns at most one capture loop run at a time. Status sinks and
// callbacks are invoked without the session lock held.
type Session struct {
	opts   Options
	status capture.StatusSink

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	// stopping is set once the loop has returned while its stop callbacks
	// are still running.
	stopping bool
}

func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("Config is required")
	}
	if opts.NewSampler == nil {
		opts.NewSampler = input.NewSampler
	}
	if opts.Grabber == nil {
		opts.Grabber = screenshot.NewGrabber()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = systemClipboard{}
	}
	status := opts.Status
	if status == nil {
		status = capture.LogStatus{}
	}
	return &Session{opts: opts, status: status}, nil
}

// Running reports whether a run is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil && !s.stopping
}

func (s *Session) State() State {
	if s.Running() {
		return StateCapturing
	}
	return StateIdle
}

// Start opens the output directory and the input sampler and launches the
// capture loop. It is a no-op while a run is active. A run that is still
// finishing is waited for first.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	for s.done != nil {
		if !s.stopping {
			s.mu.Unlock()
			return nil
		}
		prev := s.done
		s.mu.Unlock()
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	r, err := s.prepare()
	if err != nil {
		s.mu.Unlock()
		s.report(r.notices)
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.report(r.notices)
	s.status.Report(fmt.Sprintf("Capture mode: hold %s and drag", r.modifier))
	if s.opts.OnStarted != nil {
		s.opts.OnStarted()
	}
	go s.run(runCtx, cancel, done, r.loop, r.sampler)
	return nil
}

type prepared struct {
	modifier input.Chord
	loop     *capture.Loop
	sampler  input.Sampler
	// notices are status lines produced while the lock was held.
	notices []string
}

func (s *Session) report(lines []string) {
	for _, line := range lines {
		s.status.Report(line)
	}
}

func (s *Session) prepare() (prepared, error) {
	cfg := s.opts.Config
	modifier, err := input.ParseChord(cfg.ModifierKey)
	if err != nil {
		return prepared{}, fmt.Errorf("invalid modifier key: %w", err)
	}
	cancelKey, err := input.ParseChord(cfg.CancelKey)
	if err != nil {
		return prepared{}, fmt.Errorf("invalid cancel key: %w", err)
	}
	format, err := cfg.Format()
	if err != nil {
		return prepared{}, err
	}

	writer, err := store.Open(store.Options{Dir: cfg.OutputDir, Format: format, Quality: cfg.JPEGQuality})
	if err != nil {
		return prepared{notices: []string{fmt.Sprintf("File save error: %v", err)}}, err
	}

	sampler, err := s.opts.NewSampler(modifier, cancelKey)
	if err != nil {
		return prepared{}, fmt.Errorf("failed to open input sampler: %w", err)
	}

	copyToClipboard, notice := s.clipboardHook()
	var notices []string
	if notice != "" {
		notices = append(notices, notice)
	}

	loop, err := capture.New(capture.Options{
		Interval:         cfg.PollInterval(),
		ShowPreview:      cfg.ShowPreview,
		PreviewMaxWidth:  cfg.PreviewMaxWidth,
		PreviewMaxHeight: cfg.PreviewMaxHeight,
		Sampler:          sampler,
		Grabber:          s.opts.Grabber,
		Writer:           writer,
		Status:           s.status,
		Preview:          s.opts.Preview,
		OnSaved:          chainSaved(copyToClipboard, s.opts.OnSaved),
	})
	if err != nil {
		_ = sampler.Close()
		return prepared{notices: notices}, err
	}
	return prepared{modifier: modifier, loop: loop, sampler: sampler, notices: notices}, nil
}

// Stop cancels the active run and waits for the loop goroutine to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Toggle stops a running session or starts an idle one and returns the new state.
func (s *Session) Toggle(ctx context.Context) (State, error) {
	if s.Running() {
		s.Stop()
		return StateIdle, nil
	}
	if err := s.Start(ctx); err != nil {
		return StateIdle, err
	}
	return StateCapturing, nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, loop *capture.Loop, sampler input.Sampler) {
	defer close(done)
	defer cancel()

	err := loop.Run(ctx)
	if cerr := sampler.Close(); cerr != nil {
		logrus.Warnf("Failed to close input sampler: %v", cerr)
	}

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.stopping = false
		s.mu.Unlock()
	}()

	st := loop.State()
	logrus.Infof("Capture run ended after %d ticks, %d saved: %v", st.Ticks, st.Saved, err)
	// A tick panic has already been reported by the loop.
	if !errors.Is(err, capture.ErrTickPanic) {
		s.status.Report("Stopped")
	}
	if s.opts.OnStopped != nil {
		s.opts.OnStopped(err)
	}
}

// clipboardHook returns the OnSaved callback for clipboard copy, or a notice
// when copying had to be disabled for this run.
func (s *Session) clipboardHook() (func(capture.Frame, store.Saved), string) {
	if !s.opts.Config.CopyToClipboard {
		return nil, ""
	}
	clip := s.opts.Clipboard
	if err := clip.Init(); err != nil {
		return nil, fmt.Sprintf("Clipboard unavailable, copying disabled: %v", err)
	}
	return func(frame capture.Frame, saved store.Saved) {
		if err := clip.WriteImage(frame.Image); err != nil {
			logrus.Warnf("Clipboard copy of %s failed: %v", saved.Path, err)
			s.status.Report(fmt.Sprintf("Clipboard error: %v", err))
		}
	}, ""
}

func chainSaved(hooks ...func(capture.Frame, store.Saved)) func(capture.Frame, store.Saved) {
	var active []func(capture.Frame, store.Saved)
	for _, h := range hooks {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(frame capture.Frame, saved store.Saved) {
		for _, h := range active {
			h(frame, saved)
		}
	}
}

type systemClipboard struct{}

func (systemClipboard) Init() error                      { return clipboard.Init() }
func (systemClipboard) WriteImage(img image.Image) error { return clipboard.WriteImage(img) }
