package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"quick-capture/src/capture"
	"quick-capture/src/config"
	"quick-capture/src/session"
)

const (
	appTitle   = "QuickCapture"
	startTitle = "Start capture"
	stopTitle  = "Stop capture"
)

// Tray is the notification-area shell around one capture session. Status
// lines go to the tooltip.
type Tray struct {
	ctx    context.Context
	sess   *session.Session
	onQuit func()

	mu      sync.Mutex
	ready   bool
	tooltip string
	running bool
	toggle  *systray.MenuItem
}

func New(ctx context.Context, cfg *config.Config, opts session.Options, onQuit func()) (*Tray, error) {
	t := &Tray{ctx: ctx, onQuit: onQuit, tooltip: appTitle}
	opts.Config = cfg
	opts.Status = capture.MultiStatus{capture.LogStatus{}, t, opts.Status}
	opts.OnStarted = func() { t.setRunning(true) }
	opts.OnStopped = func(error) { t.setRunning(false) }
	sess, err := session.New(opts)
	if err != nil {
		return nil, err
	}
	t.sess = sess
	return t, nil
}

func (t *Tray) Session() *session.Session { return t.sess }

// Run blocks until Quit is chosen or Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() { systray.Quit() }

func (t *Tray) onReady() {
	systray.SetIcon(IconData())
	systray.SetTitle(appTitle)

	toggle := systray.AddMenuItem(startTitle, "Start or stop capture mode")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit QuickCapture")

	t.mu.Lock()
	t.ready = true
	t.toggle = toggle
	tooltip, running := t.tooltip, t.running
	t.mu.Unlock()
	systray.SetTooltip(tooltip)
	t.applyRunning(toggle, running)

	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				if _, err := t.sess.Toggle(t.ctx); err != nil {
					logrus.Errorf("Tray: toggle failed: %v", err)
					t.Report("Error: " + err.Error())
				}
			case <-quit.ClickedCh:
				systray.Quit()
				return
			case <-t.ctx.Done():
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.sess.Stop()
	if t.onQuit != nil {
		t.onQuit()
	}
}

// Report shows message in the tooltip.
func (t *Tray) Report(message string) {
	tooltip := tooltipFor(message)
	t.mu.Lock()
	t.tooltip = tooltip
	ready := t.ready
	t.mu.Unlock()
	if ready {
		systray.SetTooltip(tooltip)
	}
}

func (t *Tray) setRunning(running bool) {
	t.mu.Lock()
	t.running = running
	toggle := t.toggle
	t.mu.Unlock()
	if toggle != nil {
		t.applyRunning(toggle, running)
	}
}

func (t *Tray) applyRunning(item *systray.MenuItem, running bool) {
	if running {
		item.SetTitle(stopTitle)
		return
	}
	item.SetTitle(startTitle)
}

func tooltipFor(message string) string {
	if message == "" {
		return appTitle
	}
	return appTitle + ": " + message
}
