package gui

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"quick-capture/src/capture"
	"quick-capture/src/config"
	"quick-capture/src/preview"
	"quick-capture/src/session"
	"quick-capture/src/store"
)

const windowTitle = "QuickCapture"

// Window is the desktop shell around one capture session. All widget
// mutations happen on the fyne thread; the capture loop reaches the window
// only through Report, Publish and Hide, which marshal with fyne.Do.
type Window struct {
	app  fyne.App
	win  fyne.Window
	cfg  *config.Config
	sess *session.Session
	ctx  context.Context

	outputEntry  *widget.Entry
	formatSelect *widget.Select
	previewCheck *widget.Check
	startButton  *widget.Button
	statusLabel  *widget.Label
	previewImage *canvas.Image

	// Preview frames are coalesced: only the newest one is drawn.
	frameMu      sync.Mutex
	frame        image.Image
	framePending bool
}

// New builds the window and its session. opts.Config, Status, Preview and
// the start/stop callbacks are filled in by the window.
func New(ctx context.Context, a fyne.App, cfg *config.Config, opts session.Options) (*Window, error) {
	w := &Window{app: a, cfg: cfg, ctx: ctx}

	opts.Config = cfg
	opts.Status = capture.MultiStatus{capture.LogStatus{}, w, opts.Status}
	opts.Preview = w
	opts.OnStarted = w.onStarted
	opts.OnStopped = w.onStopped
	sess, err := session.New(opts)
	if err != nil {
		return nil, err
	}
	w.sess = sess

	w.win = a.NewWindow(windowTitle)
	w.build()
	w.win.SetCloseIntercept(func() {
		w.sess.Stop()
		w.win.Close()
	})
	return w, nil
}

// Session returns the session driven by this window.
func (w *Window) Session() *session.Session { return w.sess }

// ShowAndRun blocks until the window is closed.
func (w *Window) ShowAndRun() { w.win.ShowAndRun() }

func (w *Window) build() {
	w.outputEntry = widget.NewEntry()
	w.outputEntry.SetText(w.cfg.OutputDir)
	w.outputEntry.SetPlaceHolder(config.DefaultOutputDir)

	w.formatSelect = widget.NewSelect(store.SupportedExtensions(), nil)
	w.formatSelect.SetSelected(normalizeExt(w.cfg.FileExt))

	w.previewCheck = widget.NewCheck("Show preview", nil)
	w.previewCheck.SetChecked(w.cfg.ShowPreview)

	w.startButton = widget.NewButton("Start", w.onButton)
	w.statusLabel = widget.NewLabel("Idle")
	w.statusLabel.Wrapping = fyne.TextWrapWord

	w.previewImage = canvas.NewImageFromImage(nil)
	w.previewImage.FillMode = canvas.ImageFillContain
	w.previewImage.SetMinSize(previewSize(w.cfg))
	w.previewImage.Hide()

	form := widget.NewForm(
		widget.NewFormItem("Output folder", w.outputEntry),
		widget.NewFormItem("Format", w.formatSelect),
		widget.NewFormItem("", w.previewCheck),
	)
	w.win.SetContent(container.NewBorder(
		container.NewVBox(form, w.startButton),
		w.statusLabel,
		nil,
		nil,
		w.previewImage,
	))
}

func (w *Window) onButton() {
	if w.sess.Running() {
		w.startButton.Disable()
		go w.sess.Stop()
		return
	}
	if err := applyForm(w.cfg, w.outputEntry.Text, w.formatSelect.Selected, w.previewCheck.Checked); err != nil {
		w.statusLabel.SetText(err.Error())
		return
	}
	if err := w.sess.Start(w.ctx); err != nil {
		logrus.Errorf("Failed to start capture: %v", err)
		w.statusLabel.SetText("Error: " + err.Error())
	}
}

// applyForm copies the form values into cfg. It only runs while idle, so the
// session never sees a half-updated config.
func applyForm(cfg *config.Config, dir, ext string, showPreview bool) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("Choose an output folder")
	}
	if _, err := store.ResolveFormat(ext); err != nil {
		return err
	}
	cfg.OutputDir = dir
	cfg.FileExt = ext
	cfg.ShowPreview = showPreview
	return nil
}

func normalizeExt(ext string) string {
	if f, err := store.ResolveFormat(ext); err == nil {
		return f.Ext
	}
	return config.DefaultFileExt
}

func previewSize(cfg *config.Config) fyne.Size {
	width, height := cfg.PreviewMaxWidth, cfg.PreviewMaxHeight
	if width <= 0 {
		width = preview.DefaultMaxWidth
	}
	if height <= 0 {
		height = preview.DefaultMaxHeight
	}
	return fyne.NewSize(float32(width), float32(height))
}

func (w *Window) onStarted() {
	fyne.Do(func() { w.setRunning(true) })
}

func (w *Window) onStopped(error) {
	fyne.Do(func() { w.setRunning(false) })
}

func (w *Window) setRunning(running bool) {
	w.startButton.Enable()
	if running {
		w.startButton.SetText("Stop")
		w.outputEntry.Disable()
		w.formatSelect.Disable()
		w.previewCheck.Disable()
		return
	}
	w.startButton.SetText("Start")
	w.outputEntry.Enable()
	w.formatSelect.Enable()
	w.previewCheck.Enable()
}

func (w *Window) Report(message string) {
	fyne.Do(func() { w.statusLabel.SetText(message) })
}

func (w *Window) Publish(img image.Image) {
	w.frameMu.Lock()
	w.frame = img
	if w.framePending {
		w.frameMu.Unlock()
		return
	}
	w.framePending = true
	w.frameMu.Unlock()

	fyne.Do(w.drawFrame)
}

func (w *Window) drawFrame() {
	w.frameMu.Lock()
	img := w.frame
	w.framePending = false
	w.frameMu.Unlock()
	if img == nil {
		return
	}
	w.previewImage.Image = img
	w.previewImage.Show()
	w.previewImage.Refresh()
}

func (w *Window) Hide() {
	w.frameMu.Lock()
	w.frame = nil
	w.frameMu.Unlock()
	fyne.Do(func() {
		w.previewImage.Image = nil
		w.previewImage.Hide()
	})
}

var (
	_ capture.StatusSink  = (*Window)(nil)
	_ capture.PreviewSink = (*Window)(nil)
)
