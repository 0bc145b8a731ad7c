package gui

import (
	"context"
	"errors"
	"testing"

	"fyne.io/fyne/v2/test"

	"quick-capture/src/config"
	"quick-capture/src/input"
	"quick-capture/src/preview"
	"quick-capture/src/session"
)

func sessionOptions() session.Options {
	return session.Options{
		NewSampler: func(input.Chord, input.Chord) (input.Sampler, error) {
			return nil, errors.New("no input in tests")
		},
	}
}

func TestApplyForm(t *testing.T) {
	cfg := config.Default()
	if err := applyForm(cfg, "  shots ", "png", false); err != nil {
		t.Fatalf("applyForm: %v", err)
	}
	if cfg.OutputDir != "shots" || cfg.FileExt != "png" || cfg.ShowPreview {
		t.Errorf("unexpected config after applyForm: %+v", cfg)
	}

	if err := applyForm(cfg, " ", "png", true); err == nil {
		t.Error("expected error for empty folder")
	}
	if err := applyForm(cfg, "shots", "gif", true); err == nil {
		t.Error("expected error for unsupported format")
	}
	if cfg.FileExt != "png" {
		t.Errorf("rejected form must not change config, got %q", cfg.FileExt)
	}
}

func TestNormalizeExt(t *testing.T) {
	tests := map[string]string{"JPEG": "jpg", ".png": "png", "tiff": config.DefaultFileExt}
	for in, want := range tests {
		if got := normalizeExt(in); got != want {
			t.Errorf("normalizeExt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPreviewSizeDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.PreviewMaxWidth = 0
	size := previewSize(cfg)
	if size.Width != preview.DefaultMaxWidth || size.Height != float32(cfg.PreviewMaxHeight) {
		t.Errorf("unexpected size %v", size)
	}
}

func TestWindowControls(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	cfg := config.Default()
	cfg.FileExt = "jpeg"
	w, err := New(context.Background(), a, cfg, sessionOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Session().Running() {
		t.Fatal("new window must be idle")
	}
	if w.formatSelect.Selected != "jpg" {
		t.Errorf("expected jpg selected, got %q", w.formatSelect.Selected)
	}
	if w.startButton.Text != "Start" {
		t.Errorf("expected Start button, got %q", w.startButton.Text)
	}

	w.setRunning(true)
	if w.startButton.Text != "Stop" || !w.outputEntry.Disabled() {
		t.Error("running state must show Stop and lock the form")
	}
	w.setRunning(false)
	if w.startButton.Text != "Start" || w.outputEntry.Disabled() {
		t.Error("idle state must show Start and unlock the form")
	}
}
