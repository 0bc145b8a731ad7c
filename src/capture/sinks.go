package capture

import (
	"image"

	"github.com/sirupsen/logrus"
)

// StatusSink receives human-readable status lines. Implementations that touch
// UI state must marshal onto their UI thread; Report is called from the loop
// goroutine.
type StatusSink interface {
	Report(message string)
}

// PreviewSink receives the latest pending frame. Delivery is best-effort:
// implementations may drop or coalesce frames.
type PreviewSink interface {
	Publish(img image.Image)
	Hide()
}

// StatusFunc adapts a plain function to StatusSink.
type StatusFunc func(message string)

func (f StatusFunc) Report(message string) {
	if f != nil {
		f(message)
	}
}

// LogStatus mirrors status lines into the diagnostic log.
type LogStatus struct{}

func (LogStatus) Report(message string) {
	logrus.Infof("status: %s", message)
}

// MultiStatus fans a status line out to every non-nil sink.
type MultiStatus []StatusSink

func (m MultiStatus) Report(message string) {
	for _, s := range m {
		if s != nil {
			s.Report(message)
		}
	}
}

type nopPreview struct{}

func (nopPreview) Publish(image.Image) {}
func (nopPreview) Hide()               {}
