package clipboard

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

// Init initializes the system clipboard once per process.
func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// WriteImage places img on the clipboard as PNG. Writes are mutex-guarded to
// prevent corruption under parallel writes.
func WriteImage(img image.Image) error {
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode clipboard image: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtImage, buf.Bytes())
	return nil
}
