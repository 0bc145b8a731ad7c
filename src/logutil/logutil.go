package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	logFileName  = "quick_capture_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

// Setup configures the global logrus logger. With file logging enabled, output
// goes to a size-rotated log file (10MB, max 3 archives) next to the working
// directory. Otherwise diagnostic output is discarded so stdout stays clean.
func Setup(enableFileLogging bool, level string) {
	logrus.SetLevel(ParseLevel(level))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	logrus.SetReportCaller(true)

	if !enableFileLogging {
		logrus.SetOutput(io.Discard)
		return
	}
	w, err := OpenRotating(logFileName, maxSizeBytes, maxArchives)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		logrus.SetOutput(io.Discard)
		return
	}
	logrus.SetOutput(w)
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// RotatingWriter appends to a file and rotates it to .1, .2, ... once it
// would grow past maxSize.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	archives int
	f        *os.File
}

func OpenRotating(path string, maxSize int64, archives int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: maxSize, archives: archives}
	w.rotateIfNeeded(0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.maxSize {
		_ = w.f.Close()
		w.rotateIfNeeded(int64(len(p)))
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *RotatingWriter) rotateIfNeeded(incoming int64) {
	st, err := os.Stat(w.path)
	if err != nil || st.Size()+incoming <= w.maxSize {
		return
	}
	// Oldest archive is discarded.
	_ = os.Remove(w.archiveName(w.archives))
	for i := w.archives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	_ = os.Rename(w.path, w.archiveName(1))
}

func (w *RotatingWriter) archiveName(n int) string {
	return filepath.Clean(fmt.Sprintf("%s.%d", w.path, n))
}
