package store

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// indexWidth is the zero-padding applied to file numbers.
const indexWidth = 6

type Options struct {
	Dir     string
	Format  Format
	Quality int
}

// Saved describes one written file.
type Saved struct {
	Path  string
	Index int
	Size  int64
}

// Writer persists frames as <dir>/<zero-padded index>.<ext>. It is owned by a
// single capture loop and is not safe for concurrent use.
type Writer struct {
	dir     string
	format  Format
	quality int
	next    int
}

// Open creates the output directory if needed and seeds the counter from the
// number of existing files with the configured extension.
func Open(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if opts.Format.encode == nil {
		return nil, fmt.Errorf("%w: no format configured", ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", opts.Dir, err)
	}
	n, err := CountExisting(opts.Dir, opts.Format.Ext)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Store: %s holds %d .%s files, numbering continues from %d", opts.Dir, n, opts.Format.Ext, n)
	return &Writer{dir: opts.Dir, format: opts.Format, quality: opts.Quality, next: n}, nil
}

// CountExisting returns the number of regular files named *.<ext> in dir.
// Symlinks count when they resolve to a regular file.
func CountExisting(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	suffix := "." + ext
	count := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) != suffix {
			continue
		}
		if e.Type().IsRegular() {
			count++
			continue
		}
		if e.Type()&os.ModeSymlink != 0 {
			if st, err := os.Stat(filepath.Join(dir, e.Name())); err == nil && st.Mode().IsRegular() {
				count++
			}
		}
	}
	return count, nil
}

func (w *Writer) Dir() string    { return w.dir }
func (w *Writer) Format() Format { return w.format }

// Next returns the index the next successful save will try first.
func (w *Writer) Next() int { return w.next }

func (w *Writer) pathFor(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%0*d.%s", indexWidth, index, w.format.Ext))
}

// Save encodes img to the next free numbered file. The counter advances only
// after the file is in place, and existing files are never overwritten.
func (w *Writer) Save(img image.Image) (Saved, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}

	index := w.next
	path := w.pathFor(index)
	for {
		_, err := os.Lstat(path)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return Saved{}, fmt.Errorf("failed to check %s: %w", path, err)
		}
		index++
		path = w.pathFor(index)
	}

	size, err := w.writeAtomic(path, img)
	if err != nil {
		return Saved{}, err
	}
	w.next = index + 1
	return Saved{Path: path, Index: index, Size: size}, nil
}

func (w *Writer) writeAtomic(path string, img image.Image) (int64, error) {
	tmp, err := os.CreateTemp(w.dir, ".capture-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file in %s: %w", w.dir, err)
	}
	tmpName := tmp.Name()

	var result *multierror.Error
	bw := bufio.NewWriter(tmp)
	if err := w.format.Encode(bw, img, w.quality); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to encode %s: %w", w.format.Ext, err))
	} else if err := bw.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to write %s: %w", tmpName, err))
	}
	if err := tmp.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close %s: %w", tmpName, err))
	}
	if result.ErrorOrNil() == nil {
		if err := os.Rename(tmpName, path); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to move capture into %s: %w", path, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}

	// The file is in place, so a failed stat only loses the size.
	st, err := os.Stat(path)
	if err != nil {
		logrus.Warnf("Store: saved %s but could not stat it: %v", path, err)
		return 0, nil
	}
	return st.Size(), nil
}
