package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a single log file and shifts it into numbered
// backups (file.1, file.2, ...) whenever the next write would push it past
// the size cap. Safe for concurrent writers.
type RotatingWriter struct {
	path    string
	capB    int64
	backups int

	mu      sync.Mutex
	out     *os.File
	written int64
}

var _ io.WriteCloser = (*RotatingWriter)(nil)

func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	w := &RotatingWriter{
		path:    path,
		capB:    int64(maxSizeMB) << 20,
		backups: maxBackups,
	}
	if err := w.reopen(false); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		if err := w.reopen(false); err != nil {
			return 0, err
		}
	}
	if w.capB > 0 && w.written+int64(len(p)) > w.capB {
		if err := w.shift(); err != nil {
			return 0, err
		}
	}

	n, err := w.out.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out, w.written = nil, 0
	return err
}

// reopen opens the active file, creating parent directories as needed.
// With truncate set the file starts empty, otherwise writes append and the
// counter resumes from the current size.
func (w *RotatingWriter) reopen(truncate bool) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	out, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return err
	}
	w.out = out
	w.written = 0
	if !truncate {
		if info, err := out.Stat(); err == nil {
			w.written = info.Size()
		}
	}
	return nil
}

// shift closes the active file, pushes each backup one slot down (dropping
// the oldest), moves the active file into slot 1, and reopens empty. With
// no backup slots configured the active file is simply discarded.
func (w *RotatingWriter) shift() error {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}

	if w.backups == 0 {
		_ = os.Remove(w.path)
		return w.reopen(true)
	}
	for i := w.backups; i > 1; i-- {
		_ = os.Rename(w.backupPath(i-1), w.backupPath(i))
	}
	_ = os.Rename(w.path, w.backupPath(1))
	return w.reopen(true)
}

func (w *RotatingWriter) backupPath(i int) string {
	return fmt.Sprintf("%s.%d", w.path, i)
}
