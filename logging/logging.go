package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const (
	defaultMaxSize = 2 * 1024 * 1024 // 2MB
	defaultBackups = 1
)

type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
	backups int
}

// Setup sends the standard logger to stdout and a rotating file at logPath.
func Setup(logPath string, maxSize int64, backups int) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, maxSize, backups)
	if err != nil {
		return nil, err
	}

	multi := io.MultiWriter(os.Stdout, rw)
	log.SetOutput(multi)

	return rw, nil
}

func NewRotatingWriter(logPath string, maxSize int64, backups int) (*RotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if backups <= 0 {
		backups = defaultBackups
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, _ := f.Stat()
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	rw := &RotatingWriter{
		file:    f,
		path:    logPath,
		size:    size,
		maxSize: maxSize,
		backups: backups,
	}

	// Rotate right away if a previous run left an oversized file
	if size > maxSize {
		rw.rotate()
	}

	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func backupName(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}

// rotate shifts path.N-1 to path.N down to path -> path.1; the oldest
// backup falls off.
func (w *RotatingWriter) rotate() {
	w.file.Close()

	os.Remove(backupName(w.path, w.backups))
	for i := w.backups - 1; i >= 1; i-- {
		os.Rename(backupName(w.path, i), backupName(w.path, i+1))
	}
	os.Rename(w.path, backupName(w.path, 1))

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
