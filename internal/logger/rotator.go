package logger

import (
	"fmt"
	"os"
	"sync"
)

// Rotator is an io.Writer over a log file that rolls the file over once it
// would exceed a size limit, keeping at most maxBackups older files named
// file.1 (newest) to file.N.
type Rotator struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotator opens path for appending, creating it if needed. A maxSizeMB of
// zero disables rotation.
func NewRotator(path string, maxSizeMB int64, maxBackups int) (*Rotator, error) {
	r := &Rotator{path: path, maxBytes: maxSizeMB << 20, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			// Keep writing to whatever is open rather than dropping the line.
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
		if r.file == nil {
			if err := r.open(); err != nil {
				return 0, err
			}
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close closes the current file. A later Write reopens it.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Rotator) backup(i int) string {
	return fmt.Sprintf("%s.%d", r.path, i)
}

// rotate shifts file.N-1 -> file.N ... file -> file.1 and starts a new file.
// With no backups configured the current file is truncated.
func (r *Rotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	if r.maxBackups <= 0 {
		if err := os.Truncate(r.path, 0); err != nil {
			return err
		}
		return r.open()
	}
	for i := r.maxBackups - 1; i >= 1; i-- {
		if _, err := os.Stat(r.backup(i)); err == nil {
			if err := os.Rename(r.backup(i), r.backup(i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(r.path, r.backup(1)); err != nil {
		return err
	}
	return r.open()
}
