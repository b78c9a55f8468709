package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockPollInterval is how often a blocked StreamWriter rechecks the lock.
const lockPollInterval = 100 * time.Millisecond

// ErrLockHeld indicates the stream lock could not be acquired before the
// context expired.
var ErrLockHeld = errors.New("stream lock held by another writer")

// StreamWriter appends records to a CSV file as they are produced, so a
// partially completed run leaves a readable file behind. The header is
// created atomically (temp file + rename), a sibling .lock file provides
// cross-process mutual exclusion for the session, and every appended
// record is flushed and fsynced before Append returns.
type StreamWriter struct {
	path string
	lock *lockFile
	file *os.File
	w    *csv.Writer
}

// NewStreamWriter opens a streaming session on path with the given header
// columns. If the file does not exist it is created with just the header;
// an existing file is appended to as-is.
func NewStreamWriter(ctx context.Context, path string, columns []string) (*StreamWriter, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	lock := &lockFile{path: path + ".lock"}
	if err := lock.acquire(ctx); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeHeaderAtomic(path, columns); err != nil {
			lock.release()
			return nil, err
		}
	} else if err != nil {
		lock.release()
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		lock.release()
		return nil, err
	}

	return &StreamWriter{path: path, lock: lock, file: f, w: csv.NewWriter(f)}, nil
}

// Append writes one record and persists it to disk before returning.
func (s *StreamWriter) Append(record []string) error {
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close releases the lock and closes the file.
func (s *StreamWriter) Close() error {
	defer s.lock.release()
	return s.file.Close()
}

// writeHeaderAtomic creates the file with its header row via a temp file
// and rename, so readers never observe a headerless file.
func writeHeaderAtomic(path string, columns []string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// lockFile is a create-exclusive lock file. Acquisition polls until the
// competing holder releases or the context expires.
type lockFile struct {
	path string
	f    *os.File
}

func (l *lockFile) acquire(ctx context.Context) error {
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			fmt.Fprintf(f, "pid=%d\n", os.Getpid())
			l.f = f
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockHeld, l.path)
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *lockFile) release() {
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	_ = os.Remove(l.path)
}
