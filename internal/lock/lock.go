// Package lock implements the advisory run lock shared with cooperating
// observatory tools. The presence of the file is the lock; its content is the
// UTC time it was taken. There is no owner or expiry: a lock left behind by a
// crashed run must be removed by an operator.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrLockConflict = errors.New("lock conflict")

const TimestampLayout = "2006-01-02T15:04:05"

// ConflictError names the lock file that blocked the run.
type ConflictError struct {
	Name  string
	Path  string
	Since string // file content, if readable
}

func (e *ConflictError) Error() string {
	if e.Since != "" {
		return fmt.Sprintf("%v: %s present since %s", ErrLockConflict, e.Path, e.Since)
	}
	return fmt.Sprintf("%v: %s present", ErrLockConflict, e.Path)
}

func (e *ConflictError) Unwrap() error { return ErrLockConflict }

type Lock struct {
	dir  string
	name string
	now  func() time.Time
}

func New(dir, name string) *Lock {
	return &Lock{dir: dir, name: name, now: time.Now}
}

func (l *Lock) Path() string { return filepath.Join(l.dir, l.name) }

// Check fails with a *ConflictError for the first named lock that exists.
func (l *Lock) Check(names ...string) error {
	for _, name := range names {
		p := filepath.Join(l.dir, name)
		_, err := os.Stat(p)
		if err == nil {
			return conflict(name, p)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check lock %s: %w", p, err)
		}
	}
	return nil
}

func conflict(name, path string) *ConflictError {
	since, _ := readStamp(path)
	return &ConflictError{Name: name, Path: path, Since: since}
}

// Acquire creates the lock file. An existing file is reported as a conflict.
func (l *Lock) Acquire() error {
	p := l.Path()
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return conflict(l.name, p)
	}
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	_, werr := f.WriteString(l.now().UTC().Format(TimestampLayout))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(p)
		return fmt.Errorf("acquire lock: %w", err)
	}
	return nil
}

// Release removes the lock file; a missing file is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Read returns the timestamp stored in the lock file.
func (l *Lock) Read() (string, error) { return readStamp(l.Path()) }

func readStamp(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
