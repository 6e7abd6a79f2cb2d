package logx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DayFileName returns the log file name for the UTC day of t.
func DayFileName(root string, t time.Time) string {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "skysurvey"
	}
	return root + "_" + t.UTC().Format("2006-01-02") + ".log"
}

// dayFile is an io.Writer that appends to <dir>/<root>_<UTC date>.log and
// switches to a new file when the UTC day changes between writes.
type dayFile struct {
	dir  string
	root string
	now  func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func newDayFile(dir, root string, now func() time.Time) (*dayFile, error) {
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &dayFile{dir: dir, root: root, now: now}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateLocked(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dayFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateLocked(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

// Path reports the file currently written to.
func (d *dayFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ""
	}
	return d.file.Name()
}

func (d *dayFile) rotateLocked() error {
	now := d.now().UTC()
	day := now.Format("2006-01-02")
	if d.file != nil && d.day == day {
		return nil
	}
	path := filepath.Join(d.dir, DayFileName(d.root, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open day log %q: %w", path, err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = f
	d.day = day
	return nil
}

func (d *dayFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
