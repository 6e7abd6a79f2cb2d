// Package ledger persists submitted groups as day-rotated, append-only text
// files and rebuilds the set of live groups from them.
//
// Day files are the source of truth. The active snapshot is a cache that is
// rewritten in full on every run.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"skysurvey/internal/config"
	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

type Ledger struct {
	dir      string
	prefix   string
	suffix   string
	snapshot string
	siteTag  string

	now func() time.Time
	log logx.Logger
}

func New(cfg config.SurveyConfig, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{
		dir:      cfg.LogDir,
		prefix:   cfg.LedgerPrefix,
		suffix:   cfg.LedgerSuffix,
		snapshot: cfg.Path(cfg.ActiveSnapshot),
		siteTag:  cfg.SiteTag,
		now:      time.Now,
		log:      log.With(logx.String("comp", "ledger")),
	}
}

// SetClock replaces the wall clock (tests).
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// DayPath is the ledger file for the UTC day of t.
func (l *Ledger) DayPath(t time.Time) string {
	return filepath.Join(l.dir, l.prefix+t.UTC().Format("2006-01-02")+l.suffix)
}

// DayPaths returns yesterday's and today's ledgers relative to now.
func (l *Ledger) DayPaths(now time.Time) (yesterday, today string) {
	return l.DayPath(now.AddDate(0, 0, -1)), l.DayPath(now)
}

func (l *Ledger) SnapshotPath() string { return l.snapshot }

func (l *Ledger) writeHeader(w io.Writer, started time.Time) error {
	_, err := fmt.Fprintf(w, "# Log of Requested Observation Groups\n#\n# Log started: %s\n# Running at %s\n#\n%s\n",
		started.UTC().Format(TimestampLayout), l.siteTag, columnHeader)
	return err
}

// Append writes one row per exposure block of g to today's ledger, creating
// the file with its header when needed.
func (l *Ledger) Append(g survey.ObservationGroup) error {
	now := l.now()
	path := l.DayPath(now)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	created := err == nil
	if errors.Is(err, fs.ErrExist) {
		f, err = os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	w := bufio.NewWriter(f)
	if created {
		if err := l.writeHeader(w, now); err != nil {
			_ = f.Close()
			return err
		}
		l.log.Info("ledger started", logx.String("path", path))
	}
	for _, r := range Records(g) {
		if _, err := w.WriteString(r.Format() + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	return f.Close()
}

// RewriteActiveSnapshot replaces the snapshot with the given groups, ordered
// by field name. The file is swapped in with a rename.
func (l *Ledger) RewriteActiveSnapshot(active map[string]survey.ObservationGroup) error {
	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	sort.Strings(names)

	dir := filepath.Dir(l.snapshot)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.snapshot)+".*")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	w := bufio.NewWriter(tmp)
	if err := l.writeHeader(w, l.now()); err != nil {
		cleanup()
		return err
	}
	for _, name := range names {
		for _, r := range Records(active[name]) {
			if _, err := w.WriteString(r.Format() + "\n"); err != nil {
				cleanup()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		l.log.Debug("snapshot chmod failed", logx.Err(err))
	}
	if err := os.Rename(tmp.Name(), l.snapshot); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: %w", err)
	}
	l.log.Debug("active snapshot rewritten", logx.String("path", l.snapshot), logx.Int("groups", len(names)))
	return nil
}
