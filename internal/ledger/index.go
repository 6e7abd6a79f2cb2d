package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

// LoadActive rebuilds the live groups from the ledgers in paths.
//
// Files are scanned in the given order and rows are folded by field name: a
// row with the group id already held for that field adds an exposure block,
// any other group id replaces the held record. Liveness is judged after the
// fold, so a later failed submission hides an earlier success. Missing files
// are skipped. Malformed rows are counted and skipped.
func LoadActive(paths []string, prefix string, now time.Time, log logx.Logger) (map[string]survey.ObservationGroup, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	latest := map[string]survey.ObservationGroup{}
	for _, p := range paths {
		n, bad, err := scanFile(p, prefix, latest)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("ledger absent", logx.String("path", p))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger %s: %w", p, err)
		}
		if bad > 0 {
			log.Debug("malformed ledger rows skipped", logx.String("path", p), logx.Int("rows", bad))
		}
		log.Debug("ledger scanned", logx.String("path", p), logx.Int("rows", n))
	}

	active := make(map[string]survey.ObservationGroup, len(latest))
	for name, g := range latest {
		if g.Live(now) {
			active[name] = g
		}
	}
	return active, nil
}

func scanFile(path, prefix string, into map[string]survey.ObservationGroup) (rows, bad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		r, perr := ParseRecord(line)
		if perr != nil {
			bad++
			continue
		}
		rows++
		if cur, ok := into[r.FieldName]; ok && cur.GroupID == r.GroupID {
			cur.Field.Exposures = append(cur.Field.Exposures, r.Block)
			into[r.FieldName] = cur
			continue
		}
		into[r.FieldName] = r.Group()
	}
	return rows, bad, sc.Err()
}
