// Package catalog reads the survey target list.
//
// The file starts with a '#' header line. Every other non-blank, non-comment
// line describes one field:
//
//	name ra dec site observatory telescope instrument filter exptimes counts cadence [ttl]
//
// exptimes and counts are comma-separated lists of equal length; cadence and
// ttl are in days.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"skysurvey/internal/survey"
)

var (
	ErrCatalogMissing = errors.New("target list not found")
	ErrCatalogHeader  = errors.New("target list has no '#' header line")
)

const minColumns = 11

// LineError reports a malformed catalog line.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Defaults fills values the catalog may omit.
type Defaults struct {
	TTL float64 // days
}

// Load parses the target list at path. Fields are returned in file order;
// when a name repeats, the later line replaces the earlier one in place.
func Load(path string, def Defaults) ([]survey.FieldSpec, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCatalogMissing, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path, def)
}

func Parse(r io.Reader, name string, def Defaults) ([]survey.FieldSpec, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		fields []survey.FieldSpec
		index  = map[string]int{}
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if lineNo == 1 {
			if !strings.HasPrefix(line, "#") {
				return nil, fmt.Errorf("%w: %s", ErrCatalogHeader, name)
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec, err := parseLine(line, def)
		if err != nil {
			return nil, &LineError{Path: name, Line: lineNo, Err: err}
		}
		if i, dup := index[spec.Name]; dup {
			fields[i] = spec
			continue
		}
		index[spec.Name] = len(fields)
		fields = append(fields, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if lineNo == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCatalogHeader, name)
	}
	return fields, nil
}

func parseLine(line string, def Defaults) (survey.FieldSpec, error) {
	cols := strings.Fields(line)
	if len(cols) < minColumns || len(cols) > minColumns+1 {
		return survey.FieldSpec{}, fmt.Errorf("want %d or %d columns, got %d", minColumns, minColumns+1, len(cols))
	}

	spec := survey.FieldSpec{
		Name:        cols[0],
		RA:          cols[1],
		Dec:         cols[2],
		Site:        cols[3],
		Observatory: cols[4],
		Telescope:   cols[5],
		Instrument:  cols[6],
		Filter:      cols[7],
		TTL:         def.TTL,
	}

	var err error
	if spec.RADeg, err = RAToDegrees(spec.RA); err != nil {
		return spec, err
	}
	if spec.DecDeg, err = DecToDegrees(spec.Dec); err != nil {
		return spec, err
	}
	if spec.Exposures, err = parseExposures(cols[8], cols[9]); err != nil {
		return spec, err
	}
	if spec.Cadence, err = strconv.ParseFloat(cols[10], 64); err != nil {
		return spec, fmt.Errorf("cadence %q: %w", cols[10], err)
	}
	if !positive(spec.Cadence) {
		return spec, fmt.Errorf("cadence must be > 0 (got %v)", spec.Cadence)
	}
	if len(cols) > minColumns {
		if spec.TTL, err = strconv.ParseFloat(cols[11], 64); err != nil {
			return spec, fmt.Errorf("ttl %q: %w", cols[11], err)
		}
	}
	if !positive(spec.TTL) {
		return spec, fmt.Errorf("ttl must be > 0 (got %v)", spec.TTL)
	}
	return spec, nil
}

func parseExposures(times, counts string) ([]survey.ExposureBlock, error) {
	ts := strings.Split(times, ",")
	cs := strings.Split(counts, ",")
	if len(ts) != len(cs) {
		return nil, fmt.Errorf("%d exposure times but %d counts", len(ts), len(cs))
	}
	out := make([]survey.ExposureBlock, 0, len(ts))
	for i := range ts {
		exp, err := strconv.ParseFloat(ts[i], 64)
		if err != nil || !positive(exp) {
			return nil, fmt.Errorf("exposure time %q: must be a positive number", ts[i])
		}
		n, err := strconv.Atoi(cs[i])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("exposure count %q: must be a positive integer", cs[i])
		}
		out = append(out, survey.ExposureBlock{ExposureTime: exp, Count: n})
	}
	return out, nil
}

// positive rejects NaN and infinities along with values <= 0.
func positive(v float64) bool { return v > 0 && !math.IsInf(v, 1) }
