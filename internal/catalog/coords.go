package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RAToDegrees converts "HH:MM:SS.s" to decimal degrees.
func RAToDegrees(ra string) (float64, error) {
	neg, h, m, s, err := splitSexagesimal(ra)
	if err != nil {
		return 0, fmt.Errorf("ra %q: %w", ra, err)
	}
	if neg || h >= 24 || m >= 60 || s >= 60 {
		return 0, fmt.Errorf("ra %q: out of range", ra)
	}
	return 15 * (h + m/60 + s/3600), nil
}

// DecToDegrees converts "±DD:MM:SS.s" to decimal degrees. The sign applies to
// the whole value, so "-00:30:00" is -0.5.
func DecToDegrees(dec string) (float64, error) {
	neg, d, m, s, err := splitSexagesimal(dec)
	if err != nil {
		return 0, fmt.Errorf("dec %q: %w", dec, err)
	}
	if d > 90 || m >= 60 || s >= 60 {
		return 0, fmt.Errorf("dec %q: out of range", dec)
	}
	v := d + m/60 + s/3600
	if v > 90 {
		return 0, fmt.Errorf("dec %q: out of range", dec)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func splitSexagesimal(raw string) (neg bool, a, b, c float64, err error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return false, 0, 0, 0, fmt.Errorf("want three colon-separated parts")
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, perr := strconv.ParseFloat(p, 64)
		if perr != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false, 0, 0, 0, fmt.Errorf("bad component %q", p)
		}
		vals[i] = v
	}
	return neg, vals[0], vals[1], vals[2], nil
}
