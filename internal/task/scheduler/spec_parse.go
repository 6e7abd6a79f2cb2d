package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TriggerKind describes the normalized kind of a schedule string.
type TriggerKind int

const (
	TriggerCron TriggerKind = iota
	TriggerDaily
	TriggerInterval
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerCron:
		return "cron"
	case TriggerDaily:
		return "daily"
	case TriggerInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// Trigger represents a parsed schedule string.
//
// Supported forms:
//   - Daily time of day: "00:10", "23:45" (scheduler timezone)
//   - Cron: "*/5 * * * *", "0 30 0 * * *" (optional seconds), "@daily", "@every 6h"
//   - Interval duration: "6h", "90m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Trigger struct {
	Kind   TriggerKind
	Cron   string // cron expression for TriggerCron and TriggerDaily
	Every  time.Duration
	Hour   int
	Minute int
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseTrigger parses a schedule string.
func ParseTrigger(raw string) (Trigger, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Trigger{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Trigger{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return Trigger{Kind: TriggerCron, Cron: expr}, nil
	}
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			return parseInterval(strings.TrimSpace(s[len(p):]))
		}
	}

	// any whitespace or leading '@' => cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return Trigger{Kind: TriggerCron, Cron: s}, nil
	}

	if reHHMM.MatchString(s) {
		h, m, err := parseHHMM(s)
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Kind: TriggerDaily, Cron: fmt.Sprintf("%d %d * * *", m, h), Hour: h, Minute: m}, nil
	}

	if t, err := parseInterval(s); err == nil {
		return t, nil
	}

	return Trigger{}, fmt.Errorf(
		"invalid schedule %q (use HH:MM like '00:10', cron like '10 0 * * *', or duration like '6h')",
		raw,
	)
}

func parseInterval(v string) (Trigger, error) {
	if v == "" {
		return Trigger{}, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid interval %q (use a Go duration like '6h' or '90m')", v)
	}
	if d <= 0 {
		return Trigger{}, fmt.Errorf("interval must be > 0")
	}
	return Trigger{Kind: TriggerInterval, Every: d}, nil
}

func parseHHMM(v string) (int, int, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	if mm > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return hh, mm, nil
}
