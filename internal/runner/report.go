package runner

import (
	"fmt"
	"strings"
	"time"

	"skysurvey/internal/survey"
)

// Report summarizes one run.
type Report struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Simulated bool

	// Submitted holds groups that were accepted (status contains OK).
	Submitted []survey.ObservationGroup
	// Failed holds groups the scheduler rejected or never received.
	Failed []survey.ObservationGroup
	// Skipped lists fields that already had a live group.
	Skipped []string
	// Invalid lists fields that could not be tiled.
	Invalid []string

	Err error
}

// Text renders the report for operators.
func (r Report) Text() string {
	var b strings.Builder
	mode := ""
	if r.Simulated {
		mode = " (simulation)"
	}
	fmt.Fprintf(&b, "skysurvey run %s%s\n", r.RunID, mode)
	if !r.Finished.IsZero() {
		fmt.Fprintf(&b, "finished %s in %s\n", r.Finished.UTC().Format(time.RFC3339), r.Finished.Sub(r.Started).Round(time.Second))
	}

	fmt.Fprintf(&b, "submitted: %d\n", len(r.Submitted))
	for _, g := range r.Submitted {
		fmt.Fprintf(&b, "  %s %s %s\n", g.Field.Name, g.GroupID, g.Report())
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "failed: %d\n", len(r.Failed))
		for _, g := range r.Failed {
			fmt.Fprintf(&b, "  %s %s %s\n", g.Field.Name, g.GroupID, g.Report())
		}
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "still active: %s\n", strings.Join(r.Skipped, ", "))
	}
	if len(r.Invalid) > 0 {
		fmt.Fprintf(&b, "invalid: %s\n", strings.Join(r.Invalid, ", "))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", r.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}
