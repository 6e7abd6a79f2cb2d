// Package survey turns catalog fields into compound observation requests and
// classifies the scheduler's replies.
package survey

import (
	"strconv"
	"strings"
	"time"
)

// ExposureBlock is one exposure-time × count unit (a "molecule").
type ExposureBlock struct {
	ExposureTime float64 // seconds
	Count        int
}

// FieldSpec is a target as defined in the catalog. It is never mutated after
// loading; submission results live on ObservationGroup.
type FieldSpec struct {
	Name string

	// RA and Dec are kept as written in the catalog (sexagesimal).
	RA  string
	Dec string

	RADeg  float64
	DecDeg float64

	Site        string
	Observatory string
	Telescope   string
	Instrument  string
	Filter      string

	Exposures []ExposureBlock

	Cadence float64 // days
	TTL     float64 // days
}

// TelescopeClass strips the enclosure letter from the telescope name ("1m0a" -> "1m0").
func (f FieldSpec) TelescopeClass() string {
	return strings.ReplaceAll(f.Telescope, "a", "")
}

func (f FieldSpec) CadenceDuration() time.Duration { return days(f.Cadence) }
func (f FieldSpec) TTLDuration() time.Duration     { return days(f.TTL) }

func days(d float64) time.Duration {
	return time.Duration(d * 24 * float64(time.Hour))
}

type Status string

const (
	StatusUnset          Status = ""
	StatusSimOK          Status = "SIM_OK"
	StatusOK             Status = "OK"
	StatusError          Status = "ERROR"
	StatusWarning        Status = "WARNING"
	StatusTransportError Status = "TRANSPORT_ERROR"
)

// IsOK reports whether the status carries the success marker.
func (s Status) IsOK() bool { return strings.Contains(string(s), "OK") }

func (s Status) String() string {
	if s == StatusUnset {
		return "UNSET"
	}
	return string(s)
}

type Window struct {
	Start time.Time
	End   time.Time
}

// SubRequest is one scheduling window of a group.
type SubRequest struct {
	Window Window
	Blocks []ExposureBlock
}

// ObservationGroup is the result of tiling one field for one run, plus the
// outcome of its submission.
type ObservationGroup struct {
	GroupID string
	Field   FieldSpec

	TelescopeClass  string
	InstrumentClass string
	InstrumentName  string

	ProposalID string
	UserID     string
	MaxAirmass float64

	Submit time.Time
	Expire time.Time

	SubRequests []SubRequest

	Status        Status
	Response      string
	RequestNumber string
}

// Live reports whether the group still blocks resubmission at now.
// Expiry is strict: a group expiring exactly at now is not live.
func (g ObservationGroup) Live(now time.Time) bool {
	return g.Status.IsOK() && g.Expire.After(now)
}

// Report is the human-readable status column written to the ledger.
func (g ObservationGroup) Report() string {
	if g.Status.IsOK() {
		return string(g.Status)
	}
	resp := strings.Join(strings.Fields(g.Response), " ")
	return g.Status.String() + ": " + resp
}

// FormatFloat renders f the way the ledger has always written numbers:
// shortest representation, with at least one decimal digit ("30" -> "30.0").
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
