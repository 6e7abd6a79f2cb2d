package survey

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCadence = errors.New("cadence must be > 0")
	ErrNoExposures    = errors.New("field has no exposures")
	ErrEmptyGroup     = errors.New("group has no sub-requests")
)

const DefaultGrace = 10 * time.Minute

// DurationFunc returns the time needed to take count exposures of exptime seconds.
type DurationFunc func(count int, exptime float64) time.Duration

// Equipment is what the tiler needs to know about the camera.
type Equipment struct {
	InstrumentClass string
	InstrumentName  string
	Duration        DurationFunc
}

// Tiler expands a field into a compound request covering [now+grace, now+grace+ttl).
type Tiler struct {
	Now           func() time.Time
	Grace         time.Duration
	RequestWindow time.Duration // padding added to every sub-request
	MaxAirmass    float64
	ProposalID    string
	UserID        string
	IDs           *GroupIDGenerator
}

func (t *Tiler) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

func (t *Tiler) Tile(field FieldSpec, eq Equipment) (ObservationGroup, error) {
	if field.Cadence <= 0 || field.CadenceDuration() <= 0 {
		return ObservationGroup{}, fmt.Errorf("%s: %w (got %v)", field.Name, ErrInvalidCadence, field.Cadence)
	}
	if len(field.Exposures) == 0 {
		return ObservationGroup{}, fmt.Errorf("%s: %w", field.Name, ErrNoExposures)
	}
	if eq.Duration == nil {
		return ObservationGroup{}, fmt.Errorf("%s: no duration function for %s", field.Name, eq.InstrumentName)
	}

	now := t.now()
	ids := t.IDs
	if ids == nil {
		ids = NewGroupIDGenerator("")
	}
	grace := t.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	airmass := t.MaxAirmass
	if airmass <= 0 {
		airmass = 2.0
	}

	g := ObservationGroup{
		GroupID:         ids.Next(now),
		Field:           field,
		TelescopeClass:  field.TelescopeClass(),
		InstrumentClass: eq.InstrumentClass,
		InstrumentName:  eq.InstrumentName,
		ProposalID:      t.ProposalID,
		UserID:          t.UserID,
		MaxAirmass:      airmass,
	}
	g.Submit = now.Add(grace)
	g.Expire = g.Submit.Add(field.TTLDuration())

	var span time.Duration
	for _, b := range field.Exposures {
		span += eq.Duration(b.Count, b.ExposureTime)
	}
	span += t.RequestWindow
	cadence := field.CadenceDuration()

	for start := g.Submit; start.Before(g.Expire); {
		end := start.Add(span)
		blocks := make([]ExposureBlock, len(field.Exposures))
		copy(blocks, field.Exposures)
		g.SubRequests = append(g.SubRequests, SubRequest{
			Window: Window{Start: start, End: end},
			Blocks: blocks,
		})
		start = end.Add(cadence)
	}
	if len(g.SubRequests) == 0 {
		return ObservationGroup{}, fmt.Errorf("%s: %w (ttl %v days)", field.Name, ErrEmptyGroup, field.TTL)
	}
	return g, nil
}
