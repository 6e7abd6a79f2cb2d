// Package instrument knows the exposure overheads of the network cameras.
package instrument

import (
	"strings"
	"time"

	"skysurvey/internal/config"
)

const (
	SinistroClass = "1M0-SCICAM-SINISTRO"

	defaultReadout     = 37.0
	defaultPerExposure = 2.0
	defaultSetup       = 90.0
)

// Instrument describes one camera. Overheads are in seconds.
type Instrument struct {
	Class       string
	Name        string
	Readout     float64
	PerExposure float64
	Setup       float64 // slew + acquisition + instrument config, paid once per exposure block
}

// GroupDuration is the wall time of one exposure block: setup plus count
// exposures of exptime seconds. A request with several blocks pays the setup
// for each of them.
func (i Instrument) GroupDuration(count int, exptime float64) time.Duration {
	sec := i.Setup + float64(count)*(exptime+i.Readout+i.PerExposure)
	return time.Duration(sec * float64(time.Second))
}

// Table resolves catalog instrument names. Unknown names get the 1m Sinistro
// defaults.
type Table struct {
	overrides map[string]Instrument
}

func NewTable(cfg map[string]config.InstrumentConfig) *Table {
	t := &Table{overrides: make(map[string]Instrument, len(cfg))}
	for key, ic := range cfg {
		name := ic.Name
		if strings.TrimSpace(name) == "" {
			name = strings.ToUpper(key)
		}
		t.overrides[strings.ToLower(key)] = Instrument{
			Class:       ic.Class,
			Name:        name,
			Readout:     ic.Readout,
			PerExposure: ic.PerExposure,
			Setup:       ic.Setup,
		}
	}
	return t
}

// Lookup returns the camera for an instrument on a telescope. All survey
// telescopes share the 1m overheads, so only the name matters.
func (t *Table) Lookup(_, name string) Instrument {
	if t != nil {
		if inst, ok := t.overrides[strings.ToLower(name)]; ok {
			return inst
		}
	}
	return Instrument{
		Class:       SinistroClass,
		Name:        strings.ToUpper(name),
		Readout:     defaultReadout,
		PerExposure: defaultPerExposure,
		Setup:       defaultSetup,
	}
}
