package survey

import (
	"encoding/json"
	"time"
)

// WindowLayout is the scheduler's window timestamp format (UTC).
const WindowLayout = "2006-01-02 15:04:05"

type compoundRequest struct {
	GroupID  string    `json:"group_id"`
	Operator string    `json:"operator"`
	Type     string    `json:"type"`
	Requests []request `json:"requests"`
}

type request struct {
	ObservationNote string      `json:"observation_note"`
	ObservationType string      `json:"observation_type"`
	Type            string      `json:"type"`
	Target          target      `json:"target"`
	Windows         []window    `json:"windows"`
	FailCount       int         `json:"fail_count"`
	Location        location    `json:"location"`
	Molecules       []molecule  `json:"molecules"`
	Constraints     constraints `json:"constraints"`
}

type target struct {
	Name            string  `json:"name"`
	RA              float64 `json:"ra"`
	Dec             float64 `json:"dec"`
	ProperMotionRA  int     `json:"proper_motion_ra"`
	ProperMotionDec int     `json:"proper_motion_dec"`
	Parallax        int     `json:"parallax"`
	Epoch           int     `json:"epoch"`
}

type window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type location struct {
	TelescopeClass string `json:"telescope_class"`
	Site           string `json:"site"`
	Observatory    string `json:"observatory"`
}

type molecule struct {
	ExposureTime   float64 `json:"exposure_time"`
	ExposureCount  int     `json:"exposure_count"`
	Filter         string  `json:"filter"`
	Type           string  `json:"type"`
	AgName         string  `json:"ag_name"`
	AgMode         string  `json:"ag_mode"`
	InstrumentName string  `json:"instrument_name"`
	BinX           int     `json:"bin_x"`
	BinY           int     `json:"bin_y"`
	Defocus        float64 `json:"defocus"`
}

type constraints struct {
	MaxAirmass float64 `json:"max_airmass"`
}

// Payload serializes g as the scheduler's compound request document.
func Payload(g ObservationGroup) ([]byte, error) {
	f := g.Field
	tgt := target{Name: f.Name, RA: f.RADeg, Dec: f.DecDeg, Epoch: 2000}
	loc := location{TelescopeClass: g.TelescopeClass, Site: f.Site, Observatory: f.Observatory}

	cr := compoundRequest{
		GroupID:  g.GroupID,
		Operator: "many",
		Type:     "compound_request",
		Requests: make([]request, 0, len(g.SubRequests)),
	}
	for _, sr := range g.SubRequests {
		mols := make([]molecule, 0, len(sr.Blocks))
		for _, b := range sr.Blocks {
			mols = append(mols, molecule{
				ExposureTime:   b.ExposureTime,
				ExposureCount:  b.Count,
				Filter:         f.Filter,
				Type:           "EXPOSE",
				AgMode:         "Optional",
				InstrumentName: g.InstrumentName,
				BinX:           1,
				BinY:           1,
			})
		}
		cr.Requests = append(cr.Requests, request{
			ObservationType: "NORMAL",
			Type:            "request",
			Target:          tgt,
			Windows: []window{{
				Start: formatWindow(sr.Window.Start),
				End:   formatWindow(sr.Window.End),
			}},
			Location:    loc,
			Molecules:   mols,
			Constraints: constraints{MaxAirmass: g.MaxAirmass},
		})
	}
	return json.Marshal(cr)
}

func formatWindow(t time.Time) string { return t.UTC().Format(WindowLayout) }
