package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"skysurvey/internal/survey"
)

// TimestampLayout is used for submit/expire columns and the header.
const TimestampLayout = "2006-01-02T15:04:05"

// Columns is the number of space-delimited columns in a row. The status
// report is last and may itself contain spaces.
const Columns = 34

const none = "None"

var ErrMalformedRow = errors.New("malformed ledger row")

const columnHeader = "# GrpID  TrackID  ReqID  Network  Site  Obs  Tel  Instrum  Target  RA(J2000)  Dec(J2000)  Filter  ExpTime  ExpCount  ExpTaken  GrpType  Cadence  Priority  TS_Submit  TS_Expire  TAGID  UserID  PropID  TTL  Twilight  Darkness  Seeing  FocusOffset  RotatorAngle  Autoguider  SubmitMech  ConfigType  ReqOrigin  RCS_Report"

// Record is one ledger row: a group flattened to one exposure block.
type Record struct {
	GroupID         string
	RequestNumber   string
	Site            string
	Observatory     string
	TelescopeClass  string
	InstrumentClass string
	FieldName       string
	RA              string
	Dec             string
	Filter          string
	Block           survey.ExposureBlock
	Cadence         float64
	Submit          time.Time
	Expire          time.Time
	UserID          string
	ProposalID      string
	TTL             float64
	Status          survey.Status
	Response        string
}

// Records flattens g into one record per exposure block of its field.
func Records(g survey.ObservationGroup) []Record {
	f := g.Field
	out := make([]Record, 0, len(f.Exposures))
	for _, b := range f.Exposures {
		out = append(out, Record{
			GroupID:         g.GroupID,
			RequestNumber:   g.RequestNumber,
			Site:            f.Site,
			Observatory:     f.Observatory,
			TelescopeClass:  g.TelescopeClass,
			InstrumentClass: g.InstrumentClass,
			FieldName:       f.Name,
			RA:              f.RA,
			Dec:             f.Dec,
			Filter:          f.Filter,
			Block:           b,
			Cadence:         f.Cadence,
			Submit:          g.Submit,
			Expire:          g.Expire,
			UserID:          g.UserID,
			ProposalID:      g.ProposalID,
			TTL:             f.TTL,
			Status:          g.Status,
			Response:        g.Response,
		})
	}
	return out
}

func (r Record) report() string {
	return survey.ObservationGroup{Status: r.Status, Response: r.Response}.Report()
}

// Format renders the row without a trailing newline.
func (r Record) Format() string {
	cols := []string{
		col(r.GroupID),
		col(r.RequestNumber),
		none, // request id
		"LCOGT",
		col(r.Site),
		col(r.Observatory),
		col(r.TelescopeClass),
		col(r.InstrumentClass),
		col(r.FieldName),
		col(r.RA),
		col(r.Dec),
		col(r.Filter),
		survey.FormatFloat(r.Block.ExposureTime),
		strconv.Itoa(r.Block.Count),
		"0", // exposures taken
		"Monitor",
		survey.FormatFloat(r.Cadence),
		"medium",
		r.Submit.UTC().Format(TimestampLayout),
		r.Expire.UTC().Format(TimestampLayout),
		"LCOGT",
		col(r.UserID),
		col(r.ProposalID),
		survey.FormatFloat(r.TTL),
		none, none, none, // twilight, darkness, seeing
		"0.0", "0.0", // focus offset, rotator angle
		"2", // autoguider
		"ODIN",
		"network",
		"survey",
		r.report(),
	}
	return strings.Join(cols, " ")
}

// col keeps a value to exactly one column.
func col(s string) string {
	s = strings.Join(strings.Fields(s), "_")
	if s == "" {
		return none
	}
	return s
}

func uncol(s string) string {
	if s == none {
		return ""
	}
	return s
}

// ParseRecord is the inverse of Format.
func ParseRecord(line string) (Record, error) {
	cols := strings.Fields(line)
	if len(cols) < Columns {
		return Record{}, fmt.Errorf("%w: %d columns", ErrMalformedRow, len(cols))
	}

	r := Record{
		GroupID:         cols[0],
		RequestNumber:   uncol(cols[1]),
		Site:            uncol(cols[4]),
		Observatory:     uncol(cols[5]),
		TelescopeClass:  uncol(cols[6]),
		InstrumentClass: uncol(cols[7]),
		FieldName:       cols[8],
		RA:              uncol(cols[9]),
		Dec:             uncol(cols[10]),
		Filter:          uncol(cols[11]),
		UserID:          uncol(cols[21]),
		ProposalID:      uncol(cols[22]),
	}

	var err error
	if r.Block.ExposureTime, err = strconv.ParseFloat(cols[12], 64); err != nil {
		return Record{}, fmt.Errorf("%w: exposure time %q", ErrMalformedRow, cols[12])
	}
	if r.Block.Count, err = strconv.Atoi(cols[13]); err != nil {
		return Record{}, fmt.Errorf("%w: exposure count %q", ErrMalformedRow, cols[13])
	}
	if r.Cadence, err = strconv.ParseFloat(cols[16], 64); err != nil {
		return Record{}, fmt.Errorf("%w: cadence %q", ErrMalformedRow, cols[16])
	}
	if r.Submit, err = time.Parse(TimestampLayout, cols[18]); err != nil {
		return Record{}, fmt.Errorf("%w: submit %q", ErrMalformedRow, cols[18])
	}
	if r.Expire, err = time.Parse(TimestampLayout, cols[19]); err != nil {
		return Record{}, fmt.Errorf("%w: expire %q", ErrMalformedRow, cols[19])
	}
	if r.TTL, err = strconv.ParseFloat(cols[23], 64); err != nil {
		return Record{}, fmt.Errorf("%w: ttl %q", ErrMalformedRow, cols[23])
	}

	r.Status, r.Response = parseReport(cols[33:])
	return r, nil
}

// parseReport splits "STATUS: response text" (or a bare "STATUS").
func parseReport(words []string) (survey.Status, string) {
	head := words[0]
	if strings.HasSuffix(head, ":") {
		return survey.Status(strings.TrimSuffix(head, ":")), strings.Join(words[1:], " ")
	}
	return survey.Status(head), strings.Join(words[1:], " ")
}

// Group rebuilds a single-block group from the row.
func (r Record) Group() survey.ObservationGroup {
	return survey.ObservationGroup{
		GroupID: r.GroupID,
		Field: survey.FieldSpec{
			Name:        r.FieldName,
			RA:          r.RA,
			Dec:         r.Dec,
			Site:        r.Site,
			Observatory: r.Observatory,
			Telescope:   r.TelescopeClass,
			Filter:      r.Filter,
			Exposures:   []survey.ExposureBlock{r.Block},
			Cadence:     r.Cadence,
			TTL:         r.TTL,
		},
		TelescopeClass:  r.TelescopeClass,
		InstrumentClass: r.InstrumentClass,
		ProposalID:      r.ProposalID,
		UserID:          r.UserID,
		Submit:          r.Submit,
		Expire:          r.Expire,
		Status:          r.Status,
		Response:        r.Response,
		RequestNumber:   r.RequestNumber,
	}
}
