package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skysurvey/internal/survey"
)

const sample = `# name ra dec site obs tel inst filter exptimes counts cadence [ttl]
ROME-FIELD-01 17:51:20.61 -28:50:04.3 lsc doma 1m0a fl03 ip 300.0 1 1.0

# second pointing, two exposure blocks
ROME-FIELD-02 17:59:27.05 -28:36:37.0 cpt domc 1m0a fl06 ip 30,60 3,1 0.5 2.0
`

var def = Defaults{TTL: 1.0}

func TestParse(t *testing.T) {
	fields, err := Parse(strings.NewReader(sample), "targets.txt", def)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	f := fields[0]
	assert.Equal(t, "ROME-FIELD-01", f.Name)
	assert.Equal(t, "17:51:20.61", f.RA)
	assert.Equal(t, "-28:50:04.3", f.Dec)
	assert.InDelta(t, 267.835875, f.RADeg, 1e-6)
	assert.InDelta(t, -28.834528, f.DecDeg, 1e-6)
	assert.Equal(t, "lsc", f.Site)
	assert.Equal(t, "doma", f.Observatory)
	assert.Equal(t, "1m0a", f.Telescope)
	assert.Equal(t, "fl03", f.Instrument)
	assert.Equal(t, "ip", f.Filter)
	assert.Equal(t, []survey.ExposureBlock{{ExposureTime: 300, Count: 1}}, f.Exposures)
	assert.Equal(t, 1.0, f.Cadence)
	assert.Equal(t, 1.0, f.TTL, "ttl falls back to the default")

	f = fields[1]
	assert.Equal(t, []survey.ExposureBlock{{ExposureTime: 30, Count: 3}, {ExposureTime: 60, Count: 1}}, f.Exposures)
	assert.Equal(t, 0.5, f.Cadence)
	assert.Equal(t, 2.0, f.TTL)
}

func TestParseDuplicateLaterWins(t *testing.T) {
	in := `#
A 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 1
B 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 1
A 00:00:00 +00:00:00 lsc doma 1m0a fl03 rp 10 1 1
`
	fields, err := Parse(strings.NewReader(in), "t", def)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "A", fields[0].Name)
	assert.Equal(t, "rp", fields[0].Filter)
	assert.Equal(t, "B", fields[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		sentinel error
		line     int
	}{
		{name: "no header", in: "A 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 1\n", sentinel: ErrCatalogHeader},
		{name: "empty file", in: "", sentinel: ErrCatalogHeader},
		{name: "short line", in: "#\nA 00:00:00 +00:00:00 lsc\n", line: 2},
		{name: "count mismatch", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10,20 1 1\n", line: 2},
		{name: "bad cadence", in: "#\n\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 0\n", line: 3},
		{name: "nan cadence", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 NaN\n", line: 2},
		{name: "nan ttl", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 30 3 1 NaN\n", line: 2},
		{name: "infinite ttl", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 30 3 1 +Inf\n", line: 2},
		{name: "nan exposure", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip NaN 3 1\n", line: 2},
		{name: "bad ra", in: "#\nA 25:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 1 1\n", line: 2},
		{name: "bad count", in: "#\nA 00:00:00 +00:00:00 lsc doma 1m0a fl03 ip 10 x 1\n", line: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), "t", def)
			require.Error(t, err)
			if tt.sentinel != nil {
				require.ErrorIs(t, err, tt.sentinel)
				return
			}
			var le *LineError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.line, le.Line)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"), def)
	require.ErrorIs(t, err, ErrCatalogMissing)
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o644))
	fields, err := Load(p, def)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
}

func TestCoordinates(t *testing.T) {
	ra, err := RAToDegrees("12:30:00")
	require.NoError(t, err)
	assert.InDelta(t, 187.5, ra, 1e-9)

	dec, err := DecToDegrees("-00:30:00")
	require.NoError(t, err)
	assert.InDelta(t, -0.5, dec, 1e-9)

	dec, err = DecToDegrees("+45:15:36")
	require.NoError(t, err)
	assert.InDelta(t, 45.26, dec, 1e-9)

	for _, bad := range []string{"12:30", "aa:bb:cc", "24:00:00", "-01:00:00", "12:60:00"} {
		_, err := RAToDegrees(bad)
		assert.Error(t, err, bad)
	}
	for _, bad := range []string{"91:00:00", "+90:00:01", "1:2"} {
		_, err := DecToDegrees(bad)
		assert.Error(t, err, bad)
	}
}
