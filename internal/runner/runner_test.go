package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skysurvey/internal/catalog"
	"skysurvey/internal/config"
	"skysurvey/internal/gateway"
	"skysurvey/internal/lock"
	"skysurvey/internal/storage"
	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

var t0 = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

const targets = `# name ra dec site obs tel inst filter exptimes counts cadence
F1 17:59:27.05 -28:36:37.0 lsc doma 1m0a fl03 ip 30.0 3 1.0
`

type fakeSubmitter struct {
	simulate bool
	reply    string
	err      error

	mu    sync.Mutex
	calls []string
}

func (f *fakeSubmitter) Simulated() bool { return f.simulate }

func (f *fakeSubmitter) Submit(_ context.Context, g survey.ObservationGroup) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, g.Field.Name)
	f.mu.Unlock()
	if f.simulate {
		return gateway.SimulatedResponse, nil
	}
	return f.reply, f.err
}

type fakeNotifier struct{ texts []string }

func (f *fakeNotifier) SendText(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type env struct {
	dir string
	cfg *config.Config
	now time.Time
}

func newEnv(t *testing.T, catalogText string) *env {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.txt"), []byte(catalogText), 0o644))
	cfg := &config.Config{
		Survey:   config.SurveyConfig{LogDir: dir, TargetList: "targets.txt"},
		Gateway:  config.GatewayConfig{Simulate: true},
		Proposal: config.ProposalConfig{ProposalID: "KEY2016", UserID: "observer"},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return &env{dir: dir, cfg: cfg, now: t0}
}

func (e *env) runner(t *testing.T, sub Submitter, mods ...func(*Deps)) *Runner {
	t.Helper()
	d := Deps{Config: e.cfg, Log: logx.Nop(), Submitter: sub, Now: func() time.Time { return e.now }}
	for _, m := range mods {
		m(&d)
	}
	r, err := New(d)
	require.NoError(t, err)
	return r
}

func (e *env) ledgerRows(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(e.dir, "ObsRecord_1m_2024-03-05_sba.log"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var rows []string
	for _, line := range strings.Split(string(b), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			rows = append(rows, line)
		}
	}
	return rows
}

func TestRunEndToEndSimulation(t *testing.T) {
	e := newEnv(t, targets)
	sub := &fakeSubmitter{simulate: true}

	rep, err := e.runner(t, sub).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Simulated)
	require.Len(t, rep.Submitted, 1)

	g := rep.Submitted[0]
	assert.True(t, strings.HasPrefix(g.GroupID, "RBNS20240305T"))
	assert.Equal(t, survey.StatusSimOK, g.Status)
	require.Len(t, g.SubRequests, 1)
	start := t0.Add(10 * time.Minute)
	overhead := 90*time.Second + 3*(30+37+2)*time.Second
	assert.Equal(t, survey.Window{Start: start, End: start.Add(overhead + time.Hour)}, g.SubRequests[0].Window)

	rows := e.ledgerRows(t)
	require.Len(t, rows, 1)
	cols := strings.Fields(rows[0])
	assert.Equal(t, "F1", cols[8])
	assert.Equal(t, "0", cols[14], "exposures taken")
	assert.Equal(t, "SIM_OK", cols[33])

	snap, err := os.ReadFile(filepath.Join(e.dir, "ObsRecord_1m_active_sba.log"))
	require.NoError(t, err)
	assert.Contains(t, string(snap), g.GroupID)

	_, err = os.Stat(filepath.Join(e.dir, "survey.lock"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "lock released")
}

func TestRunIsIdempotentWhileActive(t *testing.T) {
	e := newEnv(t, targets)
	sub := &fakeSubmitter{simulate: true}

	_, err := e.runner(t, sub).Run(context.Background())
	require.NoError(t, err)

	e.now = t0.Add(time.Hour)
	rep, err := e.runner(t, sub).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"F1"}, rep.Skipped)
	assert.Empty(t, rep.Submitted)
	assert.Equal(t, []string{"F1"}, sub.calls, "no second submission")
	assert.Len(t, e.ledgerRows(t), 1)
}

func TestRunResubmitsAfterExpiry(t *testing.T) {
	e := newEnv(t, targets)
	sub := &fakeSubmitter{simulate: true}

	_, err := e.runner(t, sub).Run(context.Background())
	require.NoError(t, err)

	// expire = t0 + 10m + 1d; the next day's run reads yesterday's ledger
	e.now = t0.Add(24*time.Hour + 10*time.Minute)
	rep, err := e.runner(t, sub).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Submitted, 1)
	assert.Equal(t, []string{"F1", "F1"}, sub.calls)
}

func TestRunLockConflict(t *testing.T) {
	e := newEnv(t, targets)
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "obscontrol.lock"), []byte("2024-03-05T11:00:00"), 0o644))
	sub := &fakeSubmitter{simulate: true}

	_, err := e.runner(t, sub).Run(context.Background())
	require.ErrorIs(t, err, lock.ErrLockConflict)
	assert.Empty(t, sub.calls)
	assert.Empty(t, e.ledgerRows(t))
	_, statErr := os.Stat(filepath.Join(e.dir, "survey.lock"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "own lock never taken")
}

func TestRunMissingCatalogReleasesLock(t *testing.T) {
	e := newEnv(t, targets)
	require.NoError(t, os.Remove(filepath.Join(e.dir, "targets.txt")))

	_, err := e.runner(t, &fakeSubmitter{simulate: true}).Run(context.Background())
	require.ErrorIs(t, err, catalog.ErrCatalogMissing)
	_, statErr := os.Stat(filepath.Join(e.dir, "survey.lock"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunRecordsRejections(t *testing.T) {
	tests := []struct {
		name   string
		sub    *fakeSubmitter
		status survey.Status
		report string
	}{
		{
			name:   "unauthorized",
			sub:    &fakeSubmitter{reply: `{"Unauthorized"}`},
			status: survey.StatusError,
			report: "ERROR: Unauthorized",
		},
		{
			name:   "transport",
			sub:    &fakeSubmitter{err: &gateway.TransportError{Op: "post", Err: errors.New("connection refused")}},
			status: survey.StatusTransportError,
			report: "TRANSPORT_ERROR: transport: post: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, targets)
			rep, err := e.runner(t, tt.sub).Run(context.Background())
			require.NoError(t, err)
			require.Len(t, rep.Failed, 1)
			assert.Equal(t, tt.status, rep.Failed[0].Status)

			rows := e.ledgerRows(t)
			require.Len(t, rows, 1)
			assert.True(t, strings.HasSuffix(rows[0], " "+tt.report), rows[0])

			// a failed group does not block the next run
			e.now = t0.Add(time.Minute)
			tt.sub.reply, tt.sub.err = `{"id":42}`, nil
			rep, err = e.runner(t, tt.sub).Run(context.Background())
			require.NoError(t, err)
			require.Len(t, rep.Submitted, 1)
			assert.Equal(t, survey.StatusOK, rep.Submitted[0].Status)
		})
	}
}

func TestRunSkipsInvalidFieldsAndContinues(t *testing.T) {
	cat := targets + "F2 17:59:27.05 -28:36:37.0 lsc doma 1m0a fl03 ip 30.0 3 1.0 0.00000000000001\n"
	e := newEnv(t, cat)
	rep, err := e.runner(t, &fakeSubmitter{simulate: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"F2"}, rep.Invalid)
	assert.Len(t, rep.Submitted, 1)
}

func TestRunRecordsHistoryAndNotifies(t *testing.T) {
	e := newEnv(t, targets)
	e.cfg.Telegram = &config.TelegramConfig{ChatID: 1, NotifyRuns: true}
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(e.dir, "history.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	n := &fakeNotifier{}

	rep, err := e.runner(t, &fakeSubmitter{simulate: true}, func(d *Deps) {
		d.Store = st
		d.Notifier = n
	}).Run(context.Background())
	require.NoError(t, err)

	hist, err := st.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, rep.RunID, hist[0].RunID)
	assert.Equal(t, "F1", hist[0].Field)
	assert.Equal(t, "SIM_OK", hist[0].Status)

	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "(simulation)")
	assert.Contains(t, n.texts[0], "submitted: 1")
}
