package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skysurvey/internal/config"
)

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		storage *config.StorageConfig
		enabled bool
		want    string
		busy    time.Duration
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", storage: &config.StorageConfig{Driver: "none"}},
		{name: "file relative", storage: &config.StorageConfig{Driver: "file", Path: "hist"}, enabled: true, want: "/logs/hist"},
		{name: "sqlite absolute", storage: &config.StorageConfig{Driver: "SQLite", Path: "/var/db/s.db"}, enabled: true, want: "/var/db/s.db", busy: time.Second},
		{name: "sqlite busy", storage: &config.StorageConfig{Driver: "sqlite", Path: "s.db", BusyTimeout: "3s"}, enabled: true, want: "/logs/s.db", busy: 3 * time.Second},
		{name: "unknown", storage: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Survey: config.SurveyConfig{LogDir: "/logs"}, Storage: tt.storage}
			sc, enabled, err := mapStorageConfig(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, enabled)
			assert.Equal(t, tt.want, sc.Path)
			assert.Equal(t, tt.busy, sc.BusyTimeout)
		})
	}
}

func TestMapNotifierConfigDefaultsTimeout(t *testing.T) {
	nc, err := mapNotifierConfig(&config.Config{Telegram: &config.TelegramConfig{Token: "x", ChatID: 7}})
	require.NoError(t, err)
	assert.Equal(t, int64(7), nc.ChatID)
	assert.Equal(t, 10*time.Second, nc.Timeout)

	nc, err = mapNotifierConfig(&config.Config{})
	require.NoError(t, err)
	assert.Empty(t, nc.Token)
}

func writeTargets(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.txt"), []byte(
		"# name ra dec site obs tel inst filter exptimes counts cadence\n"+
			"F1 17:59:27.05 -28:36:37.0 lsc doma 1m0a fl03 ip 30.0 3 1.0\n"), 0o644))
}

func TestRunOnceSimulated(t *testing.T) {
	dir := t.TempDir()
	writeTargets(t, dir)
	cfgPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"survey": {"log_dir": "`+dir+`", "target_list": "targets.txt"},
		"gateway": {"simulate": true},
		"logging": {"level": "error"}
	}`), 0o644))

	a, err := New(cfgPath, Options{})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Store())

	rep, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Submitted, 1)
	first := rep.Submitted[0].GroupID

	// same process, field still active: nothing new
	rep, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Submitted)
	assert.Equal(t, []string{"F1"}, rep.Skipped)
	assert.NotEmpty(t, first)
}

func TestNewClosesLogsWhenStorageFails(t *testing.T) {
	dir := t.TempDir()
	writeTargets(t, dir)
	cfgPath := filepath.Join(dir, "cfg.json")
	// the storage directory would have to live under a regular file
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"survey": {"log_dir": "`+dir+`", "target_list": "targets.txt"},
		"gateway": {"simulate": true},
		"logging": {"level": "error", "file": {"enabled": true}},
		"storage": {"driver": "file", "path": "targets.txt/history"}
	}`), 0o644))

	a, err := New(cfgPath, Options{})
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "open storage")
}

func daemonConfig(dir, schedule string) []byte {
	return []byte(`{
		"survey": {"log_dir": "` + dir + `", "target_list": "targets.txt"},
		"gateway": {"simulate": true},
		"logging": {"level": "error"},
		"daemon": {"schedule": "` + schedule + `", "run_on_start": true}
	}`)
}

func TestDaemonAppliesScheduleReloadAndReleasesLock(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	dir := t.TempDir()
	writeTargets(t, dir)
	cfgPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, daemonConfig(dir, "1h"), 0o644))

	a, err := New(cfgPath, Options{})
	require.NoError(t, err)
	defer a.Close()
	assert.Zero(t, a.NextRun(), "daemon not running")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Daemon(ctx) }()

	require.Eventually(t, func() bool {
		next := a.NextRun()
		return !next.IsZero() && time.Until(next) <= time.Hour
	}, 5*time.Second, 20*time.Millisecond)

	// run_on_start submits the field once
	ledger := filepath.Join(dir, "ObsRecord_1m_"+time.Now().UTC().Format("2006-01-02")+"_sba.log")
	require.Eventually(t, func() bool {
		_, err := os.Stat(ledger)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// The watcher starts asynchronously; keep rewriting until the reload lands.
	// The tick is longer than the reload debounce.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(cfgPath, daemonConfig(dir, "24h"), 0o644); err != nil {
			return false
		}
		return time.Until(a.NextRun()) > 2*time.Hour
	}, 10*time.Second, 500*time.Millisecond)
	assert.Equal(t, "24h", a.Config().Daemon.Schedule)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.NoFileExists(t, filepath.Join(dir, "survey.lock"))
	assert.Zero(t, a.NextRun())
}
