package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTargets = `# name ra dec site obs tel inst filter exptimes counts cadence
F1 17:59:27.05 -28:36:37.0 lsc doma 1m0a fl03 ip 30.0 3 1.0
`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.txt"), []byte(testTargets), 0o644))
	cfg := "survey:\n" +
		"  log_dir: " + dir + "\n" +
		"  target_list: targets.txt\n" +
		"gateway:\n" +
		"  simulate: true\n" +
		"logging:\n" +
		"  level: error\n" +
		"storage:\n" +
		"  driver: file\n" +
		"  path: history\n"
	p := filepath.Join(dir, "skysurvey.yaml")
	require.NoError(t, os.WriteFile(p, []byte(cfg), 0o644))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		runQuiet, unlockForce, historyLimit = false, false, 20
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunThenInspect(t *testing.T) {
	cfg := setup(t)

	out, err := execute(t, "--config", cfg, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "(simulation)")
	assert.Contains(t, out, "submitted: 1")

	out, err = execute(t, "--config", cfg, "active")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "F1")
	assert.Contains(t, out, "SIM_OK")

	out, err = execute(t, "--config", cfg, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "F1")
	assert.Contains(t, out, "Simulated")

	// a second run finds the field active
	out, err = execute(t, "--config", cfg, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "submitted: 0")
	assert.Contains(t, out, "still active: F1")
}

func TestRunFailsOnMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "run")
	require.Error(t, err)
}

func TestUnlock(t *testing.T) {
	cfg := setup(t)
	lockPath := filepath.Join(filepath.Dir(cfg), "survey.lock")

	out, err := execute(t, "--config", cfg, "unlock")
	require.NoError(t, err)
	assert.Contains(t, out, "No lock")

	require.NoError(t, os.WriteFile(lockPath, []byte("2024-03-05T00:10:00"), 0o644))
	out, err = execute(t, "--config", cfg, "unlock")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-05T00:10:00")
	assert.Contains(t, out, "--force")
	assert.FileExists(t, lockPath)

	out, err = execute(t, "--config", cfg, "unlock", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Lock removed.")
	assert.NoFileExists(t, lockPath)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
