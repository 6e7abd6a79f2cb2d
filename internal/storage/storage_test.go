package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "skysurvey/pkg/logx"
)

func entry(i int) SubmissionEntry {
	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	return SubmissionEntry{
		RunID:       "run-1",
		GroupID:     fmt.Sprintf("RBNS%d", i),
		Field:       fmt.Sprintf("F%d", i),
		Status:      "SIM_OK",
		Response:    "Simulated",
		Submit:      at,
		Expire:      at.Add(24 * time.Hour),
		SubRequests: 1,
		RecordedAt:  at,
	}
}

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "mongo", Path: "x"}, logx.Nop())
	require.Error(t, err)
}

func testStoreRoundTrip(t *testing.T, cfg Config) {
	t.Helper()
	ctx := context.Background()
	st, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)

	for i := 1; i <= 5; i++ {
		require.NoError(t, st.AppendSubmission(ctx, entry(i)))
	}

	got, err := st.RecentSubmissions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"RBNS5", "RBNS4", "RBNS3"}, []string{got[0].GroupID, got[1].GroupID, got[2].GroupID})
	assert.Equal(t, "Simulated", got[0].Response)
	assert.True(t, entry(5).Expire.Equal(got[0].Expire))

	all, err := st.RecentSubmissions(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	require.NoError(t, st.Close())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	testStoreRoundTrip(t, Config{Driver: "file", Path: filepath.Join(dir, "history.db")})

	_, err := os.Stat(filepath.Join(dir, "history.submissions.jsonl"))
	require.NoError(t, err)

	// reopen appends to the same journal
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "history.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	all, err := st.RecentSubmissions(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "h.submissions.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("not json\n{}\n"), 0o600))

	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "h.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.AppendSubmission(context.Background(), entry(1)))

	got, err := st.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "RBNS1", got[0].GroupID)
}

func TestSQLiteStore(t *testing.T) {
	testStoreRoundTrip(t, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "history.db"), BusyTimeout: time.Second})
}
