package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyWithoutSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	sent, err := Ready()
	require.NoError(t, err)
	assert.False(t, sent)

	sent, err = Status("next run %s", "00:10")
	require.NoError(t, err)
	assert.False(t, sent)
}
