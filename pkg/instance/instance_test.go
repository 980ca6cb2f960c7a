package instance

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDUsesConfiguredWorker(t *testing.T) {
	t.Setenv("CRIDE_WORKER_ID", "cron-a")
	require.Equal(t, "cron-a", GetID())
}

func TestGetIDFallsBackToHostAndPID(t *testing.T) {
	t.Setenv("CRIDE_WORKER_ID", "")
	t.Setenv("WORKER_ID", "")
	id := GetID()
	idx := strings.LastIndex(id, "-")
	require.Greater(t, idx, 0)
	_, err := strconv.Atoi(id[idx+1:])
	require.NoError(t, err, id)
}
