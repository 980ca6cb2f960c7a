package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPrefersPrefixedVariable(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	require.Equal(t, "console", Get("LOG_FORMAT", "json"))

	t.Setenv("CRIDE_LOG_FORMAT", "json")
	require.Equal(t, "json", Get("LOG_FORMAT", "console"))

	require.Equal(t, "fallback", Get("CRIDE_TEST_UNSET_KEY", "fallback"))
}
