package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("CONTRACTOR_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")
	require.Equal(t, "console", First("text", "CONTRACTOR_LOG_FORMAT", "LOG_FORMAT"))
}

func TestFirstFallsBack(t *testing.T) {
	t.Setenv("CONTRACTOR_LOG_FORMAT", "")
	require.Equal(t, "json", First("json", "CONTRACTOR_LOG_FORMAT"))
	require.Equal(t, "json", Get("CONTRACTOR_LOG_FORMAT", "json"))
}
