package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("DB_CONN", "host=localhost dbname=finclass sslmode=disable")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 72*time.Hour, cfg.CatchupFallback)
	require.Equal(t, "5 0 * * *", cfg.SweepSpec)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestNewConfig_RejectsBadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := NewConfig()
	require.Error(t, err)
}

func TestNewConfig_RejectsNonPositiveFallback(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CATCHUP_FALLBACK", "-1h")

	_, err := NewConfig()
	require.Error(t, err)
}
