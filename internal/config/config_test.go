package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("testdata/nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "lendscan", cfg.MongoDB.DBName)
	assert.Equal(t, 5*time.Second, cfg.Scan.ConfirmWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.Scan.CountdownTick)
	assert.Equal(t, 30*time.Second, cfg.Scan.RefreshInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCAN_CONFIRM_WINDOW", "8s")
	t.Setenv("LIST_REFRESH_INTERVAL", "1m")
	t.Setenv("MONGODB_DB_NAME", "lendscan_test")

	cfg, err := Load("testdata/nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.Scan.ConfirmWindow)
	assert.Equal(t, time.Minute, cfg.Scan.RefreshInterval)
	assert.Equal(t, "lendscan_test", cfg.MongoDB.DBName)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("SCAN_CONFIRM_WINDOW", "five seconds")

	_, err := Load("testdata/nonexistent.env")
	assert.Error(t, err)
}

func TestValidateRejectsTickLongerThanWindow(t *testing.T) {
	t.Setenv("SCAN_CONFIRM_WINDOW", "1s")
	t.Setenv("SCAN_COUNTDOWN_TICK", "2s")

	_, err := Load("testdata/nonexistent.env")
	assert.Error(t, err)
}
