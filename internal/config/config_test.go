package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tripwatch/internal/segmentation"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Poll.Lookback)
	assert.Equal(t, 20*time.Minute, cfg.Notify.LongTrip)
	assert.Equal(t, segmentation.DefaultParams(), cfg.SegmentationParams())
	assert.Empty(t, cfg.KafkaBrokers())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRIPWATCH_SERVER_PORT", ":9090")
	t.Setenv("TRIPWATCH_SEGMENTATION_HYSTERESIS_TICKS", "4")
	t.Setenv("TRIPWATCH_SEGMENTATION_FILTER_TRAILING_TRIP", "false")
	t.Setenv("TRIPWATCH_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TRIPWATCH_POLL_SUBJECTS", "Alice,Bob")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.SegmentationParams().HysteresisTicks)
	assert.False(t, cfg.SegmentationParams().FilterTrailingTrip)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers())
	assert.Equal(t, []string{"Alice", "Bob"}, cfg.Poll.Subjects)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/trips.db
segmentation:
  min_trip_length: 5
poll:
  enabled: true
  interval: 30s
  subjects: [Alice]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/trips.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Segmentation.MinTripLength)
	assert.Equal(t, segmentation.DefaultHysteresisTicks, cfg.Segmentation.HysteresisTicks)
	assert.True(t, cfg.Poll.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, []string{"Alice"}, cfg.Poll.Subjects)
}

func TestLoadRejectsInvalidSegmentation(t *testing.T) {
	t.Setenv("TRIPWATCH_SEGMENTATION_MAX_GAP_MS", "0")

	_, err := Load("")
	require.ErrorIs(t, err, segmentation.ErrInvalidParams)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
