package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "osm_features.xlsx", cfg.Taxonomy.Path)
	assert.Equal(t, "pie_index", cfg.Taxonomy.PieSheet)
	assert.Equal(t, "poi_index", cfg.Taxonomy.SelectorSheet)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.NominatimURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.Equal(t, 30, cfg.Geocode.CacheTTLDays)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.Endpoint)
	assert.Equal(t, 60, cfg.Overpass.TimeoutSecs)
	assert.Equal(t, 3, cfg.Overpass.MaxRetries)
	assert.Equal(t, 100, cfg.Elevation.BatchSize)
	assert.InDelta(t, 500, cfg.Query.RadiusMeters, 0.001)
	assert.InDelta(t, 100, cfg.Query.MinRadius, 0.001)
	assert.InDelta(t, 3000, cfg.Query.MaxRadius, 0.001)
	assert.Equal(t, []string{"landuse", "natural", "leisure", "amenity", "shop", "building"}, cfg.Query.LanduseKeys)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
taxonomy:
  path: /data/features.xlsx
overpass:
  endpoint: https://overpass.example.org/api/interpreter
  timeout_secs: 30
query:
  radius_meters: 1200
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/features.xlsx", cfg.Taxonomy.Path)
	assert.Equal(t, "https://overpass.example.org/api/interpreter", cfg.Overpass.Endpoint)
	assert.Equal(t, 30, cfg.Overpass.TimeoutSecs)
	assert.InDelta(t, 1200, cfg.Query.RadiusMeters, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, "pie_index", cfg.Taxonomy.PieSheet)
	assert.Equal(t, 100, cfg.Elevation.BatchSize)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("NAVIGATOR_LOG_LEVEL", "warn")
	t.Setenv("NAVIGATOR_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "error", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
}
