package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clover-storm/unit-simulator/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unitsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, 100, cfg.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 600, cfg.JournalCapacity)
	assert.Equal(t, 3000, cfg.Sim.MaxFrames)
	assert.True(t, cfg.Sim.Towers)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, 3*time.Minute, cfg.Storage.DumpInterval)
	assert.Equal(t, []string{"console"}, cfg.Logging.Sinks)
	assert.False(t, cfg.Metrics.OTel)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
tick_rate: 60
idle_timeout: 5m
sim:
  waves: false
storage:
  enabled: true
  path: /tmp/sim.db
logging:
  sinks: [console, json]
  json_path: /tmp/events.jsonl
  min_severity: warn
  categories: [combat, lifecycle]
  sample: ["combat.damage=10"]
metrics:
  otel: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.False(t, cfg.Sim.Waves)
	assert.True(t, cfg.Sim.Towers)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "/tmp/sim.db", cfg.StorageConfig().Path)
	assert.True(t, cfg.Metrics.OTel)

	logCfg := cfg.LoggingConfig()
	assert.Equal(t, []string{"console", "json"}, logCfg.EnabledSinks)
	assert.Equal(t, logging.SeverityWarn, logCfg.MinimumSeverity)
	assert.Equal(t, "/tmp/events.jsonl", logCfg.JSON.FilePath)
	assert.Equal(t, []string{"combat", "lifecycle"}, logCfg.Categories)
	assert.Equal(t, 10, logCfg.Sample["combat.damage"])
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "tick_rate: 60\n")
	t.Setenv("UNITSIM_TICK_RATE", "15")
	t.Setenv("UNITSIM_STORAGE_ENABLED", "true")
	t.Setenv("UNITSIM_LOGGING_SINKS", "console,zerolog")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.TickRate)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, []string{"console", "zerolog"}, cfg.Logging.Sinks)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/unitsim.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero tick rate", body: "tick_rate: 0\n"},
		{name: "negative journal", body: "journal_capacity: -1\n"},
		{name: "unknown severity", body: "logging:\n  min_severity: loud\n"},
		{name: "unknown sink", body: "logging:\n  sinks: [syslog]\n"},
		{name: "bad sample", body: "logging:\n  sample: [\"combat.damage\"]\n"},
		{name: "zero sample rate", body: "logging:\n  sample: [\"combat.damage=0\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestSessionConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.TickRate = 10
	cfg.Storage.Every = 25

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, sc.TickRate)
	assert.Equal(t, 25, sc.Recorder.Every)
	assert.True(t, sc.Sim.Registry.Has("golemite"))

	cfg.UnitsFile = "/nonexistent/units.yaml"
	_, err = cfg.SessionConfig()
	require.Error(t, err)
}

func TestSessionConfigLoadsUnitsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	unitsPath := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(unitsPath, []byte(`
units:
  - unit_id: knight
    max_hp: 600
    damage: 40
    move_speed: 3
    turn_speed: 0.1
    radius: 20
    role: Melee
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.UnitsFile = unitsPath

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.True(t, sc.Sim.Registry.Has("knight"))
	assert.True(t, sc.Sim.Registry.Has("skeleton"))
}
