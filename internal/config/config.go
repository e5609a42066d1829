// Package config loads server settings from defaults, an optional
// unitsim.yaml and UNITSIM_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clover-storm/unit-simulator/internal/session"
	"github.com/clover-storm/unit-simulator/internal/storage"
	"github.com/clover-storm/unit-simulator/internal/units"
	"github.com/clover-storm/unit-simulator/logging"
)

const (
	envPrefix  = "UNITSIM"
	configName = "unitsim"
)

type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	TickRate        int           `mapstructure:"tick_rate"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	JournalCapacity int           `mapstructure:"journal_capacity"`
	JournalInterval int           `mapstructure:"journal_interval"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
	UnitsFile       string        `mapstructure:"units_file"`
	Pprof           bool          `mapstructure:"pprof"`

	Sim     SimConfig     `mapstructure:"sim"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SimConfig struct {
	MaxFrames int  `mapstructure:"max_frames"`
	Towers    bool `mapstructure:"towers"`
	Waves     bool `mapstructure:"waves"`
}

type StorageConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Path         string        `mapstructure:"path"`
	DumpPath     string        `mapstructure:"dump_path"`
	DumpInterval time.Duration `mapstructure:"dump_interval"`
	// Every persists one frame in Every.
	Every int `mapstructure:"every"`
}

type LoggingConfig struct {
	Sinks       []string `mapstructure:"sinks"`
	JSONPath    string   `mapstructure:"json_path"`
	MinSeverity string   `mapstructure:"min_severity"`
	Pretty      bool     `mapstructure:"pretty"`
	Categories  []string `mapstructure:"categories"`
	// Sample entries look like "combat.damage=10": one frame in 10 of
	// that event type is logged.
	Sample []string `mapstructure:"sample"`
}

type MetricsConfig struct {
	OTel bool `mapstructure:"otel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("tick_rate", 30)
	v.SetDefault("max_sessions", 100)
	v.SetDefault("idle_timeout", "30m")
	v.SetDefault("cleanup_interval", "1m")
	v.SetDefault("journal_capacity", 600)
	v.SetDefault("journal_interval", 1)
	v.SetDefault("client_buffer", 64)
	v.SetDefault("units_file", "")
	v.SetDefault("pprof", false)

	v.SetDefault("sim.max_frames", 3000)
	v.SetDefault("sim.towers", true)
	v.SetDefault("sim.waves", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", "unitsim.db")
	v.SetDefault("storage.dump_path", "")
	v.SetDefault("storage.dump_interval", "3m")
	v.SetDefault("storage.every", 10)

	v.SetDefault("logging.sinks", []string{"console"})
	v.SetDefault("logging.json_path", "")
	v.SetDefault("logging.min_severity", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.categories", []string{})
	v.SetDefault("logging.sample", []string{})

	v.SetDefault("metrics.otel", false)
}

// Load reads configuration. With an empty path unitsim.yaml is searched for
// in the working directory and /etc/unitsim, and a missing file is not an
// error. An explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/unitsim")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma separated lists arrive from the environment as one element.
	if len(cfg.Logging.Sinks) == 1 && strings.Contains(cfg.Logging.Sinks[0], ",") {
		cfg.Logging.Sinks = strings.Split(cfg.Logging.Sinks[0], ",")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions)
	}
	if c.JournalCapacity < 0 {
		return fmt.Errorf("journal_capacity must not be negative, got %d", c.JournalCapacity)
	}
	if _, err := logging.ParseSeverity(c.Logging.MinSeverity); err != nil {
		return fmt.Errorf("logging.min_severity: %w", err)
	}
	if _, err := parseSample(c.Logging.Sample); err != nil {
		return fmt.Errorf("logging.sample: %w", err)
	}
	for _, sink := range c.Logging.Sinks {
		switch strings.TrimSpace(sink) {
		case "console", "json", "zerolog":
		default:
			return fmt.Errorf("logging.sinks: unknown sink %q", sink)
		}
	}
	return nil
}

// SessionConfig builds the session manager settings. Unit definitions from
// UnitsFile are merged over the built-in registry.
func (c Config) SessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	cfg.MaxSessions = c.MaxSessions
	cfg.IdleTimeout = c.IdleTimeout
	cfg.CleanupInterval = c.CleanupInterval
	cfg.TickRate = c.TickRate
	cfg.JournalCapacity = c.JournalCapacity
	cfg.JournalInterval = c.JournalInterval
	cfg.ClientBuffer = c.ClientBuffer
	cfg.Sim.MaxFrames = c.Sim.MaxFrames
	cfg.Sim.Towers = c.Sim.Towers
	cfg.Sim.Waves = c.Sim.Waves
	if c.Storage.Every > 0 {
		cfg.Recorder.Every = c.Storage.Every
	}
	if c.UnitsFile != "" {
		registry, err := units.LoadDefinitions(c.UnitsFile)
		if err != nil {
			return session.Config{}, err
		}
		cfg.Sim.Registry = registry
	}
	return cfg, nil
}

func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Path:         c.Storage.Path,
		DumpPath:     c.Storage.DumpPath,
		DumpInterval: c.Storage.DumpInterval,
	}
}

func parseSample(entries []string) (map[logging.EventType]int, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[logging.EventType]int, len(entries))
	for _, entry := range entries {
		eventType, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not type=N", entry)
		}
		every, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || every < 1 {
			return nil, fmt.Errorf("entry %q needs a positive rate", entry)
		}
		out[logging.EventType(strings.TrimSpace(eventType))] = every
	}
	return out, nil
}

func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nil
	if _, err := parseSample(c.Logging.Sample); err != nil {
		return fmt.Errorf("logging.sample: %w", err)
	}
	for _, sink := range c.Logging.Sinks {
		cfg.EnabledSinks = append(cfg.EnabledSinks, strings.TrimSpace(sink))
	}
	cfg.MinimumSeverity, _ = logging.ParseSeverity(c.Logging.MinSeverity)
	cfg.JSON.FilePath = c.Logging.JSONPath
	cfg.Console.Pretty = c.Logging.Pretty
	cfg.Categories = append([]string(nil), c.Logging.Categories...)
	cfg.Sample, _ = parseSample(c.Logging.Sample)
	return cfg
}
