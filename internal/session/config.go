package session

import (
	"errors"
	"time"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/storage"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/logging"
)

var (
	ErrSessionLimit    = errors.New("session limit reached")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionExists   = errors.New("session already exists")
	// ErrRunEnded is returned by Play once the simulation has completed.
	ErrRunEnded = errors.New("simulation run has ended")
)

// Close reasons.
const (
	ReasonClosed   = "closed"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

type Config struct {
	MaxSessions     int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	// TickRate is the number of frames per second while playing.
	TickRate        int
	JournalCapacity int
	JournalInterval int
	ClientBuffer    int
	Sim             sim.Config
	Recorder        storage.RecorderConfig
}

func DefaultConfig() Config {
	return Config{
		MaxSessions:     100,
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Minute,
		TickRate:        30,
		JournalCapacity: 600,
		JournalInterval: 1,
		ClientBuffer:    64,
		Sim:             sim.DefaultConfig(),
		Recorder:        storage.DefaultRecorderConfig(),
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxSessions <= 0 {
		c.MaxSessions = d.MaxSessions
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.TickRate <= 0 {
		c.TickRate = d.TickRate
	}
	if c.JournalCapacity < 0 {
		c.JournalCapacity = 0
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = d.ClientBuffer
	}
	return c
}

func (c Config) tickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Deps carries the shared infrastructure every session reports to. Store
// is optional.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Store     *storage.Store
	Clock     func() time.Time
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(nil)
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}
