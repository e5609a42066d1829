package telemetry

import (
	"log"

	"github.com/rs/zerolog"
)

// Metric keys recorded by the simulation and session layers.
const (
	MetricFramesStepped   = "sim_frames_stepped"
	MetricCommandsApplied = "sim_commands_applied"
	MetricCommandsDropped = "sim_commands_rejected"
	MetricQueueDepth      = "sim_command_queue_depth"
	MetricUnitsSpawned    = "sim_units_spawned"
	MetricUnitsDefeated   = "sim_units_defeated"
	MetricSessionsActive  = "sessions_active"
	MetricSessionsCreated = "sessions_created"
	MetricClientsActive   = "ws_clients_active"
)

// Logger exposes the process diagnostics needed by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger.
func WrapLogger(logger *log.Logger) Logger {
	return LoggerFunc(func(format string, args ...any) {
		if logger == nil {
			return
		}
		logger.Printf(format, args...)
	})
}

// WrapZerolog routes Printf calls to logger at info level.
func WrapZerolog(logger zerolog.Logger) Logger {
	return LoggerFunc(func(format string, args ...any) {
		logger.Info().Msgf(format, args...)
	})
}

// Metrics exposes counters (Add) and gauges (Store).
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

func NopMetrics() Metrics {
	return nopMetrics{}
}
