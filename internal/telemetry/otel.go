package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/clover-storm/unit-simulator"

// OTelMetrics records Add calls on Int64Counters and Store calls on
// Int64Gauges, creating instruments on first use.
type OTelMetrics struct {
	meter  metric.Meter
	logger Logger

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Int64Gauge
}

// NewOTelMetrics uses meter, or the global meter provider when nil.
func NewOTelMetrics(meter metric.Meter, logger Logger) *OTelMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = LoggerFunc(nil)
	}
	return &OTelMetrics{
		meter:    meter,
		logger:   logger,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Int64Gauge),
	}
}

func (m *OTelMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	counter, ok := m.counters[key]
	if !ok {
		var err error
		counter, err = m.meter.Int64Counter(key)
		if err != nil {
			m.mu.Unlock()
			m.logger.Printf("telemetry: counter %s: %v", key, err)
			return
		}
		m.counters[key] = counter
	}
	m.mu.Unlock()
	counter.Add(context.Background(), int64(delta))
}

func (m *OTelMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	gauge, ok := m.gauges[key]
	if !ok {
		var err error
		gauge, err = m.meter.Int64Gauge(key)
		if err != nil {
			m.mu.Unlock()
			m.logger.Printf("telemetry: gauge %s: %v", key, err)
			return
		}
		m.gauges[key] = gauge
	}
	m.mu.Unlock()
	gauge.Record(context.Background(), int64(value))
}

// Tee fans every call out to each non-nil Metrics.
func Tee(metrics ...Metrics) Metrics {
	var out teeMetrics
	for _, m := range metrics {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

type teeMetrics []Metrics

func (t teeMetrics) Add(key string, delta uint64) {
	for _, m := range t {
		m.Add(key, delta)
	}
}

func (t teeMetrics) Store(key string, value uint64) {
	for _, m := range t {
		m.Store(key, value)
	}
}
