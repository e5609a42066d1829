package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

const (
	MetricSnapshotsPersisted = "storage_snapshots_persisted"
	MetricSnapshotsDropped   = "storage_snapshots_dropped"
	MetricPersistFailures    = "storage_persist_failures"
)

type RecorderConfig struct {
	// Every keeps one frame in Every. Values below 1 keep all frames.
	Every         int
	BatchSize     int
	FlushInterval time.Duration
	Buffer        int
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{Every: 10, BatchSize: 50, FlushInterval: time.Second, Buffer: 256}
}

// Recorder persists a session's frames off the simulation goroutine. It
// implements sim.Listener; frames are dropped when the buffer is full.
type Recorder struct {
	sim.ListenerFuncs

	store     *Store
	sessionID string
	cfg       RecorderConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	frames    chan sim.FrameSnapshot
	flushReq  chan chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

func NewRecorder(store *Store, sessionID string, cfg RecorderConfig, logger telemetry.Logger, metrics telemetry.Metrics) *Recorder {
	if cfg.Every < 1 {
		cfg.Every = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	r := &Recorder{
		store:     store,
		sessionID: sessionID,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		frames:    make(chan sim.FrameSnapshot, cfg.Buffer),
		flushReq:  make(chan chan struct{}),
		done:      make(chan struct{}),
	}
	r.ListenerFuncs.Frame = r.Record
	go r.run()
	return r
}

// Record queues snap for persistence when it falls on the sampling
// interval.
func (r *Recorder) Record(snap sim.FrameSnapshot) {
	if r.closed.Load() || snap.FrameNumber%r.cfg.Every != 0 {
		return
	}
	select {
	case r.frames <- snap:
	default:
		r.metrics.Add(MetricSnapshotsDropped, 1)
	}
}

// Flush blocks until every queued frame has been written.
func (r *Recorder) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case r.flushReq <- ack:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending frames and stops the writer. It must not run
// concurrently with Record.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.frames)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]sim.FrameSnapshot, 0, r.cfg.BatchSize)
	write := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.store.SaveSnapshots(context.Background(), r.sessionID, batch...); err != nil {
			r.metrics.Add(MetricPersistFailures, 1)
			r.logger.Printf("storage: session %s: %v", r.sessionID, err)
		} else {
			r.metrics.Add(MetricSnapshotsPersisted, uint64(len(batch)))
		}
		clear(batch)
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case snap, ok := <-r.frames:
				if !ok {
					return
				}
				batch = append(batch, snap)
				if len(batch) >= r.cfg.BatchSize {
					write()
				}
			default:
				return
			}
		}
	}

	for {
		select {
		case snap, ok := <-r.frames:
			if !ok {
				write()
				return
			}
			batch = append(batch, snap)
			if len(batch) >= r.cfg.BatchSize {
				write()
			}
		case ack := <-r.flushReq:
			drain()
			write()
			close(ack)
		case <-ticker.C:
			write()
		}
	}
}
