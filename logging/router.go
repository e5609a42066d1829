package logging

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink receives routed events on its own goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to sinks without blocking the
// simulation. Publish never waits: a full queue drops the event and counts
// it. Filtering (severity, category, per-type frame sampling) happens on
// the dispatch goroutine.
type Router struct {
	cfg      Config
	clock    Clock
	fallback zerolog.Logger
	fields   map[string]any
	allowed  map[string]bool

	queue   chan Event
	workers []*sinkWorker
	quit    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	routed   atomic.Uint64
	dropped  atomic.Uint64
	filtered atomic.Uint64
	warnings dropWarner

	mu         sync.Mutex
	byCategory map[string]uint64
}

type RouterStats struct {
	EventsTotal   uint64
	DroppedTotal  uint64
	FilteredTotal uint64
	ByCategory    map[string]uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) *Router {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 512
	}
	r := &Router{
		cfg:        cfg,
		clock:      clock,
		fallback:   zerolog.New(os.Stderr).With().Timestamp().Str("component", "logging").Logger(),
		fields:     cfg.CloneFields(),
		queue:      make(chan Event, cfg.BufferSize),
		quit:       make(chan struct{}),
		byCategory: make(map[string]uint64),
	}
	r.warnings.interval = cfg.DropWarnInterval
	if len(cfg.Categories) > 0 {
		r.allowed = make(map[string]bool, len(cfg.Categories))
		for _, c := range cfg.Categories {
			r.allowed[c] = true
		}
	}

	perSink := max(min(cfg.BufferSize, 1024), 32)
	for _, named := range namedSinks {
		if named.Sink != nil {
			r.workers = append(r.workers, &sinkWorker{
				name:     named.Name,
				sink:     named.Sink,
				events:   make(chan Event, perSink),
				fallback: r.fallback,
			})
		}
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatch()
	for _, w := range r.workers {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	return r
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.route(event)
		case <-r.quit:
			for {
				select {
				case event := <-r.queue:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

// accepts applies the configured filters.
func (r *Router) accepts(event Event) bool {
	if event.Severity < r.cfg.MinimumSeverity {
		return false
	}
	if r.allowed != nil && event.Category != "" && !r.allowed[event.Category] {
		return false
	}
	if every := r.cfg.Sample[event.Type]; every > 1 && event.Frame%uint64(every) != 0 {
		return false
	}
	return true
}

func (r *Router) route(event Event) {
	if !r.accepts(event) {
		r.filtered.Add(1)
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, set := event.Extra[k]; !set {
				event.Extra[k] = v
			}
		}
	}
	r.routed.Add(1)
	if event.Category != "" {
		r.mu.Lock()
		r.byCategory[event.Category]++
		r.mu.Unlock()
	}
	for _, w := range r.workers {
		w.enqueue(event)
	}
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		total := r.dropped.Add(1)
		if r.warnings.due(time.Now()) {
			r.fallback.Warn().
				Str("type", string(event.Type)).
				Uint64("frame", event.Frame).
				Uint64("dropped", total).
				Msg("dropping event")
		}
	}
}

// Close stops accepting events, flushes queued ones and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.quit)
	flushed := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	byCategory := make(map[string]uint64, len(r.byCategory))
	for k, v := range r.byCategory {
		byCategory[k] = v
	}
	r.mu.Unlock()
	return RouterStats{
		EventsTotal:   r.routed.Load(),
		DroppedTotal:  r.dropped.Load(),
		FilteredTotal: r.filtered.Load(),
		ByCategory:    byCategory,
	}
}

func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// dropWarner rate limits the queue-full warning.
type dropWarner struct {
	interval time.Duration
	next     atomic.Int64
}

func (d *dropWarner) due(now time.Time) bool {
	interval := d.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	next := d.next.Load()
	if next != 0 && now.UnixNano() < next {
		return false
	}
	return d.next.CompareAndSwap(next, now.Add(interval).UnixNano())
}

// sinkWorker feeds one sink. After a failed write it backs off
// exponentially, up to 3.2s, before the next write.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback zerolog.Logger

	failures int
	resumeAt time.Time
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		w.fallback.Warn().Str("sink", w.name).Str("type", string(event.Type)).Msg("sink backlog full")
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if wait := time.Until(w.resumeAt); w.failures > 0 && wait > 0 {
			time.Sleep(wait)
		}
		err := w.sink.Write(event)
		if err == nil {
			w.failures = 0
			continue
		}
		w.failures++
		backoff := 100 * time.Millisecond << min(w.failures, 5)
		w.resumeAt = time.Now().Add(backoff)
		w.fallback.Error().Err(err).Str("sink", w.name).Dur("retry_in", backoff).Msg("sink write failed")
	}
}
