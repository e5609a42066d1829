package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counters is an in-memory Metrics implementation. Store overwrites the
// value; Add increments it.
type Counters struct {
	values sync.Map
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) slot(key string) *atomic.Uint64 {
	if v, ok := c.values.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := c.values.LoadOrStore(key, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.slot(key).Add(delta)
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.slot(key).Store(value)
}

func (c *Counters) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	if v, ok := c.values.Load(key); ok {
		return v.(*atomic.Uint64).Load()
	}
	return 0
}

// Snapshot copies every recorded value.
func (c *Counters) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if c == nil {
		return out
	}
	c.values.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	return out
}
