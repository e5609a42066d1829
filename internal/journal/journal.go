// Package journal keeps a rolling window of frame snapshots so a session
// can seek backwards or replay without re-running from frame zero.
package journal

import (
	"sort"
	"sync"
	"time"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

const (
	MetricKeyframesEvicted = "journal_keyframes_evicted"
	MetricKeyframesStored  = "journal_keyframes_stored"
)

// Keyframe is one journaled snapshot. Snapshots are treated as immutable
// once recorded; callers must not mutate the slices they hold.
type Keyframe struct {
	Frame      int
	Snapshot   sim.FrameSnapshot
	RecordedAt time.Time
}

type KeyframeEviction struct {
	Frame  int
	Reason string
}

type KeyframeRecordResult struct {
	Size    int
	Oldest  int
	Newest  int
	Evicted []KeyframeEviction
}

// Journal is a bounded, frame-ordered buffer of keyframes. It is safe for
// concurrent use.
type Journal struct {
	mu        sync.RWMutex
	keyframes []Keyframe
	maxFrames int
	maxAge    time.Duration
	interval  int
	metrics   telemetry.Metrics
	now       func() time.Time
}

// New constructs a journal retaining at most capacity keyframes no older
// than maxAge. A zero maxAge disables age eviction; a zero capacity
// disables the journal.
func New(capacity int, maxAge time.Duration) *Journal {
	if capacity < 0 {
		capacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		keyframes: make([]Keyframe, 0, capacity),
		maxFrames: capacity,
		maxAge:    maxAge,
		interval:  1,
		metrics:   telemetry.NopMetrics(),
		now:       time.Now,
	}
}

// SetInterval records only every n-th frame. Values below 1 record every
// frame.
func (j *Journal) SetInterval(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.interval = max(1, n)
}

func (j *Journal) AttachMetrics(m telemetry.Metrics) {
	if m == nil {
		m = telemetry.NopMetrics()
	}
	j.mu.Lock()
	j.metrics = m
	j.mu.Unlock()
}

// Record stores snap when its frame falls on the recording interval.
// Frames must arrive in increasing order; a frame at or before the newest
// keyframe first truncates the newer history, since the timeline diverged.
func (j *Journal) Record(snap sim.FrameSnapshot) KeyframeRecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return KeyframeRecordResult{}
	}
	if snap.FrameNumber%j.interval != 0 {
		return j.resultLocked(nil)
	}
	j.truncateLocked(snap.FrameNumber - 1)

	frame := Keyframe{Frame: snap.FrameNumber, Snapshot: snap, RecordedAt: j.now()}
	j.keyframes = append(j.keyframes, frame)

	var evicted []KeyframeEviction
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.keyframes) && j.keyframes[idx].RecordedAt.Before(cutoff) {
			evicted = append(evicted, KeyframeEviction{Frame: j.keyframes[idx].Frame, Reason: "expired"})
			idx++
		}
		j.dropFrontLocked(idx)
	}
	if overflow := len(j.keyframes) - j.maxFrames; overflow > 0 {
		for i := 0; i < overflow; i++ {
			evicted = append(evicted, KeyframeEviction{Frame: j.keyframes[i].Frame, Reason: "count"})
		}
		j.dropFrontLocked(overflow)
	}

	j.metrics.Add(MetricKeyframesEvicted, uint64(len(evicted)))
	j.metrics.Store(MetricKeyframesStored, uint64(len(j.keyframes)))
	return j.resultLocked(evicted)
}

func (j *Journal) dropFrontLocked(n int) {
	if n <= 0 {
		return
	}
	copy(j.keyframes, j.keyframes[n:])
	clear(j.keyframes[len(j.keyframes)-n:])
	j.keyframes = j.keyframes[:len(j.keyframes)-n]
}

func (j *Journal) resultLocked(evicted []KeyframeEviction) KeyframeRecordResult {
	result := KeyframeRecordResult{Size: len(j.keyframes), Evicted: evicted}
	if result.Size > 0 {
		result.Oldest = j.keyframes[0].Frame
		result.Newest = j.keyframes[result.Size-1].Frame
	}
	return result
}

// Truncate drops every keyframe after frame.
func (j *Journal) Truncate(frame int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.truncateLocked(frame)
	j.metrics.Store(MetricKeyframesStored, uint64(len(j.keyframes)))
}

func (j *Journal) truncateLocked(frame int) {
	idx := sort.Search(len(j.keyframes), func(i int) bool { return j.keyframes[i].Frame > frame })
	clear(j.keyframes[idx:])
	j.keyframes = j.keyframes[:idx]
}

func (j *Journal) Reset() {
	j.Truncate(-1)
}

// Nearest returns the newest keyframe at or before frame.
func (j *Journal) Nearest(frame int) (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	idx := sort.Search(len(j.keyframes), func(i int) bool { return j.keyframes[i].Frame > frame })
	if idx == 0 {
		return Keyframe{}, false
	}
	return j.keyframes[idx-1], true
}

// At returns the keyframe recorded for exactly frame.
func (j *Journal) At(frame int) (Keyframe, bool) {
	k, ok := j.Nearest(frame)
	if !ok || k.Frame != frame {
		return Keyframe{}, false
	}
	return k, true
}

// Range returns the keyframes with from <= frame <= to in order.
func (j *Journal) Range(from, to int) []Keyframe {
	j.mu.RLock()
	defer j.mu.RUnlock()
	lo := sort.Search(len(j.keyframes), func(i int) bool { return j.keyframes[i].Frame >= from })
	hi := sort.Search(len(j.keyframes), func(i int) bool { return j.keyframes[i].Frame > to })
	if lo >= hi {
		return nil
	}
	return append([]Keyframe(nil), j.keyframes[lo:hi]...)
}

// Keyframes exposes the buffer in chronological order. The slice is a copy.
func (j *Journal) Keyframes() []Keyframe {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return nil
	}
	return append([]Keyframe(nil), j.keyframes...)
}

// Window reports the current retention window.
func (j *Journal) Window() (size, oldest, newest int) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	r := j.resultLocked(nil)
	return r.Size, r.Oldest, r.Newest
}
