package journal

import (
	"testing"
	"time"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

func frame(n int) sim.FrameSnapshot {
	return sim.FrameSnapshot{FrameNumber: n}
}

func TestJournalEvictsByCount(t *testing.T) {
	j := New(3, 0)
	counters := telemetry.NewCounters()
	j.AttachMetrics(counters)

	var result KeyframeRecordResult
	for i := 0; i < 5; i++ {
		result = j.Record(frame(i))
	}
	if result.Size != 3 || result.Oldest != 2 || result.Newest != 4 {
		t.Fatalf("unexpected window %+v", result)
	}
	if len(result.Evicted) != 1 || result.Evicted[0].Frame != 1 || result.Evicted[0].Reason != "count" {
		t.Fatalf("expected frame 1 evicted by count, got %+v", result.Evicted)
	}
	if counters.Get(MetricKeyframesEvicted) != 2 || counters.Get(MetricKeyframesStored) != 3 {
		t.Fatalf("unexpected metrics %v", counters.Snapshot())
	}
}

func TestJournalEvictsByAge(t *testing.T) {
	j := New(10, time.Second)
	now := time.Unix(100, 0)
	j.now = func() time.Time { return now }

	j.Record(frame(0))
	now = now.Add(500 * time.Millisecond)
	j.Record(frame(1))
	now = now.Add(700 * time.Millisecond)
	result := j.Record(frame(2))

	if result.Size != 2 || result.Oldest != 1 {
		t.Fatalf("expected frame 0 expired, got %+v", result)
	}
	if result.Evicted[0].Reason != "expired" {
		t.Fatalf("unexpected eviction reason %q", result.Evicted[0].Reason)
	}
}

func TestJournalNearestAndRange(t *testing.T) {
	j := New(100, 0)
	j.SetInterval(10)
	for i := 0; i <= 45; i++ {
		j.Record(frame(i))
	}

	cases := []struct {
		name  string
		frame int
		want  int
		found bool
	}{
		{"exact", 20, 20, true},
		{"between", 37, 30, true},
		{"past newest", 99, 40, true},
		{"before oldest", -1, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, ok := j.Nearest(tc.frame)
			if ok != tc.found || (ok && k.Frame != tc.want) {
				t.Fatalf("Nearest(%d) = %d %v, want %d %v", tc.frame, k.Frame, ok, tc.want, tc.found)
			}
		})
	}

	if _, ok := j.At(25); ok {
		t.Fatalf("frame 25 is off the interval and must not be journaled")
	}
	got := j.Range(10, 30)
	if len(got) != 3 || got[0].Frame != 10 || got[2].Frame != 30 {
		t.Fatalf("unexpected range %+v", got)
	}
}

func TestJournalRecordTruncatesDivergedHistory(t *testing.T) {
	j := New(10, 0)
	for i := 0; i < 6; i++ {
		j.Record(frame(i))
	}
	j.Record(frame(3))
	size, oldest, newest := j.Window()
	if size != 4 || oldest != 0 || newest != 3 {
		t.Fatalf("expected history after frame 3 dropped, got %d %d %d", size, oldest, newest)
	}

	j.Truncate(1)
	if size, _, newest := j.Window(); size != 2 || newest != 1 {
		t.Fatalf("expected truncate to keep frames 0 and 1, got %d newest %d", size, newest)
	}
	j.Reset()
	if size, _, _ := j.Window(); size != 0 {
		t.Fatalf("expected empty journal after reset")
	}
}

func TestJournalDisabled(t *testing.T) {
	j := New(0, 0)
	if result := j.Record(frame(0)); result.Size != 0 {
		t.Fatalf("disabled journal must not store keyframes")
	}
	if _, ok := j.Nearest(0); ok {
		t.Fatalf("disabled journal has no keyframes")
	}
}

func TestPolicySignalsAfterDrops(t *testing.T) {
	p := NewPolicy()
	for i := 0; i < 5000; i++ {
		p.NoteDelivered()
	}
	p.NoteDropped("frame", "client-1")
	if _, ok := p.Consume(); ok {
		t.Fatalf("a single drop in 5000 must stay below the threshold")
	}
	for i := 0; i < 4; i++ {
		p.NoteDropped("frame", "client-1")
	}
	signal, ok := p.Consume()
	if !ok || signal.Dropped != 5 || len(signal.Reasons) != 5 {
		t.Fatalf("expected resync signal, got %+v %v", signal, ok)
	}
	if _, ok := p.Consume(); ok {
		t.Fatalf("signal must reset after consume")
	}
	if signal.Summary() == "" {
		t.Fatalf("expected summary text")
	}
}
