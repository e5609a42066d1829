package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/storage"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/internal/units"
	"github.com/clover-storm/unit-simulator/logging/lifecycle"
	"github.com/clover-storm/unit-simulator/logging/sinks"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSessions = 2
	cfg.TickRate = 200
	cfg.Sim.Towers = false
	cfg.Sim.Waves = false
	return cfg
}

func newManager(t *testing.T, cfg Config, deps Deps) *Manager {
	t.Helper()
	m := NewManager(cfg, deps)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func receive(t *testing.T, c *Client, want MessageType) Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				t.Fatalf("client channel closed while waiting for %s", want)
			}
			if msg.Type == want {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestManagerLimitsAndLookup(t *testing.T) {
	counters := telemetry.NewCounters()
	mem := sinks.NewMemorySink()
	m := newManager(t, testConfig(), Deps{Metrics: counters, Publisher: mem})
	ctx := context.Background()

	a, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateWithID(ctx, "named"); err != nil {
		t.Fatalf("create named: %v", err)
	}
	if _, err := m.Create(ctx); !errors.Is(err, ErrSessionLimit) {
		t.Fatalf("expected ErrSessionLimit, got %v", err)
	}
	if _, err := m.CreateWithID(ctx, "named"); !errors.Is(err, ErrSessionExists) && !errors.Is(err, ErrSessionLimit) {
		t.Fatalf("expected duplicate id rejected, got %v", err)
	}

	got, err := m.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("expected lookup to return the session")
	}
	if len(m.List()) != 2 || counters.Get(telemetry.MetricSessionsActive) != 2 {
		t.Fatalf("expected two active sessions")
	}

	if err := m.Remove(a.ID()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.Get(a.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Remove(a.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected second remove to fail, got %v", err)
	}
	if _, err := a.Step(ctx, 1); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session to refuse requests, got %v", err)
	}
	if len(mem.OfType(lifecycle.EventSessionCreated)) != 2 || len(mem.OfType(lifecycle.EventSessionClosed)) != 1 {
		t.Fatalf("expected lifecycle events for create and close")
	}
}

func TestSessionStepBroadcastsFrames(t *testing.T) {
	m := newManager(t, testConfig(), Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)
	c := s.Attach("viewer", "observer")

	snap, err := s.Step(ctx, 5)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if snap.FrameNumber != 4 {
		t.Fatalf("expected frame 4, got %d", snap.FrameNumber)
	}
	msg := receive(t, c, MessageFrame)
	if frame := msg.Data.(sim.FrameSnapshot); frame.FrameNumber != 0 {
		t.Fatalf("expected frames in order, got %d first", frame.FrameNumber)
	}

	current, err := s.Snapshot(ctx)
	if err != nil || !reflect.DeepEqual(current, snap) {
		t.Fatalf("snapshot must return the last frame")
	}
	if info := s.Info(); info.Frame != 5 || info.Clients != 1 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestSessionSeekReplaysCommands(t *testing.T) {
	m := newManager(t, testConfig(), Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)

	if err := s.Enqueue(ctx, sim.Kill(5, units.Friendly, 1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.Step(ctx, 10); err != nil {
		t.Fatalf("step: %v", err)
	}
	want, ok := s.Journal().At(2)
	if !ok {
		t.Fatalf("expected frame 2 journaled")
	}

	back, err := s.Seek(ctx, 2)
	if err != nil {
		t.Fatalf("seek back: %v", err)
	}
	if !reflect.DeepEqual(back, want.Snapshot) || back.FriendlyUnits[0].IsDead {
		t.Fatalf("seek must restore the journaled frame")
	}

	forward, err := s.Seek(ctx, 8)
	if err != nil {
		t.Fatalf("seek forward: %v", err)
	}
	if forward.FrameNumber != 8 || !forward.FriendlyUnits[0].IsDead {
		t.Fatalf("expected the recorded kill replayed by frame 8")
	}

	if _, err := s.Seek(ctx, -1); err == nil {
		t.Fatalf("expected negative seek to fail")
	}
}

func TestSessionSeekToWaveClearFrameContinuesWaves(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.Waves = true
	m := newManager(t, cfg, Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)

	first, err := s.Step(ctx, 1)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	for _, e := range first.EnemyUnits {
		if err := s.Enqueue(ctx, sim.Kill(1, units.Enemy, e.ID)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	s.Step(ctx, 5)
	want, ok := s.Journal().At(2)
	if !ok {
		t.Fatalf("expected frame 2 journaled")
	}
	if want.Snapshot.CurrentWave != 2 || want.Snapshot.LivingCount(units.Enemy) == 0 {
		t.Fatalf("expected wave 2 alive at frame 2, got wave %d", want.Snapshot.CurrentWave)
	}

	cleared, err := s.Seek(ctx, 1)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if cleared.PendingWave != 2 {
		t.Fatalf("expected wave 2 pending at frame 1, got %d", cleared.PendingWave)
	}
	got, err := s.Step(ctx, 1)
	if err != nil {
		t.Fatalf("step after seek: %v", err)
	}
	if got.FrameNumber != 2 || got.CurrentWave != 2 || got.LivingCount(units.Enemy) != want.Snapshot.LivingCount(units.Enemy) {
		t.Fatalf("seek diverged: frame %d wave %d living %d, want wave 2 living %d",
			got.FrameNumber, got.CurrentWave, got.LivingCount(units.Enemy), want.Snapshot.LivingCount(units.Enemy))
	}
	for i, e := range got.EnemyUnits {
		if w := want.Snapshot.EnemyUnits[i]; e.ID != w.ID || e.Position != w.Position || e.HP != w.HP {
			t.Fatalf("enemy %d differs after seek: %+v vs %+v", e.ID, e, w)
		}
	}
}

func TestSessionSeekBeforeJournalRestarts(t *testing.T) {
	cfg := testConfig()
	cfg.JournalCapacity = 3
	m := newManager(t, cfg, Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)

	s.Step(ctx, 20)
	snap, err := s.Seek(ctx, 4)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if snap.FrameNumber != 4 {
		t.Fatalf("expected frame 4 replayed from the start, got %d", snap.FrameNumber)
	}
}

func TestSessionResetAndLoadState(t *testing.T) {
	m := newManager(t, testConfig(), Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)

	saved, _ := s.Step(ctx, 10)
	s.Step(ctx, 10)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if info := s.Info(); info.Frame != 0 {
		t.Fatalf("expected frame 0 after reset, got %d", info.Frame)
	}
	if size, _, _ := s.Journal().Window(); size != 0 {
		t.Fatalf("reset must clear the journal")
	}

	if err := s.LoadState(ctx, saved); err != nil {
		t.Fatalf("load: %v", err)
	}
	if info := s.Info(); info.Frame != saved.FrameNumber+1 {
		t.Fatalf("expected next frame %d, got %d", saved.FrameNumber+1, info.Frame)
	}
	bad := saved
	bad.FriendlyUnits = append([]sim.UnitState(nil), saved.FriendlyUnits...)
	bad.FriendlyUnits[0].Role = "Wizard"
	if err := s.LoadState(ctx, bad); err == nil {
		t.Fatalf("expected malformed snapshot rejected")
	}
}

func TestSessionPlayPause(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.MaxFrames = 5
	m := newManager(t, cfg, Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)
	c := s.Attach("viewer", "observer")

	if err := s.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}
	msg := receive(t, c, MessageComplete)
	if payload := msg.Data.(CompletePayload); payload.Reason != sim.ReasonMaxFramesReached {
		t.Fatalf("unexpected completion %+v", payload)
	}
	if err := s.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if info := s.Info(); info.Playing || info.Status != string(sim.StatusCompleted) {
		t.Fatalf("unexpected info after completion %+v", info)
	}
	if err := s.Play(ctx); !errors.Is(err, ErrRunEnded) {
		t.Fatalf("expected ErrRunEnded, got %v", err)
	}
}

func TestCleanupRemovesIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cfg := testConfig()
	cfg.IdleTimeout = time.Minute
	m := newManager(t, cfg, Deps{Clock: clock.Now})
	ctx := context.Background()

	watched, _ := m.Create(ctx)
	idle, _ := m.Create(ctx)
	c := watched.Attach("viewer", "observer")

	clock.Advance(2 * time.Minute)
	if n := m.Cleanup(); n != 1 {
		t.Fatalf("expected one idle session removed, got %d", n)
	}
	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle session should be gone")
	}

	watched.Detach("viewer")
	if _, ok := <-c.Messages(); ok {
		t.Fatalf("detached client channel must be closed")
	}
	if n := m.Cleanup(); n != 0 {
		t.Fatalf("detach counts as activity")
	}
	clock.Advance(2 * time.Minute)
	if n := m.Cleanup(); n != 1 || m.Len() != 0 {
		t.Fatalf("expected the detached session removed")
	}
}

func TestManagerCloseShutsSessionsDown(t *testing.T) {
	m := NewManager(testConfig(), Deps{})
	ctx := context.Background()
	s, _ := m.Create(ctx)
	c := s.Attach("viewer", "observer")

	if err := m.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	msg := receive(t, c, MessageError)
	if msg.Data.(ErrorPayload).Message == "" {
		t.Fatalf("expected a shutdown notice")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("session loop must be stopped")
	}
	if _, err := m.Create(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed manager to refuse sessions, got %v", err)
	}
}

func TestSessionPersistsFrames(t *testing.T) {
	store, err := storage.Open(storage.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	cfg := testConfig()
	cfg.Recorder = storage.RecorderConfig{Every: 5, BatchSize: 2, FlushInterval: time.Hour, Buffer: 64}
	m := newManager(t, cfg, Deps{Store: store})
	ctx := context.Background()
	s, _ := m.Create(ctx)

	s.Step(ctx, 20)
	if err := m.Remove(s.ID()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rec, err := store.Session(ctx, s.ID())
	if err != nil || rec.CloseReason != ReasonClosed || rec.LastFrame != 20 {
		t.Fatalf("unexpected session record %+v (%v)", rec, err)
	}
	if n, _ := store.CountSnapshots(ctx, s.ID()); n != 4 {
		t.Fatalf("expected 4 persisted frames, got %d", n)
	}
}

func TestClientDropsAndCatchesUp(t *testing.T) {
	c := newClient("slow", "observer", 2)
	for i := 0; i < 2; i++ {
		if _, ok := c.deliver(Message{Type: MessageFrame, Data: i}); ok {
			t.Fatalf("buffered delivery must not signal")
		}
	}
	signal, ok := c.deliver(Message{Type: MessageFrame, Data: 2})
	if !ok || signal.Dropped != 1 || !c.Lagging() {
		t.Fatalf("expected the first drop to mark the client lagging")
	}
	c.deliver(Message{Type: MessageFrame, Data: 3})
	if c.Dropped() != 2 {
		t.Fatalf("expected two drops, got %d", c.Dropped())
	}
	first := <-c.Messages()
	second := <-c.Messages()
	if first.Data != 1 || second.Data != 3 {
		t.Fatalf("expected oldest message evicted for the newest, got %v %v", first.Data, second.Data)
	}

	c.close()
	c.close()
	if _, ok := c.deliver(Message{Type: MessageFrame}); ok {
		t.Fatalf("closed client must ignore deliveries")
	}
}
