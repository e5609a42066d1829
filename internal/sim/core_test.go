package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/internal/units"
	"github.com/clover-storm/unit-simulator/logging/sinks"
	simlog "github.com/clover-storm/unit-simulator/logging/simulation"
)

func bareConfig() Config {
	cfg := DefaultConfig()
	cfg.Towers = false
	cfg.Waves = false
	return cfg
}

func newCore(t *testing.T, cfg Config) (*Core, *telemetry.Counters, *sinks.MemorySink) {
	t.Helper()
	counters := telemetry.NewCounters()
	mem := sinks.NewMemorySink()
	c := NewCore(cfg, Deps{Metrics: counters, Publisher: mem})
	c.Initialize()
	return c, counters, mem
}

func step(t *testing.T, c *Core) FrameSnapshot {
	t.Helper()
	snap, err := c.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	return snap
}

func TestStepRequiresInitialize(t *testing.T) {
	c := NewCore(DefaultConfig(), Deps{})
	if _, err := c.Step(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from Run, got %v", err)
	}
}

func TestInitializeSeedsSquadTowersAndFirstWave(t *testing.T) {
	c, _, _ := newCore(t, DefaultConfig())
	if got := len(c.World().Units(units.Friendly)); got != 4 {
		t.Fatalf("expected 4 friendly units, got %d", got)
	}
	if got := len(c.World().AllTowers()); got != 6 {
		t.Fatalf("expected 6 towers, got %d", got)
	}
	if c.PendingCommands() != 6 {
		t.Fatalf("expected first wave queued, got %d commands", c.PendingCommands())
	}

	snap := step(t, c)
	if snap.FrameNumber != 0 || c.Frame() != 1 {
		t.Fatalf("expected frame 0 snapshot and counter 1, got %d and %d", snap.FrameNumber, c.Frame())
	}
	if len(snap.EnemyUnits) != 6 || snap.CurrentWave != 1 || !snap.HasMoreWaves {
		t.Fatalf("expected wave 1 on the field, got %d enemies wave %d", len(snap.EnemyUnits), snap.CurrentWave)
	}
	for i, u := range snap.EnemyUnits {
		if u.ID != i+1 {
			t.Fatalf("expected sequential enemy ids, got %d at %d", u.ID, i)
		}
	}
	if snap.Result != "InProgress" {
		t.Fatalf("expected match in progress, got %q", snap.Result)
	}
}

func TestUnknownUnitCommandIsIgnored(t *testing.T) {
	c, counters, mem := newCore(t, bareConfig())
	if err := c.EnqueueCommand(Kill(0, units.Enemy, 42)); err != nil {
		t.Fatalf("valid command rejected at enqueue: %v", err)
	}
	step(t, c)
	if counters.Get(telemetry.MetricCommandsDropped) != 1 {
		t.Fatalf("expected one dropped command, got %v", counters.Snapshot())
	}
	events := mem.OfType(simlog.EventCommandRejected)
	if len(events) != 1 || events[0].Actor.ID != "E42" {
		t.Fatalf("expected a rejection event for E42, got %+v", events)
	}
	if err := c.EnqueueCommand(Command{Type: "teleport"}); err == nil {
		t.Fatalf("expected invalid command to fail enqueue")
	}
}

func TestSpawnDefaultsAndMoveCommand(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	c.EnqueueCommand(Spawn(0, units.Enemy, SpawnCommand{Position: geom.V(360, 300), Role: units.Ranged}))
	c.EnqueueCommand(Spawn(0, units.Friendly, SpawnCommand{Position: geom.V(-50, 2000), Role: units.Melee, HP: 55}))
	step(t, c)

	enemy := c.World().Unit(units.Enemy, 1)
	if enemy == nil || enemy.HP != units.EnemyHP || enemy.Speed != units.EnemySpeed || enemy.TurnSpeed != units.EnemyTurnSpeed {
		t.Fatalf("unexpected enemy defaults %+v", enemy)
	}
	friend := c.World().Unit(units.Friendly, 5)
	if friend == nil || friend.HP != 55 {
		t.Fatalf("expected friendly id 5 with hp override, got %+v", friend)
	}
	if friend.Position.Y > c.Config().Layout.Height || friend.Position.X < 0 {
		t.Fatalf("spawn position must be clamped, got %+v", friend.Position)
	}

	lead := c.World().Unit(units.Friendly, 1)
	start := lead.Position
	c.EnqueueCommand(Move(c.Frame(), units.Friendly, 1, geom.V(start.X-200, start.Y)))
	step(t, c)
	if lead.Destination != geom.V(start.X-200, start.Y) || lead.Position.X >= start.X {
		t.Fatalf("expected unit to head for its commanded destination, got dest %+v pos %+v", lead.Destination, lead.Position)
	}
}

func TestKillCommandRunsDeathEffects(t *testing.T) {
	c, _, mem := newCore(t, bareConfig())
	var events []UnitEvent
	c.AddListener(ListenerFuncs{Unit: func(e UnitEvent) { events = append(events, e) }})

	c.EnqueueCommand(Spawn(0, units.Enemy, SpawnCommand{Position: geom.V(360, 200), DefinitionID: "elixir_golemite"}))
	step(t, c)
	golem := c.World().Unit(units.Enemy, 1)
	if golem == nil || golem.DefinitionID != "elixir_golemite" {
		t.Fatalf("expected definition spawn, got %+v", golem)
	}

	c.EnqueueCommand(Kill(c.Frame(), units.Enemy, 1))
	step(t, c)
	if !golem.IsDead {
		t.Fatalf("expected golem dead")
	}
	roster := c.World().Units(units.Enemy)
	if len(roster) != 3 || roster[1].DefinitionID != "elixir_blob" || roster[2].DefinitionID != "elixir_blob" {
		t.Fatalf("expected two blobs spawned on death, got %d units", len(roster))
	}
	if roster[1].ID != 2 || roster[2].ID != 3 {
		t.Fatalf("expected blob ids 2 and 3, got %d and %d", roster[1].ID, roster[2].ID)
	}

	var died, spawned int
	for _, e := range events {
		switch e.Type {
		case UnitDied:
			died++
		case UnitSpawned:
			spawned++
		}
	}
	if died != 1 || spawned != 3 {
		t.Fatalf("expected 1 death and 3 spawns, got %d and %d", died, spawned)
	}
	if len(mem.OfType("combat.spawned")) != 2 {
		t.Fatalf("expected spawn events for the blobs")
	}
}

func TestDamageReviveRemoveAndSetHealth(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	u := c.World().Unit(units.Friendly, 1)

	c.EnqueueCommand(Damage(0, units.Friendly, 1, 30))
	step(t, c)
	if u.HP != 70 {
		t.Fatalf("expected 70 hp, got %d", u.HP)
	}

	c.EnqueueCommand(SetHealth(c.Frame(), units.Friendly, 1, 0))
	step(t, c)
	if !u.IsDead || u.HP != 0 {
		t.Fatalf("expected set_health 0 to kill")
	}

	c.EnqueueCommand(Revive(c.Frame(), units.Friendly, 1, 0))
	step(t, c)
	if u.IsDead || u.HP != u.MaxHP {
		t.Fatalf("expected revive to full hp, got dead=%v hp=%d", u.IsDead, u.HP)
	}

	c.EnqueueCommand(SetHealth(c.Frame(), units.Friendly, 1, 250))
	step(t, c)
	if u.HP != 250 || u.MaxHP != 250 {
		t.Fatalf("expected hp and max hp 250, got %d/%d", u.HP, u.MaxHP)
	}

	c.EnqueueCommand(Remove(c.Frame(), units.Friendly, 1))
	snap := step(t, c)
	if c.World().Unit(units.Friendly, 1) != nil || len(snap.FriendlyUnits) != 3 {
		t.Fatalf("expected unit removed from the roster")
	}
}

func TestCommandsForUnknownFactionAreRejected(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	c.EnqueueCommand(Spawn(0, units.Enemy, SpawnCommand{Position: geom.V(360, 100)}))
	step(t, c)

	for _, cmd := range []Command{
		Spawn(c.Frame(), units.Faction(2), SpawnCommand{Position: geom.V(360, 100)}),
		Kill(c.Frame(), units.Faction(7), 1),
	} {
		if err := c.EnqueueCommand(cmd); !errors.Is(err, ErrInvalidFaction) {
			t.Fatalf("%s: expected ErrInvalidFaction, got %v", cmd, err)
		}
	}
	if c.PendingCommands() != 0 {
		t.Fatalf("rejected commands must not be queued")
	}
	step(t, c)
	if e := c.World().Unit(units.Enemy, 1); e == nil || e.IsDead {
		t.Fatalf("enemy 1 must be untouched")
	}
}

func TestDamagingACorpseEmitsNothing(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	var damaged int
	c.AddListener(ListenerFuncs{Unit: func(e UnitEvent) {
		if e.Type == UnitDamaged {
			damaged++
		}
	}})
	c.EnqueueCommand(Kill(0, units.Friendly, 1))
	step(t, c)
	c.EnqueueCommand(Damage(c.Frame(), units.Friendly, 1, 10))
	step(t, c)
	if damaged != 0 {
		t.Fatalf("expected no damage event for a dead unit, got %d", damaged)
	}
}

func TestDeadUnitsStayInRoster(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	c.EnqueueCommand(Kill(0, units.Friendly, 2))
	snap := step(t, c)
	if len(snap.FriendlyUnits) != 4 || !snap.FriendlyUnits[1].IsDead || snap.LivingCount(units.Friendly) != 3 {
		t.Fatalf("expected the corpse to remain in the roster")
	}
}

func TestStepIsDeterministic(t *testing.T) {
	a, _, _ := newCore(t, DefaultConfig())
	b, _, _ := newCore(t, DefaultConfig())
	for i := 0; i < 150; i++ {
		sa := step(t, a)
		sb := step(t, b)
		if !reflect.DeepEqual(sa, sb) {
			t.Fatalf("frame %d diverged", i)
		}
	}
}

func stripTargets(s FrameSnapshot) FrameSnapshot {
	strip := func(in []UnitState) []UnitState {
		out := append([]UnitState(nil), in...)
		for i := range out {
			out[i].Target = ""
		}
		return out
	}
	s.FriendlyUnits = strip(s.FriendlyUnits)
	s.EnemyUnits = strip(s.EnemyUnits)
	s.Towers = append([]TowerState(nil), s.Towers...)
	for i := range s.Towers {
		s.Towers[i].Target = ""
	}
	return s
}

func TestLoadStateRestoresRoster(t *testing.T) {
	a, _, _ := newCore(t, DefaultConfig())
	var snap FrameSnapshot
	for i := 0; i < 60; i++ {
		snap = step(t, a)
	}

	b := NewCore(DefaultConfig(), Deps{})
	if err := b.LoadState(snap); err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.Status() != StatusInitialized || b.Frame() != snap.FrameNumber+1 {
		t.Fatalf("unexpected status %s frame %d", b.Status(), b.Frame())
	}
	if got, want := stripTargets(b.Snapshot()), stripTargets(a.Snapshot()); !reflect.DeepEqual(got, want) {
		t.Fatalf("loaded state differs from the source")
	}
	for _, u := range b.World().Units(units.Friendly) {
		if !u.Target.IsZero() {
			t.Fatalf("targets must not be restored")
		}
	}

	maxEnemy := b.World().MaxID(units.Enemy)
	b.EnqueueCommand(Spawn(b.Frame(), units.Enemy, SpawnCommand{Position: geom.V(360, 100)}))
	step(t, b)
	if b.World().Unit(units.Enemy, maxEnemy+1) == nil {
		t.Fatalf("expected the next enemy id to be %d", maxEnemy+1)
	}
}

func TestLoadStateRejectsMalformedSnapshot(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	before := c.Snapshot()

	cases := []struct {
		name   string
		mutate func(s *FrameSnapshot)
	}{
		{"bad role", func(s *FrameSnapshot) { s.FriendlyUnits[0].Role = "Wizard" }},
		{"bad faction", func(s *FrameSnapshot) { s.FriendlyUnits[0].Faction = "Neutral" }},
		{"wrong roster", func(s *FrameSnapshot) { s.FriendlyUnits[0].Faction = "Enemy" }},
		{"bad layer", func(s *FrameSnapshot) { s.FriendlyUnits[0].Layer = "Water" }},
		{"empty layer", func(s *FrameSnapshot) { s.FriendlyUnits[0].Layer = "" }},
		{"empty priority", func(s *FrameSnapshot) { s.FriendlyUnits[0].Priority = "" }},
		{"empty target mask", func(s *FrameSnapshot) { s.FriendlyUnits[0].CanTarget = "" }},
		{"duplicate id", func(s *FrameSnapshot) { s.FriendlyUnits[1].ID = s.FriendlyUnits[0].ID }},
		{"bad tower", func(s *FrameSnapshot) { s.Towers = []TowerState{{ID: 1, Faction: "Enemy", Type: "Castle"}} }},
		{"unknown definition", func(s *FrameSnapshot) { s.FriendlyUnits[0].DefinitionID = "dragon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := c.Snapshot()
			snap.FriendlyUnits = append([]UnitState(nil), snap.FriendlyUnits...)
			tc.mutate(&snap)
			if err := c.LoadState(snap); err == nil {
				t.Fatalf("expected load error")
			}
			if !reflect.DeepEqual(c.Snapshot(), before) {
				t.Fatalf("failed load must leave state untouched")
			}
		})
	}
}

func TestLoadStateKeepsEmptyTargetMask(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	snap := c.Snapshot()
	snap.FriendlyUnits = append([]UnitState(nil), snap.FriendlyUnits...)
	snap.FriendlyUnits[0].CanTarget = units.TargetNone.String()
	if err := c.LoadState(snap); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.World().Unit(units.Friendly, snap.FriendlyUnits[0].ID).CanTarget; got != units.TargetNone {
		t.Fatalf("expected None mask restored, got %s", got)
	}
	if c.Snapshot().FriendlyUnits[0].CanTarget != "None" {
		t.Fatalf("None mask must survive a second snapshot")
	}
}

func TestWavesAdvanceUntilCleared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Towers = false
	c, _, _ := newCore(t, cfg)

	for wave := 1; wave <= 3; wave++ {
		snap := step(t, c)
		if snap.CurrentWave != wave {
			t.Fatalf("expected wave %d, got %d", wave, snap.CurrentWave)
		}
		for _, u := range c.World().Units(units.Enemy) {
			if !u.IsDead {
				c.EnqueueCommand(Kill(c.Frame(), units.Enemy, u.ID))
			}
		}
		snap = step(t, c)
		if wave < 3 && snap.AllWavesCleared {
			t.Fatalf("wave %d: cleared too early", wave)
		}
	}
	reason, done := c.Done()
	if !done || reason != ReasonAllWavesCleared {
		t.Fatalf("expected all waves cleared, got %q %v", reason, done)
	}
}

func killLivingEnemies(c *Core) {
	for _, u := range c.World().Units(units.Enemy) {
		if !u.IsDead {
			c.EnqueueCommand(Kill(c.Frame(), units.Enemy, u.ID))
		}
	}
}

func TestLoadStateAtWaveClearKeepsNextWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Towers = false
	ref, _, _ := newCore(t, cfg)
	step(t, ref)
	killLivingEnemies(ref)
	cleared := step(t, ref)
	if cleared.CurrentWave != 2 || cleared.PendingWave != 2 || cleared.LivingCount(units.Enemy) != 0 {
		t.Fatalf("expected wave 2 pending with no living enemies, got wave %d pending %d living %d",
			cleared.CurrentWave, cleared.PendingWave, cleared.LivingCount(units.Enemy))
	}

	loaded := NewCore(cfg, Deps{})
	if err := loaded.LoadState(cleared); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PendingCommands() == 0 || loaded.PendingCommands() != ref.PendingCommands() {
		t.Fatalf("expected the wave spawns queued again, got %d want %d", loaded.PendingCommands(), ref.PendingCommands())
	}

	want := step(t, ref)
	got := step(t, loaded)
	if got.FrameNumber != want.FrameNumber || got.CurrentWave != want.CurrentWave {
		t.Fatalf("replay diverged: frame %d/%d wave %d/%d", got.FrameNumber, want.FrameNumber, got.CurrentWave, want.CurrentWave)
	}
	if got.LivingCount(units.Enemy) == 0 || got.LivingCount(units.Enemy) != want.LivingCount(units.Enemy) {
		t.Fatalf("replay diverged: living %d/%d", got.LivingCount(units.Enemy), want.LivingCount(units.Enemy))
	}
	if !reflect.DeepEqual(stripTargets(got).EnemyUnits, stripTargets(want).EnemyUnits) {
		t.Fatalf("spawned wave differs after load")
	}
	if got.PendingWave != 0 {
		t.Fatalf("pending wave must clear once spawned")
	}

	for i := 0; i < 20; i++ {
		want = step(t, ref)
		got = step(t, loaded)
		if got.CurrentWave != want.CurrentWave || got.AllWavesCleared != want.AllWavesCleared ||
			got.LivingCount(units.Enemy) != want.LivingCount(units.Enemy) {
			t.Fatalf("frame %d diverged: wave %d/%d living %d/%d", want.FrameNumber,
				got.CurrentWave, want.CurrentWave, got.LivingCount(units.Enemy), want.LivingCount(units.Enemy))
		}
	}
}

func TestRunStopsAtMaxFrames(t *testing.T) {
	cfg := bareConfig()
	cfg.MaxFrames = 10
	c, counters, mem := newCore(t, cfg)

	var frames int
	var completed string
	c.AddListener(ListenerFuncs{
		Frame:    func(FrameSnapshot) { frames++ },
		Complete: func(_ int, reason string) { completed = reason },
	})
	reason, err := c.Run(context.Background())
	if err != nil || reason != ReasonMaxFramesReached {
		t.Fatalf("unexpected run result %q %v", reason, err)
	}
	if frames != 10 || c.Frame() != 10 || counters.Get(telemetry.MetricFramesStepped) != 10 {
		t.Fatalf("expected 10 frames, got %d listener, %d core", frames, c.Frame())
	}
	if completed != ReasonMaxFramesReached || c.Status() != StatusCompleted {
		t.Fatalf("expected completion notification, got %q status %s", completed, c.Status())
	}
	if len(mem.OfType(simlog.EventCompleted)) != 1 {
		t.Fatalf("expected a completion event")
	}
}

func TestRunHonoursCancelAndStop(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reason, err := c.Run(ctx)
	if reason != ReasonCanceled || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled run, got %q %v", reason, err)
	}

	c.AddListener(ListenerFuncs{Frame: func(s FrameSnapshot) {
		if s.FrameNumber == 4 {
			c.Stop()
		}
	}})
	reason, err = c.Run(context.Background())
	if err != nil || reason != ReasonStopped || c.Frame() != 5 || c.Status() != StatusInitialized {
		t.Fatalf("expected stop after frame 4, got %q %v frame %d", reason, err, c.Frame())
	}
}

func TestResetRestoresBaseline(t *testing.T) {
	c, _, _ := newCore(t, DefaultConfig())
	for i := 0; i < 20; i++ {
		step(t, c)
	}
	c.Reset()
	fresh, _, _ := newCore(t, DefaultConfig())
	if !reflect.DeepEqual(c.Snapshot(), fresh.Snapshot()) || c.PendingCommands() != fresh.PendingCommands() {
		t.Fatalf("reset did not restore the baseline")
	}
}

func TestClearFriendlyAttackSlots(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	c.EnqueueCommand(Spawn(0, units.Enemy, SpawnCommand{Position: geom.V(360, 300)}))
	step(t, c)
	target := c.World().Unit(units.Friendly, 1)
	attacker := c.World().Unit(units.Enemy, 1)
	attacker.Target = target.Ref()
	slot := target.TryClaimSlot(attacker)
	if slot < 0 {
		t.Fatalf("expected a free slot")
	}

	c.ClearFriendlyAttackSlots()
	if attacker.TakenSlotIndex != -1 || target.SlotOwner(slot) != 0 {
		t.Fatalf("expected slots cleared on both sides")
	}
}

func TestChannelListenerDropsWhenFull(t *testing.T) {
	l := NewChannelListener(1)
	l.OnStateChanged("one")
	l.OnStateChanged("two")
	if l.Dropped() != 1 {
		t.Fatalf("expected one drop, got %d", l.Dropped())
	}
	n := <-l.C()
	if n.Kind != NotifyState || n.Message != "one" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestTickCompletesOnce(t *testing.T) {
	cfg := bareConfig()
	cfg.MaxFrames = 3
	c, _, _ := newCore(t, cfg)

	var completions int
	c.AddListener(ListenerFuncs{Complete: func(int, string) { completions++ }})
	for i := 0; i < 2; i++ {
		if _, reason, err := c.Tick(); err != nil || reason != "" {
			t.Fatalf("tick %d ended early: %q %v", i, reason, err)
		}
	}
	if c.Status() != StatusRunning {
		t.Fatalf("expected running status, got %s", c.Status())
	}
	snap, reason, err := c.Tick()
	if err != nil || reason != ReasonMaxFramesReached || snap.FrameNumber != 2 {
		t.Fatalf("expected completion on frame 2, got %q frame %d", reason, snap.FrameNumber)
	}
	if _, reason, _ := c.Tick(); reason != ReasonMaxFramesReached || c.Frame() != 3 {
		t.Fatalf("completed core must not step again")
	}
	if completions != 1 || c.Status() != StatusCompleted {
		t.Fatalf("expected exactly one completion, got %d", completions)
	}
}

func TestPauseReturnsToInitialized(t *testing.T) {
	c, _, _ := newCore(t, bareConfig())
	c.Pause()
	if c.Status() != StatusInitialized {
		t.Fatalf("pause on an idle core must be a no-op")
	}
	c.Tick()
	c.Pause()
	if c.Status() != StatusInitialized {
		t.Fatalf("expected initialized after pause, got %s", c.Status())
	}
}
