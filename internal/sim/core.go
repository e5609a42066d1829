// Package sim owns one simulation: the rosters, the frame-keyed command
// queue and the frame loop that runs behavior and combat in a fixed order.
// A Core is not safe for concurrent use; callers serialize access.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/clover-storm/unit-simulator/internal/behavior"
	"github.com/clover-storm/unit-simulator/internal/combat"
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/match"
	"github.com/clover-storm/unit-simulator/internal/pathfinding"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/internal/terrain"
	"github.com/clover-storm/unit-simulator/internal/units"
	"github.com/clover-storm/unit-simulator/internal/waves"
	"github.com/clover-storm/unit-simulator/logging"
	simlog "github.com/clover-storm/unit-simulator/logging/simulation"
)

var (
	// ErrNotInitialized is returned when stepping a Core before Initialize.
	ErrNotInitialized = errors.New("simulation not initialized")
	// ErrUnknownUnit marks commands that address a unit not in the roster.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Completion reasons reported to listeners.
const (
	ReasonAllWavesCleared  = "all_waves_cleared"
	ReasonMaxFramesReached = "max_frames_reached"
	ReasonMatchOver        = "match_over"
	ReasonStopped          = "stopped"
	ReasonCanceled         = "canceled"
)

const DefaultMaxFrames = 3000

// Status is the lifecycle state of a Core.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitialized   Status = "initialized"
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
)

// Config fixes the arena and the optional game modes of a Core.
type Config struct {
	Layout    terrain.Layout
	MaxFrames int
	// Towers places the default tower set and enables win evaluation.
	Towers bool
	// Waves spawns the enemy wave table.
	Waves    bool
	Registry *units.Registry
}

func DefaultConfig() Config {
	return Config{
		Layout:    terrain.DefaultLayout(),
		MaxFrames: DefaultMaxFrames,
		Towers:    true,
		Waves:     true,
		Registry:  units.DefaultRegistry(),
	}
}

// Deps carries the shared infrastructure a Core reports to.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

type Core struct {
	cfg  Config
	deps Deps

	world    *units.World
	terrain  *terrain.System
	paths    *pathfinding.Pathfinder
	combat   *combat.System
	resolver *combat.Resolver
	events   combat.FrameEvents
	queue    *CommandQueue
	waves    *waves.Manager
	judge    *match.Evaluator

	frame            int
	nextID           [2]int
	mainTarget       geom.Vec2
	status           Status
	match            match.State
	allWavesCleared  bool
	maxFramesReached bool
	// pendingWave is the wave whose spawns sit in the queue for the next
	// frame, or 0.
	pendingWave      int
	stopRequested    atomic.Bool

	listeners []Listener
}

func NewCore(cfg Config, deps Deps) *Core {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	if cfg.Layout.Width <= 0 || cfg.Layout.Height <= 0 {
		cfg.Layout = terrain.DefaultLayout()
	}
	if cfg.Registry == nil {
		cfg.Registry = units.DefaultRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	world := units.NewWorld()
	system := combat.NewSystem(world)
	c := &Core{
		cfg:     cfg,
		deps:    deps,
		world:   world,
		terrain: terrain.NewSystem(cfg.Layout),
		paths:   pathfinding.NewPathfinder(pathfinding.FromLayout(cfg.Layout, pathfinding.DefaultCellSize)),
		combat:  system,
		queue:   NewCommandQueue(),
		waves:   waves.NewManager(cfg.Layout.Width),
		judge:   match.NewEvaluator(),
		status:  StatusUninitialized,
		match:   match.State{Result: match.InProgress},
	}
	c.resolver = combat.NewResolver(world, system, c)
	return c
}

// AddListener registers l for every later notification.
func (c *Core) AddListener(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

func (c *Core) World() *units.World   { return c.world }
func (c *Core) Frame() int            { return c.frame }
func (c *Core) Status() Status        { return c.status }
func (c *Core) MainTarget() geom.Vec2 { return c.mainTarget }
func (c *Core) PendingCommands() int  { return c.queue.Len() }
func (c *Core) Config() Config        { return c.cfg }

// Initialize seeds the friendly squad, the towers and the first wave.
// Calling it on an initialized Core is a no-op.
func (c *Core) Initialize() {
	if c.status != StatusUninitialized {
		return
	}
	w, h := c.cfg.Layout.Width, c.cfg.Layout.Height
	c.mainTarget = geom.V(w/2, 100)

	seed := []struct {
		role units.Role
		pos  geom.Vec2
	}{
		{units.Melee, geom.V(w/2-45, h-200)},
		{units.Melee, geom.V(w/2+45, h-200)},
		{units.Ranged, geom.V(w/2-75, h-120)},
		{units.Ranged, geom.V(w/2+75, h-120)},
	}
	for _, s := range seed {
		c.world.Add(c.newUnit(units.Friendly, SpawnCommand{Position: s.pos, Role: s.role}))
	}
	if c.cfg.Towers {
		for _, t := range units.DefaultTowers(w, h) {
			c.world.AddTower(t)
		}
	}
	if c.cfg.Waves {
		c.queueWave(c.waves.Start(), c.frame)
	}
	c.status = StatusInitialized
	c.stateChanged("simulation initialized")
}

// Reset discards all state and initializes again.
func (c *Core) Reset() {
	c.world.Clear()
	c.queue.Clear()
	c.events.Clear()
	c.frame = 0
	c.nextID = [2]int{}
	c.match = match.State{Result: match.InProgress}
	c.allWavesCleared = false
	c.maxFramesReached = false
	c.pendingWave = 0
	c.stopRequested.Store(false)
	c.waves.SetWave(0)
	c.status = StatusUninitialized
	c.Initialize()
}

// EnqueueCommand schedules cmd. Invalid commands are rejected at once.
func (c *Core) EnqueueCommand(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		c.reject(cmd, err)
		return err
	}
	c.queue.Push(cmd)
	c.deps.Metrics.Store(telemetry.MetricQueueDepth, uint64(c.queue.Len()))
	return nil
}

// Step advances exactly one frame: due commands, status timers, enemy,
// friendly and tower behavior, the combat apply phase, wave and win
// checks, then the snapshot. Listeners see the snapshot before the frame
// counter advances.
func (c *Core) Step() (FrameSnapshot, error) {
	if c.status == StatusUninitialized {
		return FrameSnapshot{}, ErrNotInitialized
	}

	var fallen []*units.Unit
	c.pendingWave = 0
	for _, cmd := range c.queue.PopDue(c.frame) {
		dead, err := c.execute(cmd)
		if err != nil {
			c.reject(cmd, err)
			continue
		}
		fallen = append(fallen, dead...)
		c.deps.Metrics.Add(telemetry.MetricCommandsApplied, 1)
	}

	for _, f := range []units.Faction{units.Enemy, units.Friendly} {
		for _, u := range c.world.Units(f) {
			if !u.IsDead {
				u.TickEffects()
			}
		}
	}

	c.events.Clear()
	env := &behavior.Env{
		World:   c.world,
		Terrain: c.terrain,
		Paths:   c.paths,
		Combat:  c.combat,
		Events:  &c.events,
	}
	behavior.Enemy{}.Update(env)
	behavior.Squad{}.Update(env, c.mainTarget)
	behavior.Towers{}.Update(env)

	c.report(c.resolver.Apply(&c.events, fallen...))
	c.events.Clear()

	c.advanceWaves()
	if c.cfg.Towers {
		c.judge.Evaluate(&c.match, c.world, c.frame)
	}
	if c.frame+1 >= c.cfg.MaxFrames {
		c.maxFramesReached = true
	}

	snap := c.Snapshot()
	for _, l := range c.listeners {
		l.OnFrameGenerated(snap)
	}
	c.frame++
	c.deps.Metrics.Add(telemetry.MetricFramesStepped, 1)
	c.deps.Metrics.Store(telemetry.MetricQueueDepth, uint64(c.queue.Len()))
	return snap, nil
}

// Done reports whether the run has ended and why.
func (c *Core) Done() (string, bool) {
	switch {
	case c.match.Result != "" && c.match.Result != match.InProgress:
		return ReasonMatchOver, true
	case c.allWavesCleared:
		return ReasonAllWavesCleared, true
	case c.maxFramesReached:
		return ReasonMaxFramesReached, true
	}
	return "", false
}

// Run steps until the run ends, Stop is called or ctx is done. It returns
// the completion reason.
func (c *Core) Run(ctx context.Context) (string, error) {
	if c.status == StatusUninitialized {
		return "", ErrNotInitialized
	}
	c.stopRequested.Store(false)
	c.status = StatusRunning
	c.stateChanged("simulation running")

	reason := ""
	for reason == "" {
		if r, done := c.Done(); done {
			reason = r
			break
		}
		select {
		case <-ctx.Done():
			reason = ReasonCanceled
			continue
		default:
		}
		if c.stopRequested.Load() {
			reason = ReasonStopped
			continue
		}
		if _, err := c.Step(); err != nil {
			return "", err
		}
	}
	c.complete(reason)
	if reason == ReasonCanceled {
		return reason, ctx.Err()
	}
	return reason, nil
}

// Stop asks a running Run loop to return after the current frame. It is
// the one method safe to call from another goroutine.
func (c *Core) Stop() {
	c.stopRequested.Store(true)
}

// Tick steps one frame for callers that pace the loop themselves. When the
// run has ended it completes the Core once and reports the reason; later
// calls return that reason without stepping.
func (c *Core) Tick() (FrameSnapshot, string, error) {
	if reason, done := c.Done(); done {
		if c.status != StatusCompleted {
			c.complete(reason)
		}
		return c.Snapshot(), reason, nil
	}
	if c.status == StatusInitialized {
		c.status = StatusRunning
		c.stateChanged("simulation running")
	}
	snap, err := c.Step()
	if err != nil {
		return snap, "", err
	}
	if reason, done := c.Done(); done {
		c.complete(reason)
		return snap, reason, nil
	}
	return snap, "", nil
}

// Pause returns a running Core to the initialized state.
func (c *Core) Pause() {
	if c.status != StatusRunning {
		return
	}
	c.status = StatusInitialized
	c.stateChanged("simulation paused")
}

func (c *Core) complete(reason string) {
	if reason == ReasonStopped || reason == ReasonCanceled {
		c.status = StatusInitialized
	} else {
		c.status = StatusCompleted
	}
	for _, l := range c.listeners {
		l.OnSimulationComplete(c.frame, reason)
	}
	simlog.Completed(context.Background(), c.deps.Publisher, uint64(c.frame), simlog.CompletedPayload{
		Reason:       reason,
		Result:       string(c.match.Result),
		WinCondition: string(c.match.Condition),
	})
}

// Snapshot renders the current state. The result shares no memory with
// the Core.
func (c *Core) Snapshot() FrameSnapshot {
	snap := FrameSnapshot{
		FrameNumber:      c.frame,
		MainTarget:       c.mainTarget,
		CurrentWave:      c.waves.Current(),
		HasMoreWaves:     c.cfg.Waves && c.waves.HasMoreWaves(),
		PendingWave:      c.pendingWave,
		AllWavesCleared:  c.allWavesCleared,
		MaxFramesReached: c.maxFramesReached,
		Result:           c.match.Result,
		WinCondition:     c.match.Condition,
		Overtime:         c.match.Overtime,
	}
	snap.FriendlyUnits = make([]UnitState, 0, len(c.world.Units(units.Friendly)))
	for _, u := range c.world.Units(units.Friendly) {
		snap.FriendlyUnits = append(snap.FriendlyUnits, unitState(u))
	}
	snap.EnemyUnits = make([]UnitState, 0, len(c.world.Units(units.Enemy)))
	for _, u := range c.world.Units(units.Enemy) {
		snap.EnemyUnits = append(snap.EnemyUnits, unitState(u))
	}
	for _, t := range c.world.AllTowers() {
		snap.Towers = append(snap.Towers, towerState(t))
	}
	return snap
}

// LoadState replaces the whole world with snap. Nothing changes when the
// snapshot does not parse. Targets are not restored; units re-acquire
// them on the next frame.
//
// A snapshot describes the state after frame snap.FrameNumber, so the
// next step produces frame snap.FrameNumber+1. Queued commands are
// dropped, except that a wave the snapshot marks as pending is queued
// again for that next frame.
func (c *Core) LoadState(snap FrameSnapshot) error {
	friendly, err := c.restoreRoster(snap.FriendlyUnits, units.Friendly)
	if err != nil {
		return fmt.Errorf("load friendly roster: %w", err)
	}
	enemy, err := c.restoreRoster(snap.EnemyUnits, units.Enemy)
	if err != nil {
		return fmt.Errorf("load enemy roster: %w", err)
	}
	towers := make([]*units.Tower, 0, len(snap.Towers))
	for _, ts := range snap.Towers {
		t, err := restoreTower(ts)
		if err != nil {
			return fmt.Errorf("load tower %d: %w", ts.ID, err)
		}
		towers = append(towers, t)
	}

	c.world.Replace(friendly, enemy, towers)
	c.queue.Clear()
	c.events.Clear()
	c.frame = snap.FrameNumber + 1
	c.mainTarget = snap.MainTarget
	c.nextID[units.Friendly] = c.world.MaxID(units.Friendly)
	c.nextID[units.Enemy] = c.world.MaxID(units.Enemy)
	c.waves.SetWave(snap.CurrentWave)
	c.pendingWave = 0
	if snap.PendingWave > 0 && c.cfg.Waves {
		c.pushWave(c.waves.Spawns(snap.PendingWave), c.frame)
		c.pendingWave = snap.PendingWave
	}
	c.allWavesCleared = snap.AllWavesCleared
	c.maxFramesReached = snap.MaxFramesReached
	c.match = match.State{Result: snap.Result, Condition: snap.WinCondition, Overtime: snap.Overtime}
	if c.match.Result == "" {
		c.match.Result = match.InProgress
	}
	c.status = StatusInitialized

	simlog.StateLoaded(context.Background(), c.deps.Publisher, uint64(snap.FrameNumber), simlog.StateLoadedPayload{
		Friendly: len(friendly),
		Enemy:    len(enemy),
		Towers:   len(towers),
	})
	c.stateChanged(fmt.Sprintf("state loaded from frame %d", snap.FrameNumber))
	return nil
}

func (c *Core) restoreRoster(states []UnitState, faction units.Faction) ([]*units.Unit, error) {
	out := make([]*units.Unit, 0, len(states))
	seen := make(map[int]struct{}, len(states))
	for _, s := range states {
		u, err := restoreUnit(s, faction, c.cfg.Registry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit id %d", u.ID)
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

// ClearFriendlyAttackSlots drops every reservation enemies hold on
// friendly units, resetting the attackers' slot indices to match.
func (c *Core) ClearFriendlyAttackSlots() {
	for _, u := range c.world.Units(units.Friendly) {
		for i := 0; i < units.NumAttackSlots; i++ {
			if owner := c.world.Unit(units.Enemy, u.SlotOwner(i)); owner != nil && owner.TakenSlotIndex == i {
				owner.TakenSlotIndex = -1
			}
		}
		u.ClearSlots()
	}
	c.stateChanged("friendly attack slots cleared")
}

// SpawnRequested builds a unit for a death spawn. It satisfies
// combat.Spawner.
func (c *Core) SpawnRequested(req combat.SpawnRequest) (*units.Unit, error) {
	pos := c.cfg.Layout.ClampToBounds(req.Position)
	u, err := c.cfg.Registry.Spawn(req.UnitID, c.allocateID(req.Faction), req.Faction, pos, req.HP)
	if err != nil {
		c.nextID[req.Faction]--
		return nil, err
	}
	c.world.Add(u)
	return u, nil
}

func (c *Core) allocateID(f units.Faction) int {
	c.nextID[f]++
	return c.nextID[f]
}

// advanceWaves queues the next wave once every enemy is dead, or marks the
// run cleared after the last one.
func (c *Core) advanceWaves() {
	if !c.cfg.Waves || c.allWavesCleared || c.world.Living(units.Enemy) > 0 {
		return
	}
	if c.waves.TryAdvance() {
		c.queueWave(c.waves.Spawns(c.waves.Current()), c.frame+1)
		c.stateChanged(fmt.Sprintf("wave %d incoming", c.waves.Current()))
		return
	}
	c.allWavesCleared = true
}

func (c *Core) queueWave(spawns []waves.Spawn, frame int) {
	c.pushWave(spawns, frame)
	c.pendingWave = c.waves.Current()
	simlog.WaveStarted(context.Background(), c.deps.Publisher, uint64(frame), simlog.WaveStartedPayload{
		Wave:   c.waves.Current(),
		Spawns: len(spawns),
	})
}

func (c *Core) pushWave(spawns []waves.Spawn, frame int) {
	for _, s := range spawns {
		c.queue.Push(Spawn(frame, s.Faction, SpawnCommand{
			Position:  s.Position,
			Role:      s.Role,
			HP:        s.HP,
			Speed:     s.Speed,
			TurnSpeed: s.TurnSpeed,
		}))
	}
}

func (c *Core) stateChanged(description string) {
	for _, l := range c.listeners {
		l.OnStateChanged(description)
	}
}

func (c *Core) unitEvent(e UnitEvent) {
	e.Frame = c.frame
	for _, l := range c.listeners {
		l.OnUnitEvent(e)
	}
}

func (c *Core) reject(cmd Command, err error) {
	c.deps.Metrics.Add(telemetry.MetricCommandsDropped, 1)
	c.deps.Logger.Printf("sim: frame %d: %s ignored: %v", c.frame, cmd, err)
	actor := logging.EntityRef{Kind: logging.EntityKindSim}
	if cmd.UnitID > 0 {
		actor = logging.EntityRef{ID: units.UnitRef(cmd.Faction, cmd.UnitID).String(), Kind: logging.EntityKindUnit}
	}
	simlog.CommandRejected(context.Background(), c.deps.Publisher, uint64(c.frame), actor, simlog.CommandRejectedPayload{
		Command: string(cmd.Type),
		Reason:  err.Error(),
	})
}
