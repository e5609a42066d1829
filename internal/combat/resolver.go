package combat

import "github.com/clover-storm/unit-simulator/internal/units"

// Spawner materializes a spawn request into a live unit.
type Spawner interface {
	SpawnRequested(req SpawnRequest) (*units.Unit, error)
}

// Outcome reports what an apply pass changed, in the order it happened.
type Outcome struct {
	Hits      []DamageEvent
	Deaths    []*units.Unit
	Destroyed []*units.Tower
	Spawned   []*units.Unit
	Statuses  []StatusEvent
	Failed    []SpawnFailure
}

// SpawnFailure is a spawn request the spawner rejected.
type SpawnFailure struct {
	Request SpawnRequest
	Err     error
}

// Resolver runs the apply phase against a world.
type Resolver struct {
	world   *units.World
	system  *System
	spawner Spawner
}

func NewResolver(world *units.World, system *System, spawner Spawner) *Resolver {
	return &Resolver{world: world, system: system, spawner: spawner}
}

// Apply lands every collected hit in order, then runs the chain-death
// worklist over the units that died, then creates the requested spawns.
// Hits on missing or dead targets are skipped. Units in fallen died
// earlier in the frame and join the worklist first.
func (r *Resolver) Apply(events *FrameEvents, fallen ...*units.Unit) Outcome {
	var out Outcome
	fallen = append([]*units.Unit(nil), fallen...)

	for _, ev := range events.Damages {
		if ev.Amount <= 0 {
			continue
		}
		switch ev.Target.Kind {
		case units.KindUnit:
			target := r.world.ResolveUnit(ev.Target)
			if target == nil || target.IsDead {
				continue
			}
			out.Hits = append(out.Hits, ev)
			if r.world.Damage(target, ev.Amount) {
				fallen = append(fallen, target)
			}
		case units.KindTower:
			tower := r.world.ResolveTower(ev.Target)
			if tower == nil || tower.Destroyed() {
				continue
			}
			out.Hits = append(out.Hits, ev)
			if tower.TakeDamage(ev.Amount) {
				out.Destroyed = append(out.Destroyed, tower)
				r.wakeKing(tower)
			}
		}
	}

	for _, st := range events.Statuses {
		target := r.world.ResolveUnit(st.Target)
		if target == nil || target.IsDead {
			continue
		}
		if target.ApplyEffect(st.Effect, st.Duration, st.Magnitude) {
			out.Statuses = append(out.Statuses, st)
		}
	}

	r.resolveDeaths(fallen, events, &out)

	for _, req := range events.Spawns {
		if r.spawner == nil {
			break
		}
		u, err := r.spawner.SpawnRequested(req)
		if err != nil {
			out.Failed = append(out.Failed, SpawnFailure{Request: req, Err: err})
			continue
		}
		out.Spawned = append(out.Spawned, u)
	}
	return out
}

// resolveDeaths processes each fallen unit once: its death spawns are
// queued and its death damage may kill more units, which join the queue.
// Death damage only reaches the opposing roster, so the walk terminates.
func (r *Resolver) resolveDeaths(seed []*units.Unit, events *FrameEvents, out *Outcome) {
	processed := make(map[units.Ref]struct{}, len(seed))
	queue := append([]*units.Unit(nil), seed...)
	for len(queue) > 0 {
		dead := queue[0]
		queue = queue[1:]
		ref := dead.Ref()
		if _, seen := processed[ref]; seen {
			continue
		}
		processed[ref] = struct{}{}
		dead.IsDead = true
		out.Deaths = append(out.Deaths, dead)

		events.AddSpawns(r.system.CreateDeathSpawnRequests(dead))

		killed, hits := r.system.ApplyDeathDamage(dead, r.world.Units(dead.Faction.Opponent()))
		out.Hits = append(out.Hits, hits...)
		for _, k := range killed {
			if _, seen := processed[k.Ref()]; !seen {
				queue = append(queue, k)
			}
		}
	}
}

// wakeKing activates the king tower of a faction that lost a princess.
func (r *Resolver) wakeKing(fallen *units.Tower) {
	if fallen.Type != units.TowerPrincess {
		return
	}
	for _, t := range r.world.Towers(fallen.Faction) {
		if t.Type == units.TowerKing {
			t.Activated = true
		}
	}
}
