package combat

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// System holds the combat rules. It needs the world only to keep slot
// bookkeeping straight when death damage kills a unit.
type System struct {
	world *units.World
}

func NewSystem(world *units.World) *System {
	return &System{world: world}
}

// CollectAttackEvents records the attacker's hit on target plus any splash
// on the other candidates. Only attacker-local state changes: a ready
// charge is consumed.
func (s *System) CollectAttackEvents(attacker, target *units.Unit, candidates []*units.Unit, events *FrameEvents) {
	if target == nil || target.IsDead {
		return
	}
	damage := attacker.EffectiveDamage()
	events.AddDamage(attacker.Ref(), target.Ref(), damage, DamageNormal)

	if splash, ok := units.FindAbility[units.Splash](attacker.Abilities); ok {
		collectSplash(attacker, target, damage, splash, candidates, events)
	}
	if effect, ok := units.FindAbility[units.StatusEffect](attacker.Abilities); ok {
		events.AddStatus(StatusEvent{
			Source:    attacker.Ref(),
			Target:    target.Ref(),
			Effect:    effect.Effect,
			Duration:  effect.Duration,
			Magnitude: effect.Magnitude,
		})
	}
	attacker.OnAttackPerformed()
}

func collectSplash(attacker, primary *units.Unit, damage int, splash units.Splash, candidates []*units.Unit, events *FrameEvents) {
	for _, other := range candidates {
		if other == primary || other.IsDead || !attacker.CanAttack(other) {
			continue
		}
		distance := primary.Position.Dist(other.Position)
		if distance > splash.Radius {
			continue
		}
		amount := damage
		if splash.Falloff > 0 {
			factor := 1 - distance/splash.Radius*splash.Falloff
			amount = int(float64(damage) * math.Max(0, factor))
		}
		if amount > 0 {
			events.AddDamage(attacker.Ref(), other.Ref(), amount, DamageSplash)
		}
	}
}

// CollectTowerAttack records a unit's hit on a tower.
func (s *System) CollectTowerAttack(attacker *units.Unit, tower *units.Tower, events *FrameEvents) {
	if tower == nil || tower.Destroyed() {
		return
	}
	events.AddDamage(attacker.Ref(), tower.Ref(), attacker.EffectiveDamage(), DamageNormal)
	attacker.OnAttackPerformed()
}

// CollectTowerShot records a tower's hit on a unit.
func (s *System) CollectTowerShot(tower *units.Tower, target *units.Unit, events *FrameEvents) {
	if target == nil || target.IsDead {
		return
	}
	events.AddDamage(tower.Ref(), target.Ref(), tower.Damage, DamageNormal)
}

// CreateDeathSpawnRequests lays the death spawns of a unit on a circle
// around where it fell.
func (s *System) CreateDeathSpawnRequests(dead *units.Unit) []SpawnRequest {
	spawn, ok := units.FindAbility[units.DeathSpawn](dead.Abilities)
	if !ok || spawn.Count <= 0 {
		return nil
	}
	reqs := make([]SpawnRequest, 0, spawn.Count)
	for i := 0; i < spawn.Count; i++ {
		angle := 2 * math.Pi / float64(spawn.Count) * float64(i)
		offset := geom.V(math.Cos(angle), math.Sin(angle)).Scale(spawn.Radius)
		reqs = append(reqs, SpawnRequest{
			UnitID:   spawn.UnitID,
			Position: dead.Position.Add(offset),
			Faction:  dead.Faction,
			HP:       spawn.HP,
		})
	}
	return reqs
}

// ApplyDeathDamage hits every living candidate inside the blast radius of
// dead and pushes survivors outward. It returns the candidates the blast
// killed, in candidate order, and the hits it landed.
func (s *System) ApplyDeathDamage(dead *units.Unit, candidates []*units.Unit) ([]*units.Unit, []DamageEvent) {
	blast, ok := units.FindAbility[units.DeathDamage](dead.Abilities)
	if !ok || blast.Damage <= 0 {
		return nil, nil
	}
	var killed []*units.Unit
	var hits []DamageEvent
	for _, c := range candidates {
		if c.IsDead || c == dead {
			continue
		}
		if dead.Position.Dist(c.Position) > blast.Radius {
			continue
		}
		hits = append(hits, DamageEvent{Source: dead.Ref(), Target: c.Ref(), Amount: blast.Damage, Kind: DamageDeath})
		if s.damage(c, blast.Damage) {
			killed = append(killed, c)
			continue
		}
		if blast.Knockback > 0 && !blocksKnockback(c) {
			dir := c.Position.Sub(dead.Position).Normalize()
			c.Position = c.Position.Add(dir.Scale(blast.Knockback))
		}
	}
	return killed, hits
}

func (s *System) damage(u *units.Unit, amount int) bool {
	if s.world != nil {
		return s.world.Damage(u, amount)
	}
	return u.TakeDamage(amount)
}

func blocksKnockback(u *units.Unit) bool {
	shield, ok := units.FindAbility[units.Shield](u.Abilities)
	return ok && shield.BlocksKnockback && u.ShieldHP > 0
}

// UpdateChargeState starts a run-up once the unit is far enough from its
// target and tracks the distance covered. Losing the target resets it.
func (s *System) UpdateChargeState(u *units.Unit, target geom.Vec2, hasTarget bool) {
	if u.Charge == nil {
		return
	}
	charge, ok := units.FindAbility[units.Charge](u.Abilities)
	if !ok {
		return
	}
	if !hasTarget {
		u.Charge.Reset()
		return
	}
	if !u.Charge.Charging && u.Position.Dist(target) >= charge.TriggerDistance {
		u.Charge.StartCharge(u.Position, charge.RequiredDistance)
	}
	u.Charge.UpdateDistance(u.Position)
}
