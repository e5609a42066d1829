package behavior

import (
	"github.com/clover-storm/unit-simulator/internal/targeting"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// Enemy drives the enemy side. Units without a target stand still.
type Enemy struct{}

func (Enemy) Update(env *Env) {
	enemies := env.World.Units(units.Enemy)
	friendlies := env.World.Units(units.Friendly)
	towers := env.World.Towers(units.Friendly)

	for _, u := range enemies {
		if u.IsDead {
			continue
		}
		coolDown(u)
		if u.Stunned() {
			halt(u)
			continue
		}
		others := neighbours(u, enemies, friendlies)
		if followCommandedPath(env, u, others) {
			continue
		}
		target := acquire(env, u, friendlies, towers)
		if target.None() {
			env.Combat.UpdateChargeState(u, u.Position, false)
			halt(u)
			continue
		}
		engage(env, u, target, friendlies, others)
	}
}

// Towers drives every standing tower: pick the nearest unit in range and
// fire when the cooldown allows.
type Towers struct{}

func (Towers) Update(env *Env) {
	for _, t := range env.World.AllTowers() {
		if t.Destroyed() {
			continue
		}
		if t.AttackCooldown > 0 {
			t.AttackCooldown--
		}
		target := towerTarget(env, t)
		if target == nil {
			t.Target = units.Ref{}
			continue
		}
		t.Target = target.Ref()
		if t.AttackCooldown <= 0 {
			env.Combat.CollectTowerShot(t, target, env.Events)
			t.AttackCooldown = units.TowerCooldownFrames
		}
	}
}

// towerTarget keeps the current target while it stays in range.
func towerTarget(env *Env, t *units.Tower) *units.Unit {
	if current := env.World.ResolveUnit(t.Target); current != nil && t.CanAttack(current) {
		return current
	}
	return targeting.TowerSelectUnit(t, env.World.Units(t.Faction.Opponent()))
}
