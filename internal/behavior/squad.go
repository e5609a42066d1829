package behavior

import (
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// FormationSpacing is the distance between followers in the squad column.
const FormationSpacing = 50.0

// Squad drives the friendly side. With nothing to fight, the first living
// unit leads toward the main target and the rest hold formation behind it.
type Squad struct{}

// Update runs one frame for the friendly roster in roster order.
func (Squad) Update(env *Env, mainTarget geom.Vec2) {
	friendlies := env.World.Units(units.Friendly)
	enemies := env.World.Units(units.Enemy)
	towers := env.World.Towers(units.Enemy)

	var leader *units.Unit
	follower := 0
	for _, u := range friendlies {
		if u.IsDead {
			continue
		}
		coolDown(u)
		if u.Stunned() {
			halt(u)
			continue
		}
		others := neighbours(u, friendlies, enemies)
		if followCommandedPath(env, u, others) {
			continue
		}

		target := acquire(env, u, enemies, towers)
		if !target.None() {
			engage(env, u, target, enemies, others)
			continue
		}
		env.Combat.UpdateChargeState(u, geom.Zero, false)

		if leader == nil {
			leader = u
			u.Destination = mainTarget
			moveToward(env, u, mainTarget, others)
			continue
		}
		follower++
		u.Destination = leader.Position.Add(formationOffset(follower, leader.Position, mainTarget))
		moveToward(env, u, u.Destination, others)
	}
}

// formationOffset places follower i behind the leader, alternating sides.
func formationOffset(i int, leader, goal geom.Vec2) geom.Vec2 {
	forward := goal.Sub(leader).Normalize()
	if forward.IsZero() {
		forward = geom.V(0, -1)
	}
	back := forward.Neg()
	side := geom.V(-forward.Y, forward.X)
	rank := float64((i + 1) / 2)
	if i%2 == 0 {
		side = side.Neg()
	}
	return back.Scale(FormationSpacing * rank).Add(side.Scale(FormationSpacing * 0.75))
}

// followCommandedPath moves a unit along externally issued waypoints. It
// reports false once no commanded waypoints remain.
func followCommandedPath(env *Env, u *units.Unit, others []*units.Unit) bool {
	if !u.HasMovementPath() {
		return false
	}
	wp, ok := u.NextMovementWaypoint()
	if !ok {
		u.ClearMovementPath()
		return false
	}
	u.Destination = wp
	moveToward(env, u, wp, others)
	return true
}
