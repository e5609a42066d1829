package behavior

import (
	"github.com/clover-storm/unit-simulator/internal/avoidance"
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// arrival is how close a unit must be to its destination to stop.
const arrival = units.WaypointThreshold / 2

// moveToward advances u one frame toward destination. Terrain adjusts the
// goal, detour waypoints from pathfinding take precedence, and avoidance
// bends the heading around nearby units. A blocked step halts the unit and
// asks the pathfinder for a detour.
func moveToward(env *Env, u *units.Unit, destination geom.Vec2, others []*units.Unit) {
	speed := u.EffectiveSpeed()
	if speed <= 0 {
		halt(u)
		return
	}

	goal := env.Terrain.AdjustedDestination(u, destination)
	if wp, ok := u.NextAvoidanceWaypoint(); ok {
		goal = wp
	} else {
		u.ClearAvoidancePath()
	}

	toGoal := goal.Sub(u.Position)
	distance := toGoal.Len()
	if distance <= arrival {
		halt(u)
		return
	}

	dir := toGoal.Scale(1 / distance)
	steer := avoidance.Steer(u, others)
	if !steer.Vector.IsZero() {
		dir = dir.Add(steer.Vector).Normalize()
		if dir.IsZero() {
			dir = steer.Vector.Normalize()
		}
	}
	u.HasAvoidanceTarget = steer.Detouring
	u.AvoidanceTarget = steer.Target
	u.AvoidanceThreat = steer.Threat

	step := speed
	if distance < step {
		step = distance
	}
	velocity := dir.Scale(step)
	next := u.Position.Add(velocity)
	if !env.Terrain.CanMoveTo(u, next) {
		// Fall back to the unbent heading before asking for a route.
		straight := u.Position.Add(toGoal.Scale(step / distance))
		if !env.Terrain.CanMoveTo(u, straight) {
			halt(u)
			planDetour(env, u, goal)
			return
		}
		velocity = straight.Sub(u.Position)
		next = straight
	}

	u.Velocity = velocity
	u.Position = next
	u.UpdateRotation()
}

// planDetour routes a ground unit around blocked terrain. Without a route
// the unit simply waits for the next frame.
func planDetour(env *Env, u *units.Unit, goal geom.Vec2) {
	if env.Paths == nil || u.Airborne() {
		return
	}
	if path := env.Paths.FindPath(u.Position, goal); len(path) > 0 {
		u.SetAvoidancePath(path)
	}
}

// neighbours lists the living units sharing u's movement layer.
func neighbours(u *units.Unit, rosters ...[]*units.Unit) []*units.Unit {
	var out []*units.Unit
	for _, roster := range rosters {
		for _, other := range roster {
			if other != u && !other.IsDead && other.Layer == u.Layer {
				out = append(out, other)
			}
		}
	}
	return out
}
