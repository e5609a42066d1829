// Package avoidance computes local steering corrections that keep moving
// units from running into each other.
package avoidance

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

const (
	// MaxLookahead bounds the prediction window, in frames.
	MaxLookahead  = 30.0
	AngleStep     = math.Pi / 10
	MaxIterations = 8

	minSeparation = 1e-4
)

// Result is the outcome of one steering query. Target and Threat are
// diagnostics and are only set while the unit is actually detouring.
type Result struct {
	Vector    geom.Vec2
	Target    geom.Vec2
	Threat    units.Ref
	Detouring bool
}

type risk struct {
	rel      geom.Vec2
	distance float64
	combined float64
	threat   units.Ref
}

// Steer returns the avoidance vector for mover against others. The vector
// is zero when no other unit threatens the mover within the lookahead.
func Steer(mover *units.Unit, others []*units.Unit) Result {
	moverRadius := mover.Radius * units.CollisionRadiusScale
	minSpeed := math.Max(mover.Speed, 0.001)
	heading := baseDirection(mover)

	var risks []risk
	for _, other := range others {
		if other == mover || other.IsDead {
			continue
		}
		if r, ok := assess(mover, other, moverRadius, minSpeed, heading); ok {
			risks = append(risks, r)
		}
	}
	if len(risks) == 0 {
		return Result{}
	}

	primary := risks[0]
	for _, r := range risks[1:] {
		if r.distance < primary.distance {
			primary = r
		}
	}
	weight := geom.Clamp(primary.distance/(moverRadius+0.001), 1, 3)

	for i := 0; i <= MaxIterations; i++ {
		for _, angle := range candidateAngles(i) {
			candidate := heading.Rotate(angle)
			if !isClear(candidate, risks) {
				continue
			}
			if math.Abs(angle) <= 0.001 {
				return Result{Vector: candidate.Scale(weight)}
			}
			return Result{
				Vector:    candidate.Scale(weight),
				Target:    mover.Position.Add(candidate.Scale(math.Max(primary.distance, moverRadius*2))),
				Threat:    primary.threat,
				Detouring: true,
			}
		}
	}

	away := primary.rel.Neg().Normalize()
	return Result{
		Vector:    away.Scale(weight),
		Target:    mover.Position.Add(away.Scale(math.Max(primary.distance, moverRadius*2))),
		Threat:    primary.threat,
		Detouring: true,
	}
}

// assess classifies other as a risk: an analytic collision inside the
// window first, then the closest approach of both trajectories, then a
// static cone along the heading for slow or stationary obstacles.
func assess(mover, other *units.Unit, moverRadius, minSpeed float64, heading geom.Vec2) (risk, bool) {
	combined := moverRadius + other.Radius*units.CollisionRadiusScale
	window := math.Min(combined*2/minSpeed, MaxLookahead)
	rel := other.Position.Sub(mover.Position)
	relVel := other.Velocity.Sub(mover.Velocity)

	if t, ok := geom.FirstCollisionTime(mover.Position, mover.Velocity, other.Position, other.Velocity, combined); ok && t <= window {
		atCollision := rel.Add(relVel.Scale(t))
		if d := atCollision.Len(); d > minSeparation {
			return risk{rel: atCollision, distance: d, combined: combined, threat: other.Ref()}, true
		}
	}

	tClosest := 0.0
	if speedSq := relVel.LenSq(); speedSq >= minSeparation {
		tClosest = math.Max(-rel.Dot(relVel)/speedSq, 0)
	}
	future := rel.Add(relVel.Scale(tClosest)).Len()
	if future < combined && tClosest <= window && future > minSeparation {
		return risk{rel: rel, distance: rel.Len(), combined: combined, threat: other.Ref()}, true
	}

	projection := rel.Dot(heading)
	lookahead := mover.Speed*MaxLookahead + combined
	if projection > 0 && projection <= lookahead {
		lateral := rel.Sub(heading.Scale(projection))
		if lateral.Len() < combined {
			return risk{rel: rel, distance: projection, combined: combined, threat: other.Ref()}, true
		}
	}
	return risk{}, false
}

func baseDirection(u *units.Unit) geom.Vec2 {
	if u.Velocity.LenSq() > minSeparation {
		return u.Velocity.Normalize()
	}
	return u.Forward
}

// candidateAngles yields the straight heading first, then pairs of
// deflections alternating left and right.
func candidateAngles(i int) []float64 {
	if i == 0 {
		return []float64{0}
	}
	step := AngleStep * float64(i)
	return []float64{step, -step}
}

// isClear reports whether a ray along direction passes every risk.
func isClear(direction geom.Vec2, risks []risk) bool {
	for _, r := range risks {
		projection := r.rel.Dot(direction)
		if projection < 0 || projection > r.distance {
			continue
		}
		if r.rel.Sub(direction.Scale(projection)).Len() < r.combined {
			return false
		}
	}
	return true
}
