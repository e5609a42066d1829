package geom

import "math"

const epsilon = 1e-4

// Vec2 is a 2D vector in simulation space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zero is the zero vector.
var Zero = Vec2{}

// UnitX points along the positive X axis.
var UnitX = Vec2{X: 1}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

func (v Vec2) Neg() Vec2 { return Vec2{X: -v.X, Y: -v.Y} }

func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

func (v Vec2) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

func (v Vec2) Len() float64 { return math.Sqrt(v.LenSq()) }

// Dist returns the euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalize returns the unit vector along v, or the zero vector when v is
// too short to have a direction.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < epsilon {
		return Zero
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// Rotate turns v counter-clockwise by angle radians.
func (v Vec2) Rotate(angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

// Angle returns the heading of v in radians.
func (v Vec2) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// WrapAngle maps an angle difference into (-pi, pi].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// FirstCollisionTime solves for the earliest non-negative time at which two
// circles moving with constant velocity touch. Circles that already overlap
// collide at time zero.
func FirstCollisionTime(posA, velA, posB, velB Vec2, combinedRadius float64) (float64, bool) {
	rel := posB.Sub(posA)
	relVel := velB.Sub(velA)
	c := rel.LenSq() - combinedRadius*combinedRadius
	if c <= 0 {
		return 0, true
	}
	a := relVel.LenSq()
	if a < epsilon {
		return 0, false
	}
	b := 2 * rel.Dot(relVel)
	if b >= 0 {
		// moving apart
		return 0, false
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 {
		return 0, false
	}
	return t, true
}
