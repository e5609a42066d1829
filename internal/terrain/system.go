package terrain

import "github.com/clover-storm/unit-simulator/internal/geom"

// Mover is the view of a unit the terrain rules need.
type Mover interface {
	Pos() geom.Vec2
	Airborne() bool
}

// System applies river and bridge constraints to movement.
type System struct {
	layout Layout
}

func NewSystem(layout Layout) *System {
	return &System{layout: layout}
}

func (s *System) Layout() Layout {
	return s.layout
}

// CanMoveTo reports whether the unit may occupy position. Air units only
// respect the map bounds.
func (s *System) CanMoveTo(m Mover, position geom.Vec2) bool {
	if m.Airborne() {
		return s.layout.WithinBounds(position)
	}
	return s.layout.GroundWalkable(position)
}

// AdjustedDestination clamps destination to the map and, for a ground unit
// whose move would cross the river away from a bridge, substitutes the
// center of the nearest bridge so the trip happens in two legs.
func (s *System) AdjustedDestination(m Mover, destination geom.Vec2) geom.Vec2 {
	if m.Airborne() {
		return s.layout.ClampToBounds(destination)
	}
	from := m.Pos()
	if !s.crossesRiver(from, destination) {
		return s.layout.ClampToBounds(destination)
	}
	if s.layout.OnBridge(from) || s.layout.OnBridge(destination) {
		return s.layout.ClampToBounds(destination)
	}
	if bridge, ok := s.nearestBridge(from); ok {
		return bridge
	}
	return s.layout.ClampToBounds(destination)
}

func (s *System) crossesRiver(from, to geom.Vec2) bool {
	fromLower := from.Y < s.layout.RiverYMin
	fromUpper := from.Y > s.layout.RiverYMax
	toLower := to.Y < s.layout.RiverYMin
	toUpper := to.Y > s.layout.RiverYMax
	return (fromLower && toUpper) || (fromUpper && toLower)
}

// nearestBridge picks the closest bridge center; earlier bridges win ties.
func (s *System) nearestBridge(p geom.Vec2) (geom.Vec2, bool) {
	best := geom.Zero
	bestDist := -1.0
	for _, b := range s.layout.Bridges {
		c := b.Center()
		d := p.Dist(c)
		if bestDist < 0 || d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best, bestDist >= 0
}
