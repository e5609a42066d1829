package terrain

import "github.com/clover-storm/unit-simulator/internal/geom"

const (
	MapWidth  = 720.0
	MapHeight = 1200.0

	RiverYMin = 580.0
	RiverYMax = 620.0

	LeftBridgeXMin  = 100.0
	LeftBridgeXMax  = 200.0
	RightBridgeXMin = 520.0
	RightBridgeXMax = 620.0
)

// Rect is an axis-aligned region in map space, inclusive on all edges.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Contains(p geom.Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) Center() geom.Vec2 {
	return geom.V((r.MinX+r.MaxX)/2, (r.MinY+r.MaxY)/2)
}

// Layout is the fixed arena: map bounds, a horizontal river band splitting
// the friendly half (bottom) from the enemy half (top), and the bridge
// corridors that cross it.
type Layout struct {
	Width     float64
	Height    float64
	RiverYMin float64
	RiverYMax float64
	Bridges   []Rect
}

// DefaultLayout returns the standard two-bridge arena.
func DefaultLayout() Layout {
	return Layout{
		Width:     MapWidth,
		Height:    MapHeight,
		RiverYMin: RiverYMin,
		RiverYMax: RiverYMax,
		Bridges: []Rect{
			{MinX: LeftBridgeXMin, MinY: RiverYMin, MaxX: LeftBridgeXMax, MaxY: RiverYMax},
			{MinX: RightBridgeXMin, MinY: RiverYMin, MaxX: RightBridgeXMax, MaxY: RiverYMax},
		},
	}
}

func (l Layout) WithinBounds(p geom.Vec2) bool {
	return p.X >= 0 && p.X <= l.Width && p.Y >= 0 && p.Y <= l.Height
}

func (l Layout) ClampToBounds(p geom.Vec2) geom.Vec2 {
	return geom.V(geom.Clamp(p.X, 0, l.Width), geom.Clamp(p.Y, 0, l.Height))
}

func (l Layout) InRiver(p geom.Vec2) bool {
	return p.Y >= l.RiverYMin && p.Y <= l.RiverYMax
}

func (l Layout) OnBridge(p geom.Vec2) bool {
	for _, b := range l.Bridges {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

// GroundWalkable reports whether a ground unit may stand at p.
func (l Layout) GroundWalkable(p geom.Vec2) bool {
	if !l.WithinBounds(p) {
		return false
	}
	return !l.InRiver(p) || l.OnBridge(p)
}
