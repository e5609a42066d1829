package terrain

import (
	"testing"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

type stubMover struct {
	pos geom.Vec2
	air bool
}

func (m stubMover) Pos() geom.Vec2  { return m.pos }
func (m stubMover) Airborne() bool { return m.air }

func TestAdjustedDestination(t *testing.T) {
	sys := NewSystem(DefaultLayout())
	leftBridge := geom.V((LeftBridgeXMin+LeftBridgeXMax)/2, (RiverYMin+RiverYMax)/2)
	rightBridge := geom.V((RightBridgeXMin+RightBridgeXMax)/2, (RiverYMin+RiverYMax)/2)

	tests := []struct {
		name  string
		mover stubMover
		dest  geom.Vec2
		want  geom.Vec2
	}{
		{name: "same side passes through", mover: stubMover{pos: geom.V(100, 100)}, dest: geom.V(600, 200), want: geom.V(600, 200)},
		{name: "clamped to bounds", mover: stubMover{pos: geom.V(100, 100)}, dest: geom.V(-50, 2000), want: geom.V(0, MapHeight)},
		{name: "crossing redirects to left bridge", mover: stubMover{pos: geom.V(300, 100)}, dest: geom.V(300, 1000), want: leftBridge},
		{name: "crossing redirects to right bridge", mover: stubMover{pos: geom.V(600, 1000)}, dest: geom.V(600, 100), want: rightBridge},
		{name: "already on bridge", mover: stubMover{pos: leftBridge}, dest: geom.V(150, 1000), want: geom.V(150, 1000)},
		{name: "destination on bridge", mover: stubMover{pos: geom.V(150, 100)}, dest: rightBridge, want: rightBridge},
		{name: "air ignores river", mover: stubMover{pos: geom.V(600, 100), air: true}, dest: geom.V(600, 1000), want: geom.V(600, 1000)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sys.AdjustedDestination(tc.mover, tc.dest)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestNearestBridgeTieFavoursLeft(t *testing.T) {
	sys := NewSystem(DefaultLayout())
	mid := (LeftBridgeXMin + LeftBridgeXMax + RightBridgeXMin + RightBridgeXMax) / 4
	got := sys.AdjustedDestination(stubMover{pos: geom.V(mid, 100)}, geom.V(mid, 1000))
	if got.X != (LeftBridgeXMin+LeftBridgeXMax)/2 {
		t.Fatalf("expected left bridge on tie, got %+v", got)
	}
}

func TestCanMoveTo(t *testing.T) {
	sys := NewSystem(DefaultLayout())
	ground := stubMover{pos: geom.V(100, 100)}
	air := stubMover{pos: geom.V(100, 100), air: true}
	river := geom.V(360, 600)
	bridge := geom.V(150, 600)

	if sys.CanMoveTo(ground, river) {
		t.Fatalf("ground unit must not enter the river")
	}
	if !sys.CanMoveTo(ground, bridge) {
		t.Fatalf("ground unit should walk on a bridge")
	}
	if !sys.CanMoveTo(air, river) {
		t.Fatalf("air unit should fly over the river")
	}
	if sys.CanMoveTo(air, geom.V(-1, 10)) {
		t.Fatalf("air unit must stay in bounds")
	}
}
