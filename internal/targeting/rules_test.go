package targeting

import (
	"testing"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

func unitAt(id int, faction units.Faction, x, y float64, mask units.TargetMask) *units.Unit {
	return units.NewUnit(units.Spec{ID: id, Faction: faction, Position: geom.V(x, y), HP: 10, CanTarget: mask})
}

func TestSelectTargetNearestFirst(t *testing.T) {
	attacker := unitAt(1, units.Friendly, 0, 0, units.TargetGround|units.TargetBuilding)
	near := unitAt(1, units.Enemy, 50, 0, units.TargetGround)
	far := unitAt(2, units.Enemy, 200, 0, units.TargetGround)
	tower := units.NewTower(1, units.Enemy, units.TowerPrincess, geom.V(10, 0))

	got := SelectTarget(attacker, []*units.Unit{far, near}, []*units.Tower{tower})
	if got.Unit != near {
		t.Fatalf("expected nearest unit, got %+v", got)
	}

	near.IsDead, far.IsDead = true, true
	got = SelectTarget(attacker, []*units.Unit{far, near}, []*units.Tower{tower})
	if got.Tower != tower {
		t.Fatalf("expected tower fallback once enemies are dead, got %+v", got)
	}
}

func TestSelectTargetNoTowerWhileEnemiesLive(t *testing.T) {
	// Ground-only attacker cannot hit the flyer, but a living enemy still
	// keeps it from turning to towers.
	attacker := unitAt(1, units.Friendly, 0, 0, units.TargetGround|units.TargetBuilding)
	flyer := units.NewUnit(units.Spec{ID: 1, Faction: units.Enemy, Layer: units.Air, Position: geom.V(30, 0), HP: 10})
	tower := units.NewTower(1, units.Enemy, units.TowerPrincess, geom.V(10, 0))

	got := SelectTarget(attacker, []*units.Unit{flyer}, []*units.Tower{tower})
	if !got.None() {
		t.Fatalf("expected no target, got %+v", got)
	}
}

func TestSelectTargetBuildingsPriority(t *testing.T) {
	attacker := units.NewUnit(units.Spec{ID: 1, Faction: units.Friendly, HP: 10,
		CanTarget: units.TargetGround | units.TargetBuilding, Priority: units.PriorityBuildings})
	enemy := unitAt(1, units.Enemy, 5, 0, units.TargetGround)
	nearTower := units.NewTower(1, units.Enemy, units.TowerPrincess, geom.V(300, 0))
	farTower := units.NewTower(2, units.Enemy, units.TowerKing, geom.V(600, 0))

	got := SelectTarget(attacker, []*units.Unit{enemy}, []*units.Tower{farTower, nearTower})
	if got.Tower != nearTower {
		t.Fatalf("expected nearest tower, got %+v", got)
	}
	if got.Ref() != nearTower.Ref() {
		t.Fatalf("unexpected ref %v", got.Ref())
	}

	nearTower.HP, farTower.HP = 0, 0
	got = SelectTarget(attacker, []*units.Unit{enemy}, []*units.Tower{farTower, nearTower})
	if got.Unit != enemy {
		t.Fatalf("expected unit fallback with no standing tower, got %+v", got)
	}
}

func TestSelectTowerTargetNeedsBuildingBit(t *testing.T) {
	attacker := unitAt(1, units.Friendly, 0, 0, units.TargetGroundAndAir)
	tower := units.NewTower(1, units.Enemy, units.TowerPrincess, geom.V(10, 0))
	if SelectTowerTarget(attacker, []*units.Tower{tower}) != nil {
		t.Fatalf("units without the building bit must ignore towers")
	}
}

func TestTowerSelectUnit(t *testing.T) {
	princess := units.NewTower(1, units.Friendly, units.TowerPrincess, geom.V(0, 0))
	inRange := unitAt(1, units.Enemy, 250, 0, units.TargetGround)
	closer := unitAt(2, units.Enemy, 100, 0, units.TargetGround)
	outOfRange := unitAt(3, units.Enemy, 500, 0, units.TargetGround)

	if got := TowerSelectUnit(princess, []*units.Unit{outOfRange, inRange, closer}); got != closer {
		t.Fatalf("expected closest unit in range, got %+v", got)
	}

	king := units.NewTower(2, units.Friendly, units.TowerKing, geom.V(0, 0))
	if got := TowerSelectUnit(king, []*units.Unit{closer}); got != nil {
		t.Fatalf("dormant king must not shoot, got %+v", got)
	}
	king.Activated = true
	if got := TowerSelectUnit(king, []*units.Unit{closer}); got != closer {
		t.Fatalf("activated king should shoot, got %+v", got)
	}
}
