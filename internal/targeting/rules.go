// Package targeting picks what units and towers attack.
package targeting

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/units"
)

// Target is either a unit or a tower; both nil means nothing was found.
type Target struct {
	Unit  *units.Unit
	Tower *units.Tower
}

func (t Target) None() bool { return t.Unit == nil && t.Tower == nil }

// Ref identifies the selected entity, or the zero Ref.
func (t Target) Ref() units.Ref {
	switch {
	case t.Unit != nil:
		return t.Unit.Ref()
	case t.Tower != nil:
		return t.Tower.Ref()
	}
	return units.Ref{}
}

// SelectTarget applies the unit's disposition. Building-first units take
// the nearest tower they can hit and fall back to units. Everyone else
// takes the nearest enemy unit and only turns to towers once no enemy
// unit is alive.
func SelectTarget(u *units.Unit, enemies []*units.Unit, towers []*units.Tower) Target {
	if u.Priority == units.PriorityBuildings {
		if tower := SelectTowerTarget(u, towers); tower != nil {
			return Target{Tower: tower}
		}
		return Target{Unit: SelectUnitTarget(u, enemies)}
	}
	for _, e := range enemies {
		if !e.IsDead {
			// A living enemy exists, even if this unit cannot hit it.
			return Target{Unit: SelectUnitTarget(u, enemies)}
		}
	}
	return Target{Tower: SelectTowerTarget(u, towers)}
}

// SelectUnitTarget returns the nearest living enemy u can attack. Ties keep
// roster order.
func SelectUnitTarget(u *units.Unit, enemies []*units.Unit) *units.Unit {
	var best *units.Unit
	bestDistance := math.MaxFloat64
	for _, e := range enemies {
		if !u.CanAttack(e) {
			continue
		}
		if d := u.Position.Dist(e.Position); d < bestDistance {
			best, bestDistance = e, d
		}
	}
	return best
}

// SelectTowerTarget returns the nearest standing tower u can attack.
func SelectTowerTarget(u *units.Unit, towers []*units.Tower) *units.Tower {
	var best *units.Tower
	bestDistance := math.MaxFloat64
	for _, t := range towers {
		if !u.CanAttackTower(t) {
			continue
		}
		if d := u.Position.Dist(t.Position); d < bestDistance {
			best, bestDistance = t, d
		}
	}
	return best
}

// TowerSelectUnit returns the nearest enemy unit the tower can currently
// hit, or nil.
func TowerSelectUnit(t *units.Tower, enemies []*units.Unit) *units.Unit {
	var best *units.Unit
	bestDistance := math.MaxFloat64
	for _, e := range enemies {
		if !t.CanAttack(e) {
			continue
		}
		if d := t.Position.Dist(e.Position); d < bestDistance {
			best, bestDistance = e, d
		}
	}
	return best
}
