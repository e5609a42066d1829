// Package behavior holds the per-frame policies that drive each side:
// target acquisition, attack slot upkeep, movement and attack collection.
// Policies only collect combat events; hit points change in the apply phase.
package behavior

import (
	"github.com/clover-storm/unit-simulator/internal/combat"
	"github.com/clover-storm/unit-simulator/internal/pathfinding"
	"github.com/clover-storm/unit-simulator/internal/targeting"
	"github.com/clover-storm/unit-simulator/internal/terrain"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// Env is the frame context shared by all policies.
type Env struct {
	World   *units.World
	Terrain *terrain.System
	// Paths finds detours around blocked ground; nil disables them.
	Paths  *pathfinding.Pathfinder
	Combat *combat.System
	Events *combat.FrameEvents
}

func (env *Env) resolve(ref units.Ref) targeting.Target {
	switch ref.Kind {
	case units.KindUnit:
		if u := env.World.ResolveUnit(ref); u != nil {
			return targeting.Target{Unit: u}
		}
	case units.KindTower:
		if t := env.World.ResolveTower(ref); t != nil {
			return targeting.Target{Tower: t}
		}
	}
	return targeting.Target{}
}

func alive(t targeting.Target) bool {
	switch {
	case t.Unit != nil:
		return !t.Unit.IsDead
	case t.Tower != nil:
		return !t.Tower.Destroyed()
	}
	return false
}
