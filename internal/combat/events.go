// Package combat resolves attacks in two phases. Collect functions only
// record what should happen this frame; Resolver.Apply mutates hit points
// and runs death effects.
package combat

import (
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// DamageKind categorizes a damage event.
type DamageKind uint8

const (
	DamageNormal DamageKind = iota
	DamageSplash
	DamageDeath
	DamageSpell
)

func (k DamageKind) String() string {
	switch k {
	case DamageSplash:
		return "splash"
	case DamageDeath:
		return "death_damage"
	case DamageSpell:
		return "spell"
	}
	return "normal"
}

func (k DamageKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// DamageEvent is one pending hit. Target may be a unit or a tower.
type DamageEvent struct {
	Source units.Ref  `json:"source"`
	Target units.Ref  `json:"target"`
	Amount int        `json:"amount"`
	Kind   DamageKind `json:"kind"`
}

// SpawnRequest asks for a unit of a registered type to be created. A zero
// HP keeps the definition's hit points.
type SpawnRequest struct {
	UnitID   string        `json:"unitId"`
	Position geom.Vec2     `json:"position"`
	Faction  units.Faction `json:"faction"`
	HP       int           `json:"hp,omitempty"`
}

// StatusEvent is a pending status condition from an on-hit ability.
type StatusEvent struct {
	Source    units.Ref
	Target    units.Ref
	Effect    units.EffectKind
	Duration  int
	Magnitude float64
}

// FrameEvents accumulates everything collected during one frame. It is
// discarded after Apply.
type FrameEvents struct {
	Damages  []DamageEvent
	Spawns   []SpawnRequest
	Statuses []StatusEvent
}

func (e *FrameEvents) AddDamage(source, target units.Ref, amount int, kind DamageKind) {
	e.Damages = append(e.Damages, DamageEvent{Source: source, Target: target, Amount: amount, Kind: kind})
}

func (e *FrameEvents) AddSpawn(req SpawnRequest) {
	e.Spawns = append(e.Spawns, req)
}

func (e *FrameEvents) AddSpawns(reqs []SpawnRequest) {
	e.Spawns = append(e.Spawns, reqs...)
}

func (e *FrameEvents) AddStatus(ev StatusEvent) {
	e.Statuses = append(e.Statuses, ev)
}

// Clear empties the buffers but keeps their capacity.
func (e *FrameEvents) Clear() {
	e.Damages = e.Damages[:0]
	e.Spawns = e.Spawns[:0]
	e.Statuses = e.Statuses[:0]
}

func (e *FrameEvents) Empty() bool {
	return len(e.Damages) == 0 && len(e.Spawns) == 0 && len(e.Statuses) == 0
}
