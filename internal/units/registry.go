package units

import (
	"errors"
	"fmt"
	"sort"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

// ErrUnknownDefinition is returned when a unit type id is not registered.
var ErrUnknownDefinition = errors.New("unknown unit definition")

// Definition is the spawnable template of a unit type.
type Definition struct {
	UnitID      string
	DisplayName string
	MaxHP       int
	Damage      int
	AttackRange float64
	MoveSpeed   float64
	TurnSpeed   float64
	Radius      float64
	Role        Role
	Layer       Layer
	CanTarget   TargetMask
	Priority    TargetPriority
	Abilities   []Ability
}

// Registry maps unit type ids to definitions.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns a registry holding the built-in unit types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterAll(DefaultDefinitions())
	return r
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.defs[def.UnitID] = def
}

func (r *Registry) RegisterAll(defs []Definition) {
	for _, def := range defs {
		r.Register(def)
	}
}

func (r *Registry) Definition(id string) (Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.defs[id]
	return ok
}

// IDs lists registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spawn instantiates a unit of the given type. A positive hp overrides the
// definition's hit points.
func (r *Registry) Spawn(defID string, id int, faction Faction, position geom.Vec2, hp int) (*Unit, error) {
	def, ok := r.defs[defID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefinition, defID)
	}
	if hp <= 0 {
		hp = def.MaxHP
	}
	u := NewUnit(Spec{
		ID:           id,
		Faction:      faction,
		Role:         def.Role,
		Layer:        def.Layer,
		CanTarget:    def.CanTarget,
		Priority:     def.Priority,
		DefinitionID: def.UnitID,
		Position:     position,
		Radius:       def.Radius,
		Speed:        def.MoveSpeed,
		TurnSpeed:    def.TurnSpeed,
		AttackRange:  def.AttackRange,
		Damage:       def.Damage,
		HP:           hp,
		Abilities:    def.Abilities,
	})
	u.MaxHP = max(def.MaxHP, hp)
	return u, nil
}

// DefaultDefinitions lists the built-in unit types.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			UnitID: "golemite", DisplayName: "Golemite",
			MaxHP: 900, Damage: 50, AttackRange: 30, MoveSpeed: 3.0, TurnSpeed: 0.1, Radius: 25,
			Role: Melee, Layer: Ground, CanTarget: TargetGround | TargetBuilding, Priority: PriorityBuildings,
			Abilities: []Ability{DeathDamage{Damage: 100, Radius: 40}},
		},
		{
			UnitID: "skeleton", DisplayName: "Skeleton",
			MaxHP: 81, Damage: 81, AttackRange: 25, MoveSpeed: 5.0, TurnSpeed: 0.12, Radius: 15,
			Role: Melee, Layer: Ground, CanTarget: TargetGround | TargetBuilding,
		},
		{
			UnitID: "lava_pup", DisplayName: "Lava Pup",
			MaxHP: 209, Damage: 55, AttackRange: 60, MoveSpeed: 4.5, TurnSpeed: 0.1, Radius: 15,
			Role: Ranged, Layer: Air, CanTarget: TargetAll,
		},
		{
			UnitID: "minion", DisplayName: "Minion",
			MaxHP: 252, Damage: 84, AttackRange: 60, MoveSpeed: 5.0, TurnSpeed: 0.1, Radius: 18,
			Role: Ranged, Layer: Air, CanTarget: TargetAll,
		},
		{
			UnitID: "bat", DisplayName: "Bat",
			MaxHP: 81, Damage: 81, AttackRange: 25, MoveSpeed: 5.5, TurnSpeed: 0.15, Radius: 12,
			Role: Melee, Layer: Air, CanTarget: TargetAll,
		},
		{
			UnitID: "elixir_golemite", DisplayName: "Elixir Golemite",
			MaxHP: 560, Damage: 42, AttackRange: 30, MoveSpeed: 3.5, TurnSpeed: 0.1, Radius: 22,
			Role: Melee, Layer: Ground, CanTarget: TargetGround | TargetBuilding, Priority: PriorityBuildings,
			Abilities: []Ability{DeathSpawn{UnitID: "elixir_blob", Count: 2, Radius: 20}},
		},
		{
			UnitID: "elixir_blob", DisplayName: "Elixir Blob",
			MaxHP: 280, Damage: 21, AttackRange: 25, MoveSpeed: 3.5, TurnSpeed: 0.1, Radius: 18,
			Role: Melee, Layer: Ground, CanTarget: TargetGround | TargetBuilding, Priority: PriorityBuildings,
		},
		{
			UnitID: "guard", DisplayName: "Guard",
			MaxHP: 90, Damage: 90, AttackRange: 30, MoveSpeed: 4.5, TurnSpeed: 0.1, Radius: 18,
			Role: Melee, Layer: Ground, CanTarget: TargetGround | TargetBuilding,
			Abilities: []Ability{Shield{MaxShieldHP: 199}},
		},
	}
}
