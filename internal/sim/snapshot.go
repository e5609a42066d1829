package sim

import (
	"fmt"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/match"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// UnitState is the serialized form of a unit. Enums are stored by name so
// snapshots stay readable across builds.
type UnitState struct {
	ID           int    `json:"id"`
	Label        string `json:"label"`
	Faction      string `json:"faction"`
	Role         string `json:"role"`
	Layer        string `json:"layer"`
	CanTarget    string `json:"canTarget"`
	Priority     string `json:"priority"`
	DefinitionID string `json:"definitionId,omitempty"`

	Position geom.Vec2 `json:"position"`
	Velocity geom.Vec2 `json:"velocity"`
	Forward  geom.Vec2 `json:"forward"`

	Radius      float64 `json:"radius"`
	Speed       float64 `json:"speed"`
	TurnSpeed   float64 `json:"turnSpeed"`
	AttackRange float64 `json:"attackRange"`
	Damage      int     `json:"damage"`

	HP             int       `json:"hp"`
	MaxHP          int       `json:"maxHp"`
	ShieldHP       int       `json:"shieldHp,omitempty"`
	Destination    geom.Vec2 `json:"destination"`
	AttackCooldown float64   `json:"attackCooldown"`
	IsDead         bool      `json:"isDead"`

	// Target is informational; it is not restored on load.
	Target             string                     `json:"target,omitempty"`
	TakenSlotIndex     int                        `json:"takenSlotIndex"`
	AttackSlots        [units.NumAttackSlots]int  `json:"attackSlots"`
	HasAvoidanceTarget bool                       `json:"hasAvoidanceTarget"`
	AvoidanceTarget    *geom.Vec2                 `json:"avoidanceTarget,omitempty"`
	Charge             *units.ChargeState         `json:"charge,omitempty"`
	Effects            []units.ActiveEffect       `json:"effects,omitempty"`
}

type TowerState struct {
	ID             int       `json:"id"`
	Faction        string    `json:"faction"`
	Type           string    `json:"type"`
	Position       geom.Vec2 `json:"position"`
	HP             int       `json:"hp"`
	MaxHP          int       `json:"maxHp"`
	AttackCooldown float64   `json:"attackCooldown"`
	Activated      bool      `json:"activated"`
	Destroyed      bool      `json:"destroyed"`
	Target         string    `json:"target,omitempty"`
}

// FrameSnapshot is the complete observable state after frame
// FrameNumber. It shares no memory with the simulation. Loading it
// resumes at FrameNumber+1. PendingWave names a wave whose spawns were
// scheduled but not yet applied.
type FrameSnapshot struct {
	FrameNumber      int             `json:"frameNumber"`
	FriendlyUnits    []UnitState     `json:"friendlyUnits"`
	EnemyUnits       []UnitState     `json:"enemyUnits"`
	Towers           []TowerState    `json:"towers,omitempty"`
	MainTarget       geom.Vec2       `json:"mainTarget"`
	CurrentWave      int             `json:"currentWave"`
	PendingWave      int             `json:"pendingWave,omitempty"`
	HasMoreWaves     bool            `json:"hasMoreWaves"`
	AllWavesCleared  bool            `json:"allWavesCleared"`
	MaxFramesReached bool            `json:"maxFramesReached"`
	Result           match.Result    `json:"result,omitempty"`
	WinCondition     match.Condition `json:"winCondition,omitempty"`
	Overtime         bool            `json:"overtime,omitempty"`
}

// LivingCount returns the number of living units of a faction.
func (s FrameSnapshot) LivingCount(f units.Faction) int {
	roster := s.FriendlyUnits
	if f == units.Enemy {
		roster = s.EnemyUnits
	}
	n := 0
	for _, u := range roster {
		if !u.IsDead {
			n++
		}
	}
	return n
}

func unitState(u *units.Unit) UnitState {
	s := UnitState{
		ID:                 u.ID,
		Label:              u.Label(),
		Faction:            u.Faction.String(),
		Role:               u.Role.String(),
		Layer:              u.Layer.String(),
		CanTarget:          u.CanTarget.String(),
		Priority:           u.Priority.String(),
		DefinitionID:       u.DefinitionID,
		Position:           u.Position,
		Velocity:           u.Velocity,
		Forward:            u.Forward,
		Radius:             u.Radius,
		Speed:              u.Speed,
		TurnSpeed:          u.TurnSpeed,
		AttackRange:        u.AttackRange,
		Damage:             u.Damage,
		HP:                 u.HP,
		MaxHP:              u.MaxHP,
		ShieldHP:           u.ShieldHP,
		Destination:        u.Destination,
		AttackCooldown:     u.AttackCooldown,
		IsDead:             u.IsDead,
		TakenSlotIndex:     u.TakenSlotIndex,
		AttackSlots:        u.AttackSlots,
		HasAvoidanceTarget: u.HasAvoidanceTarget,
	}
	if !u.Target.IsZero() {
		s.Target = u.Target.String()
	}
	if u.HasAvoidanceTarget {
		target := u.AvoidanceTarget
		s.AvoidanceTarget = &target
	}
	if u.Charge != nil {
		charge := *u.Charge
		s.Charge = &charge
	}
	if len(u.Effects) > 0 {
		s.Effects = append([]units.ActiveEffect(nil), u.Effects...)
	}
	return s
}

func towerState(t *units.Tower) TowerState {
	s := TowerState{
		ID:             t.ID,
		Faction:        t.Faction.String(),
		Type:           t.Type.String(),
		Position:       t.Position,
		HP:             t.HP,
		MaxHP:          t.MaxHP,
		AttackCooldown: t.AttackCooldown,
		Activated:      t.Activated,
		Destroyed:      t.Destroyed(),
	}
	if !t.Target.IsZero() {
		s.Target = t.Target.String()
	}
	return s
}

// restoreUnit rebuilds a unit from its state. Abilities come from the
// registry when the unit has a definition id.
func restoreUnit(s UnitState, expected units.Faction, registry *units.Registry) (*units.Unit, error) {
	faction, err := units.ParseFaction(s.Faction)
	if err != nil {
		return nil, err
	}
	if faction != expected {
		return nil, fmt.Errorf("unit %d: faction %s in %s roster", s.ID, faction, expected)
	}
	role, err := units.ParseRole(s.Role)
	if err != nil {
		return nil, err
	}
	layer, err := units.ParseLayer(s.Layer)
	if err != nil {
		return nil, err
	}
	canTarget, err := units.ParseTargetMask(s.CanTarget)
	if err != nil {
		return nil, err
	}
	priority, err := units.ParseTargetPriority(s.Priority)
	if err != nil {
		return nil, err
	}
	if s.ID <= 0 {
		return nil, fmt.Errorf("unit id %d must be positive", s.ID)
	}
	if s.TakenSlotIndex < -1 || s.TakenSlotIndex >= units.NumAttackSlots {
		return nil, fmt.Errorf("unit %d: slot index %d out of range", s.ID, s.TakenSlotIndex)
	}

	var abilities []units.Ability
	if s.DefinitionID != "" {
		def, ok := registry.Definition(s.DefinitionID)
		if !ok {
			return nil, fmt.Errorf("unit %d: %w: %q", s.ID, units.ErrUnknownDefinition, s.DefinitionID)
		}
		abilities = def.Abilities
	}

	u := units.NewUnit(units.Spec{
		ID:           s.ID,
		Faction:      faction,
		Role:         role,
		Layer:        layer,
		CanTarget:    canTarget,
		Priority:     priority,
		DefinitionID: s.DefinitionID,
		Position:     s.Position,
		Radius:       s.Radius,
		Speed:        s.Speed,
		TurnSpeed:    s.TurnSpeed,
		AttackRange:  s.AttackRange,
		Damage:       s.Damage,
		HP:           s.HP,
		Abilities:    abilities,
	})
	u.CanTarget = canTarget
	u.MaxHP = max(s.MaxHP, s.HP)
	u.ShieldHP = s.ShieldHP
	u.Velocity = s.Velocity
	u.Forward = s.Forward
	u.Destination = s.Destination
	u.AttackCooldown = s.AttackCooldown
	u.IsDead = s.IsDead
	u.TakenSlotIndex = s.TakenSlotIndex
	u.AttackSlots = s.AttackSlots
	u.HasAvoidanceTarget = s.HasAvoidanceTarget
	if s.AvoidanceTarget != nil {
		u.AvoidanceTarget = *s.AvoidanceTarget
	}
	if s.Charge != nil && u.Charge != nil {
		*u.Charge = *s.Charge
	}
	if len(s.Effects) > 0 {
		u.Effects = append([]units.ActiveEffect(nil), s.Effects...)
	}
	return u, nil
}

func restoreTower(s TowerState) (*units.Tower, error) {
	faction, err := units.ParseFaction(s.Faction)
	if err != nil {
		return nil, err
	}
	typ, err := units.ParseTowerType(s.Type)
	if err != nil {
		return nil, err
	}
	t := units.NewTower(s.ID, faction, typ, s.Position)
	if s.MaxHP > 0 {
		t.MaxHP = s.MaxHP
	}
	t.HP = max(0, min(s.HP, t.MaxHP))
	t.AttackCooldown = s.AttackCooldown
	t.Activated = s.Activated
	return t, nil
}
