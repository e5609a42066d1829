package units

import (
	"github.com/clover-storm/unit-simulator/internal/geom"
)

// Unit is a mobile combat entity. Cross references to other entities are
// stored as ids and resolved through the World each frame.
type Unit struct {
	ID           int
	Faction      Faction
	Role         Role
	Layer        Layer
	CanTarget    TargetMask
	Priority     TargetPriority
	DefinitionID string

	Position geom.Vec2
	Velocity geom.Vec2
	Forward  geom.Vec2

	Radius      float64
	Speed       float64
	TurnSpeed   float64
	AttackRange float64
	Damage      int

	HP             int
	MaxHP          int
	ShieldHP       int
	AttackCooldown float64
	IsDead         bool

	Target      Ref
	Destination geom.Vec2

	// AttackSlots holds the id of the attacker reserving each position
	// around this unit; 0 marks a free slot.
	AttackSlots    [NumAttackSlots]int
	TakenSlotIndex int

	AvoidanceTarget    geom.Vec2
	HasAvoidanceTarget bool
	AvoidanceThreat    Ref

	FramesSinceSlotEvaluation   int
	FramesSinceTargetEvaluation int

	Abilities []Ability
	Charge    *ChargeState
	Effects   []ActiveEffect

	avoidancePath  []geom.Vec2
	avoidanceIndex int
	movementPath   []geom.Vec2
	movementIndex  int
}

// Spec carries construction parameters for NewUnit. A zero AttackRange
// derives the range from the radius and role.
type Spec struct {
	ID           int
	Faction      Faction
	Role         Role
	Layer        Layer
	CanTarget    TargetMask
	Priority     TargetPriority
	DefinitionID string
	Position     geom.Vec2
	Radius       float64
	Speed        float64
	TurnSpeed    float64
	AttackRange  float64
	Damage       int
	HP           int
	Abilities    []Ability
}

func NewUnit(spec Spec) *Unit {
	radius := spec.Radius
	if radius <= 0 {
		radius = UnitRadius
	}
	attackRange := spec.AttackRange
	if attackRange <= 0 {
		attackRange = RangeFor(spec.Role, radius)
	}
	canTarget := spec.CanTarget
	if canTarget == TargetNone {
		canTarget = TargetGround
	}
	damage := spec.Damage
	if damage <= 0 {
		damage = BaseDamage
	}
	u := &Unit{
		ID:             spec.ID,
		Faction:        spec.Faction,
		Role:           spec.Role,
		Layer:          spec.Layer,
		CanTarget:      canTarget,
		Priority:       spec.Priority,
		DefinitionID:   spec.DefinitionID,
		Position:       spec.Position,
		Forward:        geom.UnitX,
		Radius:         radius,
		Speed:          spec.Speed,
		TurnSpeed:      spec.TurnSpeed,
		AttackRange:    attackRange,
		Damage:         damage,
		HP:             spec.HP,
		MaxHP:          spec.HP,
		Destination:    spec.Position,
		TakenSlotIndex: -1,
	}
	if len(spec.Abilities) > 0 {
		u.Abilities = append([]Ability(nil), spec.Abilities...)
	}
	if shield, ok := FindAbility[Shield](u.Abilities); ok {
		u.ShieldHP = shield.MaxShieldHP
	}
	if _, ok := FindAbility[Charge](u.Abilities); ok {
		u.Charge = &ChargeState{}
	}
	return u
}

// RangeFor derives an attack range from the collision radius.
func RangeFor(role Role, radius float64) float64 {
	if role == Ranged {
		return radius * RangedRangeMultiplier
	}
	return radius * MeleeRangeMultiplier
}

func (u *Unit) Ref() Ref { return UnitRef(u.Faction, u.ID) }

// Label is the short display name, e.g. F3 or E12.
func (u *Unit) Label() string { return u.Ref().String() }

func (u *Unit) Pos() geom.Vec2 { return u.Position }

func (u *Unit) Airborne() bool { return u.Layer == Air }

// CanAttack reports whether target is alive and on a layer this unit can hit.
func (u *Unit) CanAttack(target *Unit) bool {
	if target == nil || target.IsDead {
		return false
	}
	layer := TargetGround
	if target.Layer == Air {
		layer = TargetAir
	}
	return u.CanTarget.Has(layer)
}

func (u *Unit) CanAttackTower(t *Tower) bool {
	if t == nil || t.Destroyed() {
		return false
	}
	return u.CanTarget.Has(TargetBuilding)
}

// EffectiveDamage applies the charge multiplier when a charge is ready.
func (u *Unit) EffectiveDamage() int {
	if u.Charge != nil && u.Charge.Charged {
		if charge, ok := FindAbility[Charge](u.Abilities); ok && charge.DamageMultiplier > 0 {
			return int(float64(u.Damage) * charge.DamageMultiplier)
		}
	}
	return u.Damage
}

// EffectiveSpeed folds in the charge bonus and slows. Stunned units do not move.
func (u *Unit) EffectiveSpeed() float64 {
	if u.Stunned() {
		return 0
	}
	speed := u.Speed
	if u.Charge != nil && u.Charge.Charged {
		if charge, ok := FindAbility[Charge](u.Abilities); ok && charge.SpeedMultiplier > 0 {
			speed *= charge.SpeedMultiplier
		}
	}
	return speed * u.SlowFactor()
}

// OnAttackPerformed records attacker-local bookkeeping after an attack has
// been collected.
func (u *Unit) OnAttackPerformed() {
	if u.Charge != nil {
		u.Charge.Consume()
	}
}

// TakeDamage removes shield first, then hit points. It reports true only
// on the transition from alive to dead. Slot cleanup for the dying unit is
// done by World.Damage.
func (u *Unit) TakeDamage(amount int) bool {
	if amount <= 0 || u.IsDead && u.HP <= 0 {
		return false
	}
	if u.ShieldHP > 0 {
		absorbed := amount
		if absorbed > u.ShieldHP {
			absorbed = u.ShieldHP
		}
		u.ShieldHP -= absorbed
		amount -= absorbed
	}
	u.HP -= amount
	if u.HP < 0 {
		u.HP = 0
	}
	if u.HP <= 0 && !u.IsDead {
		u.IsDead = true
		u.Velocity = geom.Zero
		return true
	}
	return false
}

// UpdateRotation turns Forward toward the velocity heading by at most
// TurnSpeed radians.
func (u *Unit) UpdateRotation() {
	if u.Velocity.LenSq() < 0.001 {
		return
	}
	diff := geom.WrapAngle(u.Velocity.Angle() - u.Forward.Angle())
	u.Forward = u.Forward.Rotate(geom.Clamp(diff, -u.TurnSpeed, u.TurnSpeed))
}

// SetAvoidancePath replaces the detour waypoint queue.
func (u *Unit) SetAvoidancePath(waypoints []geom.Vec2) {
	u.avoidancePath = append(u.avoidancePath[:0], waypoints...)
	u.avoidanceIndex = 0
}

// NextAvoidanceWaypoint skips every waypoint already within reach and
// returns the first remaining one.
func (u *Unit) NextAvoidanceWaypoint() (geom.Vec2, bool) {
	for u.avoidanceIndex < len(u.avoidancePath) {
		wp := u.avoidancePath[u.avoidanceIndex]
		if u.Position.Dist(wp) <= WaypointThreshold {
			u.avoidanceIndex++
			continue
		}
		return wp, true
	}
	return geom.Zero, false
}

func (u *Unit) ClearAvoidancePath() {
	u.avoidancePath = u.avoidancePath[:0]
	u.avoidanceIndex = 0
}

// SetMovementPath replaces the route produced by pathfinding.
func (u *Unit) SetMovementPath(path []geom.Vec2) {
	u.movementPath = append(u.movementPath[:0], path...)
	u.movementIndex = 0
}

// NextMovementWaypoint advances at most one waypoint per call and reports
// false once the route is exhausted.
func (u *Unit) NextMovementWaypoint() (geom.Vec2, bool) {
	if u.movementIndex >= len(u.movementPath) {
		return geom.Zero, false
	}
	wp := u.movementPath[u.movementIndex]
	if u.Position.Dist(wp) <= WaypointThreshold {
		u.movementIndex++
		if u.movementIndex >= len(u.movementPath) {
			return geom.Zero, false
		}
		wp = u.movementPath[u.movementIndex]
	}
	return wp, true
}

func (u *Unit) ClearMovementPath() {
	u.movementPath = u.movementPath[:0]
	u.movementIndex = 0
}

// HasMovementPath reports whether route waypoints remain.
func (u *Unit) HasMovementPath() bool {
	return u.movementIndex < len(u.movementPath)
}

// MovementGoal is the final waypoint of the current route.
func (u *Unit) MovementGoal() (geom.Vec2, bool) {
	if len(u.movementPath) == 0 {
		return geom.Zero, false
	}
	return u.movementPath[len(u.movementPath)-1], true
}
