package units

import "fmt"

// AbilityKind tags the variants of Ability.
type AbilityKind string

const (
	AbilityCharge       AbilityKind = "charge"
	AbilitySplash       AbilityKind = "splash"
	AbilityShield       AbilityKind = "shield"
	AbilityDeathSpawn   AbilityKind = "death_spawn"
	AbilityDeathDamage  AbilityKind = "death_damage"
	AbilityStatusEffect AbilityKind = "status_effect"
)

// Ability is a closed set of payloads. Consumers switch on the concrete
// type; the unexported method keeps the set sealed to this package.
type Ability interface {
	Kind() AbilityKind
	ability()
}

// Charge multiplies damage and speed once the unit has run far enough
// toward its target.
type Charge struct {
	TriggerDistance  float64 `json:"triggerDistance" yaml:"trigger_distance"`
	RequiredDistance float64 `json:"requiredDistance" yaml:"required_distance"`
	DamageMultiplier float64 `json:"damageMultiplier" yaml:"damage_multiplier"`
	SpeedMultiplier  float64 `json:"speedMultiplier" yaml:"speed_multiplier"`
}

// Splash spreads an attack over every enemy near the primary target.
type Splash struct {
	Radius  float64 `json:"radius" yaml:"radius"`
	Falloff float64 `json:"falloff" yaml:"falloff"`
}

// Shield absorbs damage before hit points.
type Shield struct {
	MaxShieldHP     int  `json:"maxShieldHp" yaml:"max_shield_hp"`
	BlocksStun      bool `json:"blocksStun" yaml:"blocks_stun"`
	BlocksKnockback bool `json:"blocksKnockback" yaml:"blocks_knockback"`
}

// DeathSpawn places Count units of UnitID on a ring when the owner dies.
// HP of zero keeps the spawned definition's own hit points.
type DeathSpawn struct {
	UnitID string  `json:"unitId" yaml:"unit_id"`
	Count  int     `json:"count" yaml:"count"`
	Radius float64 `json:"radius" yaml:"radius"`
	HP     int     `json:"hp" yaml:"hp"`
}

// DeathDamage explodes on death, hitting opposing units in range.
type DeathDamage struct {
	Damage    int     `json:"damage" yaml:"damage"`
	Radius    float64 `json:"radius" yaml:"radius"`
	Knockback float64 `json:"knockback" yaml:"knockback"`
}

// StatusEffect applies a timed condition to every unit the owner hits.
type StatusEffect struct {
	Effect    EffectKind `json:"effect" yaml:"effect"`
	Duration  int        `json:"duration" yaml:"duration"`
	Magnitude float64    `json:"magnitude" yaml:"magnitude"`
}

func (Charge) Kind() AbilityKind       { return AbilityCharge }
func (Splash) Kind() AbilityKind       { return AbilitySplash }
func (Shield) Kind() AbilityKind       { return AbilityShield }
func (DeathSpawn) Kind() AbilityKind   { return AbilityDeathSpawn }
func (DeathDamage) Kind() AbilityKind  { return AbilityDeathDamage }
func (StatusEffect) Kind() AbilityKind { return AbilityStatusEffect }

func (Charge) ability()       {}
func (Splash) ability()       {}
func (Shield) ability()       {}
func (DeathSpawn) ability()   {}
func (DeathDamage) ability()  {}
func (StatusEffect) ability() {}

func DefaultCharge() Charge {
	return Charge{TriggerDistance: 150, RequiredDistance: 100, DamageMultiplier: 2, SpeedMultiplier: 2}
}

func DefaultSplash() Splash { return Splash{Radius: 60} }

func DefaultShield() Shield { return Shield{MaxShieldHP: 200} }

func DefaultDeathSpawn(unitID string) DeathSpawn {
	return DeathSpawn{UnitID: unitID, Count: 2, Radius: 30}
}

func DefaultDeathDamage() DeathDamage { return DeathDamage{Damage: 100, Radius: 60} }

// FindAbility returns the first ability of type T.
func FindAbility[T Ability](abilities []Ability) (T, bool) {
	for _, a := range abilities {
		if v, ok := a.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ValidateAbility checks the payload ranges of a single ability.
func ValidateAbility(a Ability) error {
	switch v := a.(type) {
	case Charge:
		if v.RequiredDistance < 0 || v.DamageMultiplier < 0 || v.SpeedMultiplier < 0 {
			return fmt.Errorf("charge: negative parameter")
		}
	case Splash:
		if v.Radius <= 0 {
			return fmt.Errorf("splash: radius must be positive")
		}
		if v.Falloff < 0 || v.Falloff > 1 {
			return fmt.Errorf("splash: falloff must be within [0,1]")
		}
	case Shield:
		if v.MaxShieldHP < 0 {
			return fmt.Errorf("shield: negative hit points")
		}
	case DeathSpawn:
		if v.UnitID == "" {
			return fmt.Errorf("death_spawn: unit id is required")
		}
		if v.Count < 0 || v.Radius < 0 || v.HP < 0 {
			return fmt.Errorf("death_spawn: negative parameter")
		}
	case DeathDamage:
		if v.Damage < 0 || v.Radius < 0 || v.Knockback < 0 {
			return fmt.Errorf("death_damage: negative parameter")
		}
	case StatusEffect:
		if _, err := ParseEffectKind(string(v.Effect)); err != nil {
			return fmt.Errorf("status_effect: %w", err)
		}
		if v.Duration <= 0 {
			return fmt.Errorf("status_effect: duration must be positive")
		}
	case nil:
		return fmt.Errorf("nil ability")
	}
	return nil
}
