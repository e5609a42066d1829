package units

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefinitionFile is the on-disk form of a set of unit definitions.
type DefinitionFile struct {
	Units []DefinitionDocument `json:"units" yaml:"units" jsonschema:"required"`
}

// DefinitionDocument is one designer-authored unit type.
type DefinitionDocument struct {
	UnitID      string            `json:"unit_id" yaml:"unit_id" jsonschema:"required,minLength=1"`
	DisplayName string            `json:"display_name,omitempty" yaml:"display_name"`
	MaxHP       int               `json:"max_hp" yaml:"max_hp" jsonschema:"required,minimum=1"`
	Damage      int               `json:"damage" yaml:"damage" jsonschema:"minimum=0"`
	AttackRange float64           `json:"attack_range,omitempty" yaml:"attack_range" jsonschema:"minimum=0"`
	MoveSpeed   float64           `json:"move_speed" yaml:"move_speed" jsonschema:"minimum=0"`
	TurnSpeed   float64           `json:"turn_speed" yaml:"turn_speed" jsonschema:"minimum=0"`
	Radius      float64           `json:"radius" yaml:"radius" jsonschema:"exclusiveMinimum=0"`
	Role        string            `json:"role" yaml:"role" jsonschema:"enum=Melee,enum=Ranged"`
	Layer       string            `json:"layer,omitempty" yaml:"layer" jsonschema:"enum=Ground,enum=Air"`
	CanTarget   string            `json:"can_target,omitempty" yaml:"can_target" jsonschema:"description=Pipe separated: Ground|Air|Building"`
	Priority    string            `json:"priority,omitempty" yaml:"priority" jsonschema:"enum=Nearest,enum=Buildings"`
	Abilities   []AbilityDocument `json:"abilities,omitempty" yaml:"abilities"`
}

// AbilityDocument is the flattened file form of an ability. Fields not
// relevant to Type are ignored; zero fields take the ability's defaults.
type AbilityDocument struct {
	Type string `json:"type" yaml:"type" jsonschema:"required,enum=charge,enum=splash,enum=shield,enum=death_spawn,enum=death_damage,enum=status_effect"`

	TriggerDistance  float64 `json:"trigger_distance,omitempty" yaml:"trigger_distance"`
	RequiredDistance float64 `json:"required_distance,omitempty" yaml:"required_distance"`
	DamageMultiplier float64 `json:"damage_multiplier,omitempty" yaml:"damage_multiplier"`
	SpeedMultiplier  float64 `json:"speed_multiplier,omitempty" yaml:"speed_multiplier"`

	Radius  float64 `json:"radius,omitempty" yaml:"radius"`
	Falloff float64 `json:"falloff,omitempty" yaml:"falloff"`

	MaxShieldHP     int  `json:"max_shield_hp,omitempty" yaml:"max_shield_hp"`
	BlocksStun      bool `json:"blocks_stun,omitempty" yaml:"blocks_stun"`
	BlocksKnockback bool `json:"blocks_knockback,omitempty" yaml:"blocks_knockback"`

	UnitID string `json:"unit_id,omitempty" yaml:"unit_id"`
	Count  int    `json:"count,omitempty" yaml:"count"`
	HP     int    `json:"hp,omitempty" yaml:"hp"`

	Damage    int     `json:"damage,omitempty" yaml:"damage"`
	Knockback float64 `json:"knockback,omitempty" yaml:"knockback"`

	Effect    string  `json:"effect,omitempty" yaml:"effect" jsonschema:"enum=slow,enum=stun"`
	Duration  int     `json:"duration,omitempty" yaml:"duration"`
	Magnitude float64 `json:"magnitude,omitempty" yaml:"magnitude"`
}

// Ability converts the document into its runtime variant.
func (d AbilityDocument) Ability() (Ability, error) {
	var a Ability
	switch AbilityKind(d.Type) {
	case AbilityCharge:
		c := DefaultCharge()
		setFloat(&c.TriggerDistance, d.TriggerDistance)
		setFloat(&c.RequiredDistance, d.RequiredDistance)
		setFloat(&c.DamageMultiplier, d.DamageMultiplier)
		setFloat(&c.SpeedMultiplier, d.SpeedMultiplier)
		a = c
	case AbilitySplash:
		s := DefaultSplash()
		setFloat(&s.Radius, d.Radius)
		s.Falloff = d.Falloff
		a = s
	case AbilityShield:
		s := DefaultShield()
		if d.MaxShieldHP > 0 {
			s.MaxShieldHP = d.MaxShieldHP
		}
		s.BlocksStun = d.BlocksStun
		s.BlocksKnockback = d.BlocksKnockback
		a = s
	case AbilityDeathSpawn:
		s := DefaultDeathSpawn(d.UnitID)
		if d.Count > 0 {
			s.Count = d.Count
		}
		setFloat(&s.Radius, d.Radius)
		s.HP = d.HP
		a = s
	case AbilityDeathDamage:
		s := DefaultDeathDamage()
		if d.Damage > 0 {
			s.Damage = d.Damage
		}
		setFloat(&s.Radius, d.Radius)
		s.Knockback = d.Knockback
		a = s
	case AbilityStatusEffect:
		kind, err := ParseEffectKind(d.Effect)
		if err != nil {
			return nil, err
		}
		a = StatusEffect{Effect: kind, Duration: d.Duration, Magnitude: d.Magnitude}
	default:
		return nil, fmt.Errorf("unknown ability type %q", d.Type)
	}
	if err := ValidateAbility(a); err != nil {
		return nil, err
	}
	return a, nil
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// Definition converts the document into a runtime definition.
func (d DefinitionDocument) Definition() (Definition, error) {
	if d.UnitID == "" {
		return Definition{}, fmt.Errorf("unit_id is required")
	}
	if d.MaxHP <= 0 {
		return Definition{}, fmt.Errorf("%s: max_hp must be positive", d.UnitID)
	}
	role, err := ParseRole(d.Role)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", d.UnitID, err)
	}
	layer := Ground
	if d.Layer != "" {
		if layer, err = ParseLayer(d.Layer); err != nil {
			return Definition{}, fmt.Errorf("%s: %w", d.UnitID, err)
		}
	}
	mask := TargetGround
	if d.CanTarget != "" {
		if mask, err = ParseTargetMask(d.CanTarget); err != nil {
			return Definition{}, fmt.Errorf("%s: %w", d.UnitID, err)
		}
	}
	priority := PriorityNearest
	if d.Priority != "" {
		if priority, err = ParseTargetPriority(d.Priority); err != nil {
			return Definition{}, fmt.Errorf("%s: %w", d.UnitID, err)
		}
	}
	def := Definition{
		UnitID:      d.UnitID,
		DisplayName: d.DisplayName,
		MaxHP:       d.MaxHP,
		Damage:      d.Damage,
		AttackRange: d.AttackRange,
		MoveSpeed:   d.MoveSpeed,
		TurnSpeed:   d.TurnSpeed,
		Radius:      d.Radius,
		Role:        role,
		Layer:       layer,
		CanTarget:   mask,
		Priority:    priority,
	}
	if def.DisplayName == "" {
		def.DisplayName = d.UnitID
	}
	for i, doc := range d.Abilities {
		a, err := doc.Ability()
		if err != nil {
			return Definition{}, fmt.Errorf("%s: ability %d: %w", d.UnitID, i, err)
		}
		def.Abilities = append(def.Abilities, a)
	}
	return def, nil
}

// ParseDefinitions decodes a YAML definition file.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file DefinitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode unit definitions: %w", err)
	}
	defs := make([]Definition, 0, len(file.Units))
	seen := make(map[string]struct{}, len(file.Units))
	for _, doc := range file.Units {
		def, err := doc.Definition()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[def.UnitID]; dup {
			return nil, fmt.Errorf("duplicate unit_id %q", def.UnitID)
		}
		seen[def.UnitID] = struct{}{}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadDefinitions reads a YAML file and registers its definitions over the
// built-in set. Death spawns must reference a known unit type.
func LoadDefinitions(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit definitions: %w", err)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r := DefaultRegistry()
	r.RegisterAll(defs)
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Validate checks cross references between definitions.
func (r *Registry) Validate() error {
	for _, id := range r.IDs() {
		for _, a := range r.defs[id].Abilities {
			spawn, ok := a.(DeathSpawn)
			if !ok {
				continue
			}
			if !r.Has(spawn.UnitID) {
				return fmt.Errorf("%s: death_spawn references %w %q", id, ErrUnknownDefinition, spawn.UnitID)
			}
		}
	}
	return nil
}

// Document converts a runtime definition back into its file form.
func (d Definition) Document() DefinitionDocument {
	doc := DefinitionDocument{
		UnitID:      d.UnitID,
		DisplayName: d.DisplayName,
		MaxHP:       d.MaxHP,
		Damage:      d.Damage,
		AttackRange: d.AttackRange,
		MoveSpeed:   d.MoveSpeed,
		TurnSpeed:   d.TurnSpeed,
		Radius:      d.Radius,
		Role:        d.Role.String(),
		Layer:       d.Layer.String(),
		CanTarget:   d.CanTarget.String(),
		Priority:    d.Priority.String(),
	}
	for _, a := range d.Abilities {
		ad := AbilityDocument{Type: string(a.Kind())}
		switch v := a.(type) {
		case Charge:
			ad.TriggerDistance, ad.RequiredDistance = v.TriggerDistance, v.RequiredDistance
			ad.DamageMultiplier, ad.SpeedMultiplier = v.DamageMultiplier, v.SpeedMultiplier
		case Splash:
			ad.Radius, ad.Falloff = v.Radius, v.Falloff
		case Shield:
			ad.MaxShieldHP, ad.BlocksStun, ad.BlocksKnockback = v.MaxShieldHP, v.BlocksStun, v.BlocksKnockback
		case DeathSpawn:
			ad.UnitID, ad.Count, ad.Radius, ad.HP = v.UnitID, v.Count, v.Radius, v.HP
		case DeathDamage:
			ad.Damage, ad.Radius, ad.Knockback = v.Damage, v.Radius, v.Knockback
		case StatusEffect:
			ad.Effect, ad.Duration, ad.Magnitude = string(v.Effect), v.Duration, v.Magnitude
		}
		doc.Abilities = append(doc.Abilities, ad)
	}
	return doc
}
