package units

import (
	"fmt"
	"strings"
)

// Faction identifies which side a unit or tower fights for.
type Faction uint8

const (
	Friendly Faction = iota
	Enemy
)

func (f Faction) String() string {
	switch f {
	case Friendly:
		return "Friendly"
	case Enemy:
		return "Enemy"
	default:
		return fmt.Sprintf("Faction(%d)", uint8(f))
	}
}

// Opponent returns the opposing faction.
func (f Faction) Opponent() Faction {
	if f == Friendly {
		return Enemy
	}
	return Friendly
}

// ParseFaction accepts the names produced by Faction.String, ignoring case.
func ParseFaction(s string) (Faction, error) {
	switch strings.ToLower(s) {
	case "friendly":
		return Friendly, nil
	case "enemy":
		return Enemy, nil
	}
	return 0, fmt.Errorf("unknown faction %q", s)
}

func (f Faction) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Faction) UnmarshalText(b []byte) error {
	v, err := ParseFaction(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Role decides the attack range multiplier.
type Role uint8

const (
	Melee Role = iota
	Ranged
)

func (r Role) String() string {
	switch r {
	case Melee:
		return "Melee"
	case Ranged:
		return "Ranged"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "melee":
		return Melee, nil
	case "ranged":
		return Ranged, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Layer is the movement layer. Ground units obey terrain, air units do not.
type Layer uint8

const (
	Ground Layer = iota
	Air
)

func (l Layer) String() string {
	switch l {
	case Ground:
		return "Ground"
	case Air:
		return "Air"
	default:
		return fmt.Sprintf("Layer(%d)", uint8(l))
	}
}

func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(s) {
	case "ground":
		return Ground, nil
	case "air":
		return Air, nil
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

func (l Layer) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Layer) UnmarshalText(b []byte) error {
	v, err := ParseLayer(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// TargetMask is a bit set of what a unit is able to attack.
type TargetMask uint8

const (
	TargetGround TargetMask = 1 << iota
	TargetAir
	TargetBuilding

	TargetNone         TargetMask = 0
	TargetGroundAndAir            = TargetGround | TargetAir
	TargetAll                     = TargetGround | TargetAir | TargetBuilding
)

// Has reports whether any bit of other is set in m.
func (m TargetMask) Has(other TargetMask) bool { return m&other != 0 }

func (m TargetMask) String() string {
	if m == TargetNone {
		return "None"
	}
	var parts []string
	if m.Has(TargetGround) {
		parts = append(parts, "Ground")
	}
	if m.Has(TargetAir) {
		parts = append(parts, "Air")
	}
	if m.Has(TargetBuilding) {
		parts = append(parts, "Building")
	}
	return strings.Join(parts, "|")
}

// ParseTargetMask accepts "|" or "," separated names plus the aliases
// "GroundAndAir", "All" and "None". An empty string is an error.
func ParseTargetMask(s string) (TargetMask, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty target mask")
	}
	var mask TargetMask
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "ground":
			mask |= TargetGround
		case "air":
			mask |= TargetAir
		case "building", "buildings":
			mask |= TargetBuilding
		case "groundandair":
			mask |= TargetGroundAndAir
		case "all":
			mask |= TargetAll
		case "none", "":
		default:
			return 0, fmt.Errorf("unknown target type %q", part)
		}
	}
	return mask, nil
}

func (m TargetMask) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *TargetMask) UnmarshalText(b []byte) error {
	v, err := ParseTargetMask(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// TargetPriority is a unit's target disposition.
type TargetPriority uint8

const (
	PriorityNearest TargetPriority = iota
	PriorityBuildings
)

func (p TargetPriority) String() string {
	if p == PriorityBuildings {
		return "Buildings"
	}
	return "Nearest"
}

func ParseTargetPriority(s string) (TargetPriority, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return PriorityNearest, nil
	case "buildings":
		return PriorityBuildings, nil
	}
	return 0, fmt.Errorf("unknown target priority %q", s)
}

func (p TargetPriority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *TargetPriority) UnmarshalText(b []byte) error {
	v, err := ParseTargetPriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// EntityKind distinguishes the two attackable entity families.
type EntityKind uint8

const (
	KindNone EntityKind = iota
	KindUnit
	KindTower
)

// Ref is a faction-qualified entity id. The zero value refers to nothing.
type Ref struct {
	Kind    EntityKind `json:"kind"`
	Faction Faction    `json:"faction"`
	ID      int        `json:"id"`
}

func UnitRef(f Faction, id int) Ref  { return Ref{Kind: KindUnit, Faction: f, ID: id} }
func TowerRef(f Faction, id int) Ref { return Ref{Kind: KindTower, Faction: f, ID: id} }

func (r Ref) IsZero() bool { return r.Kind == KindNone }

func (r Ref) String() string {
	prefix := "F"
	if r.Faction == Enemy {
		prefix = "E"
	}
	switch r.Kind {
	case KindUnit:
		return fmt.Sprintf("%s%d", prefix, r.ID)
	case KindTower:
		return fmt.Sprintf("%sT%d", prefix, r.ID)
	default:
		return "none"
	}
}
