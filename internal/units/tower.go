package units

import (
	"fmt"
	"strings"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

// TowerType distinguishes the central king tower from the side towers.
type TowerType uint8

const (
	TowerPrincess TowerType = iota
	TowerKing
)

func (t TowerType) String() string {
	if t == TowerKing {
		return "King"
	}
	return "Princess"
}

func ParseTowerType(s string) (TowerType, error) {
	switch strings.ToLower(s) {
	case "princess", "side":
		return TowerPrincess, nil
	case "king", "main":
		return TowerKing, nil
	}
	return 0, fmt.Errorf("unknown tower type %q", s)
}

func (t TowerType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TowerType) UnmarshalText(b []byte) error {
	v, err := ParseTowerType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

const (
	KingTowerHP         = 4000
	PrincessTowerHP     = 2500
	KingTowerDamage     = 90
	PrincessTowerDamage = 80
	KingTowerRange      = 280.0
	PrincessTowerRange  = 300.0
	TowerRadius         = 40.0
	TowerCooldownFrames = 25.0
)

// Tower is a static defender.
type Tower struct {
	ID             int
	Faction        Faction
	Type           TowerType
	Position       geom.Vec2
	Radius         float64
	HP             int
	MaxHP          int
	AttackRange    float64
	Damage         int
	AttackCooldown float64
	CanTarget      TargetMask
	// Activated is false for a king tower until it is damaged or loses a
	// princess tower.
	Activated bool
	Target    Ref
}

// NewTower builds a tower with the stock stats for its type.
func NewTower(id int, faction Faction, typ TowerType, position geom.Vec2) *Tower {
	t := &Tower{
		ID:        id,
		Faction:   faction,
		Type:      typ,
		Position:  position,
		Radius:    TowerRadius,
		CanTarget: TargetGroundAndAir,
		Activated: typ == TowerPrincess,
	}
	if typ == TowerKing {
		t.HP, t.MaxHP = KingTowerHP, KingTowerHP
		t.Damage = KingTowerDamage
		t.AttackRange = KingTowerRange
	} else {
		t.HP, t.MaxHP = PrincessTowerHP, PrincessTowerHP
		t.Damage = PrincessTowerDamage
		t.AttackRange = PrincessTowerRange
	}
	return t
}

func (t *Tower) Ref() Ref { return TowerRef(t.Faction, t.ID) }

func (t *Tower) Destroyed() bool { return t.HP <= 0 }

// TakeDamage reports true on the transition to destroyed. Damage wakes a
// dormant king tower.
func (t *Tower) TakeDamage(amount int) bool {
	if amount <= 0 || t.Destroyed() {
		return false
	}
	t.Activated = true
	t.HP -= amount
	if t.HP <= 0 {
		t.HP = 0
		return true
	}
	return false
}

// CanAttack reports whether target is alive, on a layer the tower covers
// and within range.
func (t *Tower) CanAttack(target *Unit) bool {
	if target == nil || target.IsDead || t.Destroyed() || !t.Activated {
		return false
	}
	layer := TargetGround
	if target.Layer == Air {
		layer = TargetAir
	}
	if !t.CanTarget.Has(layer) {
		return false
	}
	return t.Position.Dist(target.Position) <= t.AttackRange+target.Radius
}

// HPRatio is the remaining fraction of hit points.
func (t *Tower) HPRatio() float64 {
	if t.MaxHP <= 0 {
		return 0
	}
	return float64(t.HP) / float64(t.MaxHP)
}
