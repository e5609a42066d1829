package units

import (
	"fmt"
	"strings"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

// EffectKind names a timed status condition.
type EffectKind string

const (
	EffectSlow EffectKind = "slow"
	EffectStun EffectKind = "stun"
)

func ParseEffectKind(s string) (EffectKind, error) {
	switch EffectKind(strings.ToLower(s)) {
	case EffectSlow:
		return EffectSlow, nil
	case EffectStun:
		return EffectStun, nil
	}
	return "", fmt.Errorf("unknown status effect %q", s)
}

// ActiveEffect is a status condition currently applied to a unit.
type ActiveEffect struct {
	Kind      EffectKind `json:"kind"`
	Remaining int        `json:"remaining"`
	Magnitude float64    `json:"magnitude"`
}

// ApplyEffect adds or refreshes a condition. Refreshing keeps the longer
// duration and the stronger magnitude. It reports false when a shield
// blocks the effect.
func (u *Unit) ApplyEffect(kind EffectKind, duration int, magnitude float64) bool {
	if u.IsDead || duration <= 0 {
		return false
	}
	if kind == EffectStun && u.ShieldHP > 0 {
		if shield, ok := FindAbility[Shield](u.Abilities); ok && shield.BlocksStun {
			return false
		}
	}
	for i := range u.Effects {
		e := &u.Effects[i]
		if e.Kind != kind {
			continue
		}
		if duration > e.Remaining {
			e.Remaining = duration
		}
		if magnitude > e.Magnitude {
			e.Magnitude = magnitude
		}
		return true
	}
	u.Effects = append(u.Effects, ActiveEffect{Kind: kind, Remaining: duration, Magnitude: magnitude})
	if kind == EffectStun {
		u.Velocity = geom.Zero
	}
	return true
}

// TickEffects counts every active condition down by one frame and drops
// the expired ones.
func (u *Unit) TickEffects() {
	if len(u.Effects) == 0 {
		return
	}
	kept := u.Effects[:0]
	for _, e := range u.Effects {
		e.Remaining--
		if e.Remaining > 0 {
			kept = append(kept, e)
		}
	}
	u.Effects = kept
}

func (u *Unit) Stunned() bool {
	for _, e := range u.Effects {
		if e.Kind == EffectStun {
			return true
		}
	}
	return false
}

// SlowFactor is the speed multiplier from slows, in [0, 1].
func (u *Unit) SlowFactor() float64 {
	factor := 1.0
	for _, e := range u.Effects {
		if e.Kind != EffectSlow {
			continue
		}
		m := e.Magnitude
		if m > 1 {
			m = 1
		}
		if m < 0 {
			m = 0
		}
		if 1-m < factor {
			factor = 1 - m
		}
	}
	return factor
}
