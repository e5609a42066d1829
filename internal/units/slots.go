package units

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

// SlotPosition is the world position of attack slot i for an attacker of
// the given radius. Slots are evenly spaced on a ring around the unit.
func (u *Unit) SlotPosition(i int, attackerRadius float64) geom.Vec2 {
	angle := 2 * math.Pi / NumAttackSlots * float64(i)
	distance := u.Radius + attackerRadius + slotPadding
	return u.Position.Add(geom.V(math.Cos(angle), math.Sin(angle)).Scale(distance))
}

// TryClaimSlot reserves the first free slot for attacker and returns its
// index, or -1 when the ring is full.
func (u *Unit) TryClaimSlot(attacker *Unit) int {
	for i, owner := range u.AttackSlots {
		if owner == 0 {
			u.AttackSlots[i] = attacker.ID
			attacker.TakenSlotIndex = i
			return i
		}
	}
	return -1
}

// ClaimBestSlot moves attacker to the free or already-owned slot closest to
// it, releasing its previous slot when that changes. With no candidate the
// attacker's slot is released and -1 is returned.
func (u *Unit) ClaimBestSlot(attacker *Unit) int {
	best := -1
	bestDistance := math.MaxFloat64
	for i, owner := range u.AttackSlots {
		if owner != 0 && owner != attacker.ID {
			continue
		}
		d := attacker.Position.Dist(u.SlotPosition(i, attacker.Radius))
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	if best == -1 {
		u.ReleaseSlot(attacker)
		return -1
	}
	prev := attacker.TakenSlotIndex
	if prev != -1 && prev != best && prev < NumAttackSlots && u.AttackSlots[prev] == attacker.ID {
		u.AttackSlots[prev] = 0
	}
	u.AttackSlots[best] = attacker.ID
	attacker.TakenSlotIndex = best
	return best
}

// ReleaseSlot frees the slot attacker holds on u, if it still owns it, and
// clears the attacker's slot index either way.
func (u *Unit) ReleaseSlot(attacker *Unit) {
	idx := attacker.TakenSlotIndex
	if idx == -1 {
		return
	}
	if idx >= 0 && idx < NumAttackSlots && u.AttackSlots[idx] == attacker.ID {
		u.AttackSlots[idx] = 0
	}
	attacker.TakenSlotIndex = -1
}

// ClearSlots drops every reservation on u without touching the attackers.
func (u *Unit) ClearSlots() {
	u.AttackSlots = [NumAttackSlots]int{}
}

// SlotOwner returns the attacker id holding slot i, or 0.
func (u *Unit) SlotOwner(i int) int {
	if i < 0 || i >= NumAttackSlots {
		return 0
	}
	return u.AttackSlots[i]
}
