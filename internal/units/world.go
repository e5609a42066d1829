package units

import "github.com/clover-storm/unit-simulator/internal/geom"

// World holds the per-faction rosters. Rosters keep insertion order, which
// is the iteration order of every system.
type World struct {
	friendly []*Unit
	enemy    []*Unit
	towers   []*Tower
}

func NewWorld() *World {
	return &World{}
}

// Units returns the live roster slice of a faction, or nil for an
// unknown faction. Callers must not append to it.
func (w *World) Units(f Faction) []*Unit {
	switch f {
	case Friendly:
		return w.friendly
	case Enemy:
		return w.enemy
	}
	return nil
}

// Towers returns every tower of a faction in insertion order.
func (w *World) Towers(f Faction) []*Tower {
	out := make([]*Tower, 0, len(w.towers))
	for _, t := range w.towers {
		if t.Faction == f {
			out = append(out, t)
		}
	}
	return out
}

func (w *World) AllTowers() []*Tower { return w.towers }

func (w *World) Add(u *Unit) {
	if u.Faction == Friendly {
		w.friendly = append(w.friendly, u)
		return
	}
	w.enemy = append(w.enemy, u)
}

func (w *World) AddTower(t *Tower) {
	w.towers = append(w.towers, t)
}

// Unit finds a unit by faction and id.
func (w *World) Unit(f Faction, id int) *Unit {
	for _, u := range w.Units(f) {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (w *World) Tower(f Faction, id int) *Tower {
	for _, t := range w.towers {
		if t.Faction == f && t.ID == id {
			return t
		}
	}
	return nil
}

// ResolveUnit returns the unit a reference points at, or nil.
func (w *World) ResolveUnit(r Ref) *Unit {
	if r.Kind != KindUnit {
		return nil
	}
	return w.Unit(r.Faction, r.ID)
}

func (w *World) ResolveTower(r Ref) *Tower {
	if r.Kind != KindTower {
		return nil
	}
	return w.Tower(r.Faction, r.ID)
}

// Remove drops a unit from its roster after releasing its slot. It reports
// false when the unit is unknown.
func (w *World) Remove(f Faction, id int) (*Unit, bool) {
	roster := w.Units(f)
	for i, u := range roster {
		if u.ID != id {
			continue
		}
		w.ReleaseSlot(u)
		roster = append(roster[:i], roster[i+1:]...)
		if f == Friendly {
			w.friendly = roster
		} else {
			w.enemy = roster
		}
		return u, true
	}
	return nil, false
}

// ReleaseSlot frees the attack slot u holds on its current unit target.
// Without a resolvable target, as after a state load, the opposing roster
// is searched for the reservation.
func (w *World) ReleaseSlot(u *Unit) {
	if u.TakenSlotIndex == -1 {
		return
	}
	if target := w.ResolveUnit(u.Target); target != nil {
		target.ReleaseSlot(u)
		return
	}
	for _, other := range w.Units(u.Faction.Opponent()) {
		if other.SlotOwner(u.TakenSlotIndex) == u.ID {
			other.ReleaseSlot(u)
			return
		}
	}
	u.TakenSlotIndex = -1
}

// Damage applies damage to u and releases its slot if the hit killed it.
func (w *World) Damage(u *Unit, amount int) bool {
	if !u.TakeDamage(amount) {
		return false
	}
	w.ReleaseSlot(u)
	return true
}

// Kill forces u to zero hit points. It reports true on the death transition.
func (w *World) Kill(u *Unit) bool {
	u.HP = 0
	u.ShieldHP = 0
	u.Velocity = geom.Zero
	if u.IsDead {
		return false
	}
	u.IsDead = true
	w.ReleaseSlot(u)
	return true
}

// Replace swaps both rosters and the tower set wholesale.
func (w *World) Replace(friendly, enemy []*Unit, towers []*Tower) {
	w.friendly = friendly
	w.enemy = enemy
	w.towers = towers
}

// Clear empties every roster.
func (w *World) Clear() {
	w.friendly = nil
	w.enemy = nil
	w.towers = nil
}

// Living counts the units of a faction that are not dead.
func (w *World) Living(f Faction) int {
	n := 0
	for _, u := range w.Units(f) {
		if !u.IsDead {
			n++
		}
	}
	return n
}

// MaxID returns the largest unit id in a faction's roster, or 0.
func (w *World) MaxID(f Faction) int {
	max := 0
	for _, u := range w.Units(f) {
		if u.ID > max {
			max = u.ID
		}
	}
	return max
}

// DefaultTowers places a king and two princess towers per side.
func DefaultTowers(width, height float64) []*Tower {
	mid := width / 2
	return []*Tower{
		NewTower(1, Friendly, TowerKing, geom.V(mid, height-80)),
		NewTower(2, Friendly, TowerPrincess, geom.V(150, height-250)),
		NewTower(3, Friendly, TowerPrincess, geom.V(width-150, height-250)),
		NewTower(1, Enemy, TowerKing, geom.V(mid, 80)),
		NewTower(2, Enemy, TowerPrincess, geom.V(150, 250)),
		NewTower(3, Enemy, TowerPrincess, geom.V(width-150, 250)),
	}
}
