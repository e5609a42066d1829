// Package waves holds the enemy wave table and tracks wave progress.
package waves

import (
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// MaxWaves is the number of waves in a run.
const MaxWaves = 3

// Spawn describes one enemy placed by a wave.
type Spawn struct {
	Position  geom.Vec2
	Role      units.Role
	Faction   units.Faction
	HP        int
	Speed     float64
	TurnSpeed float64
}

// Manager tracks the current wave. Wave numbers are 1-based; zero means no
// wave has started.
type Manager struct {
	current int
	table   map[int][]geom.Vec2
}

// NewManager builds the wave table for a map of the given size. All
// spawns land on the enemy half, above the river.
func NewManager(width float64) *Manager {
	mid := width / 2
	pair := func(dx, y float64) []geom.Vec2 {
		return []geom.Vec2{geom.V(mid-dx, y), geom.V(mid+dx, y)}
	}
	join := func(groups ...[]geom.Vec2) []geom.Vec2 {
		var out []geom.Vec2
		for _, g := range groups {
			out = append(out, g...)
		}
		return out
	}
	return &Manager{
		table: map[int][]geom.Vec2{
			1: join(pair(60, 480), pair(120, 420), pair(180, 540)),
			2: join(
				[]geom.Vec2{geom.V(150, 360), geom.V(width-150, 360)},
				[]geom.Vec2{geom.V(250, 300), geom.V(width-250, 300)},
				pair(100, 240),
				pair(220, 180),
			),
			3: join(pair(180, 250), pair(90, 350), pair(180, 450), pair(260, 550)),
		},
	}
}

func (m *Manager) Current() int { return m.current }

func (m *Manager) HasMoreWaves() bool { return m.current < MaxWaves }

// TryAdvance moves to the next wave and reports false once the table is
// exhausted.
func (m *Manager) TryAdvance() bool {
	if !m.HasMoreWaves() {
		return false
	}
	m.current++
	return true
}

// SetWave jumps to a wave, clamped to [0, MaxWaves]. Used when a snapshot
// is loaded.
func (m *Manager) SetWave(wave int) {
	m.current = max(0, min(wave, MaxWaves))
}

// Start begins wave 1 and returns its spawns.
func (m *Manager) Start() []Spawn {
	m.current = 1
	return m.Spawns(1)
}

// Spawns lists the enemies of a wave. Unknown waves have none.
func (m *Manager) Spawns(wave int) []Spawn {
	positions := m.table[wave]
	out := make([]Spawn, 0, len(positions))
	for _, p := range positions {
		out = append(out, Spawn{
			Position:  p,
			Role:      units.Melee,
			Faction:   units.Enemy,
			HP:        units.EnemyHP,
			Speed:     units.EnemySpeed,
			TurnSpeed: units.EnemyTurnSpeed,
		})
	}
	return out
}
