// Package match decides when a tower battle is over and who won.
package match

import (
	"math"

	"github.com/clover-storm/unit-simulator/internal/units"
)

// Result is the outcome of a match.
type Result string

const (
	InProgress  Result = "InProgress"
	FriendlyWin Result = "FriendlyWin"
	EnemyWin    Result = "EnemyWin"
	Draw        Result = "Draw"
)

// Condition names the rule that settled the match.
type Condition string

const (
	ConditionNone   Condition = ""
	KingDestroyed   Condition = "KingDestroyed"
	MoreCrownCount  Condition = "MoreCrownCount"
	TieBreaker      Condition = "TieBreaker"
	MoreTowerDamage Condition = "MoreTowerDamage"
)

const (
	DefaultRegularFrames = 1800
	DefaultMaxFrames     = 2700

	ratioEpsilon = 1e-4
)

// State is the running verdict of one match.
type State struct {
	Result    Result    `json:"result"`
	Condition Condition `json:"condition,omitempty"`
	Overtime  bool      `json:"overtime"`
}

// Evaluator applies the win rules in order: a destroyed king ends the
// match at once; at the end of regular time the side with more crowns
// wins, otherwise overtime starts; in overtime the first crown lead wins;
// at max time the side with the larger remaining tower HP ratio wins.
type Evaluator struct {
	RegularFrames int
	MaxFrames     int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{RegularFrames: DefaultRegularFrames, MaxFrames: DefaultMaxFrames}
}

// Evaluate updates state for the given frame. A settled state is left
// untouched. Worlds without towers never produce a result.
func (e *Evaluator) Evaluate(state *State, world *units.World, frame int) {
	if state.Result == "" {
		state.Result = InProgress
	}
	if state.Result != InProgress || len(world.AllTowers()) == 0 {
		return
	}

	friendlyKing := kingDestroyed(world, units.Friendly)
	enemyKing := kingDestroyed(world, units.Enemy)
	if friendlyKing || enemyKing {
		switch {
		case friendlyKing && enemyKing:
			state.Result = Draw
		case enemyKing:
			state.Result = FriendlyWin
		default:
			state.Result = EnemyWin
		}
		state.Condition = KingDestroyed
		return
	}

	if frame < e.RegularFrames {
		return
	}

	friendlyCrowns, enemyCrowns := Crowns(world, units.Friendly), Crowns(world, units.Enemy)
	if !state.Overtime {
		if friendlyCrowns != enemyCrowns {
			setByCrowns(state, friendlyCrowns, enemyCrowns, MoreCrownCount)
			return
		}
		state.Overtime = true
		return
	}
	if friendlyCrowns != enemyCrowns {
		setByCrowns(state, friendlyCrowns, enemyCrowns, TieBreaker)
		return
	}
	if frame < e.MaxFrames {
		return
	}

	friendlyRatio := TowerHPRatio(world, units.Friendly)
	enemyRatio := TowerHPRatio(world, units.Enemy)
	state.Condition = MoreTowerDamage
	switch {
	case math.Abs(friendlyRatio-enemyRatio) < ratioEpsilon:
		state.Result = Draw
	case friendlyRatio > enemyRatio:
		state.Result = FriendlyWin
	default:
		state.Result = EnemyWin
	}
}

func setByCrowns(state *State, friendly, enemy int, cond Condition) {
	if friendly > enemy {
		state.Result = FriendlyWin
	} else {
		state.Result = EnemyWin
	}
	state.Condition = cond
}

func kingDestroyed(world *units.World, f units.Faction) bool {
	for _, t := range world.Towers(f) {
		if t.Type == units.TowerKing && t.Destroyed() {
			return true
		}
	}
	return false
}

// Crowns counts the opponent towers a faction has destroyed.
func Crowns(world *units.World, f units.Faction) int {
	n := 0
	for _, t := range world.Towers(f.Opponent()) {
		if t.Destroyed() {
			n++
		}
	}
	return n
}

// TowerHPRatio is the summed remaining HP over summed max HP of a
// faction's towers.
func TowerHPRatio(world *units.World, f units.Faction) float64 {
	hp, max := 0, 0
	for _, t := range world.Towers(f) {
		hp += t.HP
		max += t.MaxHP
	}
	if max == 0 {
		return 0
	}
	return float64(hp) / float64(max)
}
