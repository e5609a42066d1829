package sim

import (
	"errors"
	"fmt"

	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// ErrInvalidFaction marks commands for a faction other than Friendly or
// Enemy.
var ErrInvalidFaction = errors.New("invalid faction")

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandSpawn     CommandType = "spawn"
	CommandMove      CommandType = "move"
	CommandDamage    CommandType = "damage"
	CommandKill      CommandType = "kill"
	CommandRevive    CommandType = "revive"
	CommandRemove    CommandType = "remove"
	CommandSetHealth CommandType = "set_health"
)

// SpawnCommand places a new unit. With a DefinitionID the unit is built
// from the registry; otherwise Role and the faction defaults apply. Zero
// HP, Speed and TurnSpeed take the defaults.
type SpawnCommand struct {
	Position     geom.Vec2  `json:"position"`
	Role         units.Role `json:"role"`
	DefinitionID string     `json:"definitionId,omitempty"`
	HP           int        `json:"hp,omitempty"`
	Speed        float64    `json:"speed,omitempty"`
	TurnSpeed    float64    `json:"turnSpeed,omitempty"`
}

// MoveCommand walks a unit through Waypoints and then to Destination,
// overriding its own pursuit until it arrives.
type MoveCommand struct {
	Destination geom.Vec2   `json:"destination"`
	Waypoints   []geom.Vec2 `json:"waypoints,omitempty"`
}

type DamageCommand struct {
	Amount int `json:"amount"`
}

// HealthCommand carries the hit points for revive and set_health. A
// revive with zero HP restores the unit's max HP.
type HealthCommand struct {
	HP int `json:"hp"`
}

// Command is an intent scheduled for a frame. Every command except spawn
// addresses an existing unit by faction and id.
type Command struct {
	Frame   int            `json:"frame"`
	Type    CommandType    `json:"type"`
	Faction units.Faction  `json:"faction"`
	UnitID  int            `json:"unitId,omitempty"`
	Spawn   *SpawnCommand  `json:"spawn,omitempty"`
	Move    *MoveCommand   `json:"move,omitempty"`
	Damage  *DamageCommand `json:"damage,omitempty"`
	Health  *HealthCommand `json:"health,omitempty"`
}

// Validate checks the faction and that the payload required by the
// command type is set.
func (c Command) Validate() error {
	if c.Faction != units.Friendly && c.Faction != units.Enemy {
		return fmt.Errorf("%s command: %w %d", c.Type, ErrInvalidFaction, uint8(c.Faction))
	}
	switch c.Type {
	case CommandSpawn:
		if c.Spawn == nil {
			return fmt.Errorf("%s command without spawn payload", c.Type)
		}
		return nil
	case CommandMove:
		if c.Move == nil {
			return fmt.Errorf("%s command without move payload", c.Type)
		}
	case CommandDamage:
		if c.Damage == nil || c.Damage.Amount < 0 {
			return fmt.Errorf("%s command needs a non-negative amount", c.Type)
		}
	case CommandSetHealth:
		if c.Health == nil {
			return fmt.Errorf("%s command without health payload", c.Type)
		}
	case CommandKill, CommandRevive, CommandRemove:
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
	if c.UnitID <= 0 {
		return fmt.Errorf("%s command needs a unit id", c.Type)
	}
	return nil
}

func (c Command) String() string {
	if c.Type == CommandSpawn {
		return fmt.Sprintf("%s %s@%d", c.Type, c.Faction, c.Frame)
	}
	return fmt.Sprintf("%s %s@%d", c.Type, units.UnitRef(c.Faction, c.UnitID), c.Frame)
}

func Spawn(frame int, faction units.Faction, spawn SpawnCommand) Command {
	return Command{Frame: frame, Type: CommandSpawn, Faction: faction, Spawn: &spawn}
}

func Move(frame int, faction units.Faction, id int, destination geom.Vec2, waypoints ...geom.Vec2) Command {
	return Command{Frame: frame, Type: CommandMove, Faction: faction, UnitID: id, Move: &MoveCommand{Destination: destination, Waypoints: waypoints}}
}

func Damage(frame int, faction units.Faction, id, amount int) Command {
	return Command{Frame: frame, Type: CommandDamage, Faction: faction, UnitID: id, Damage: &DamageCommand{Amount: amount}}
}

func Kill(frame int, faction units.Faction, id int) Command {
	return Command{Frame: frame, Type: CommandKill, Faction: faction, UnitID: id}
}

func Revive(frame int, faction units.Faction, id, hp int) Command {
	return Command{Frame: frame, Type: CommandRevive, Faction: faction, UnitID: id, Health: &HealthCommand{HP: hp}}
}

func Remove(frame int, faction units.Faction, id int) Command {
	return Command{Frame: frame, Type: CommandRemove, Faction: faction, UnitID: id}
}

func SetHealth(frame int, faction units.Faction, id, hp int) Command {
	return Command{Frame: frame, Type: CommandSetHealth, Faction: faction, UnitID: id, Health: &HealthCommand{HP: hp}}
}
