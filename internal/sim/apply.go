package sim

import (
	"context"
	"fmt"

	"github.com/clover-storm/unit-simulator/internal/combat"
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/internal/units"
	"github.com/clover-storm/unit-simulator/logging"
	combatlog "github.com/clover-storm/unit-simulator/logging/combat"
)

// execute runs one command and returns the units it killed. Those join the
// frame's chain-death worklist so their death effects still fire.
func (c *Core) execute(cmd Command) ([]*units.Unit, error) {
	if cmd.Type == CommandSpawn {
		u := c.newUnit(cmd.Faction, *cmd.Spawn)
		if u == nil {
			return nil, fmt.Errorf("%w: %q", units.ErrUnknownDefinition, cmd.Spawn.DefinitionID)
		}
		c.world.Add(u)
		c.unitEvent(UnitEvent{Type: UnitSpawned, Unit: u.Ref(), Value: u.HP})
		c.deps.Metrics.Add(telemetry.MetricUnitsSpawned, 1)
		return nil, nil
	}

	u := c.world.Unit(cmd.Faction, cmd.UnitID)
	if u == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownUnit, units.UnitRef(cmd.Faction, cmd.UnitID))
	}

	switch cmd.Type {
	case CommandMove:
		path := append(append([]geom.Vec2(nil), cmd.Move.Waypoints...), cmd.Move.Destination)
		u.SetMovementPath(path)
		u.Destination = cmd.Move.Destination
	case CommandDamage:
		if u.IsDead {
			return nil, nil
		}
		c.unitEvent(UnitEvent{Type: UnitDamaged, Unit: u.Ref(), Value: cmd.Damage.Amount})
		if c.world.Damage(u, cmd.Damage.Amount) {
			return []*units.Unit{u}, nil
		}
	case CommandKill:
		if c.world.Kill(u) {
			return []*units.Unit{u}, nil
		}
	case CommandRevive:
		hp := cmd.Health.HP
		if hp <= 0 {
			hp = u.MaxHP
		}
		c.world.ReleaseSlot(u)
		revive(u, hp)
		c.unitEvent(UnitEvent{Type: UnitRevived, Unit: u.Ref(), Value: hp})
	case CommandRemove:
		c.world.Remove(u.Faction, u.ID)
		c.unitEvent(UnitEvent{Type: UnitRemoved, Unit: u.Ref()})
	case CommandSetHealth:
		hp := max(0, cmd.Health.HP)
		if hp == 0 {
			if c.world.Kill(u) {
				return []*units.Unit{u}, nil
			}
			return nil, nil
		}
		u.HP = hp
		u.MaxHP = max(u.MaxHP, hp)
	}
	return nil, nil
}

func revive(u *units.Unit, hp int) {
	u.IsDead = false
	u.HP = hp
	u.MaxHP = max(u.MaxHP, hp)
	u.Velocity = geom.Zero
	u.Target = units.Ref{}
	u.TakenSlotIndex = -1
	u.Effects = nil
	u.AttackCooldown = 0
	u.FramesSinceTargetEvaluation = 0
	u.FramesSinceSlotEvaluation = 0
	if u.Charge != nil {
		u.Charge.Reset()
	}
	if shield, ok := units.FindAbility[units.Shield](u.Abilities); ok {
		u.ShieldHP = shield.MaxShieldHP
	}
}

// newUnit builds a unit for a spawn command, applying the faction defaults
// for unset stats. It returns nil for an unknown definition id.
func (c *Core) newUnit(faction units.Faction, s SpawnCommand) *units.Unit {
	pos := c.cfg.Layout.ClampToBounds(s.Position)
	if s.DefinitionID != "" {
		if !c.cfg.Registry.Has(s.DefinitionID) {
			return nil
		}
		u, err := c.cfg.Registry.Spawn(s.DefinitionID, c.allocateID(faction), faction, pos, s.HP)
		if err != nil {
			c.nextID[faction]--
			return nil
		}
		if s.Speed > 0 {
			u.Speed = s.Speed
		}
		if s.TurnSpeed > 0 {
			u.TurnSpeed = s.TurnSpeed
		}
		return u
	}

	hp, speed, turn := units.FriendlyHP, units.FriendlySpeed, units.FriendlyTurnSpeed
	if faction == units.Enemy {
		hp, speed, turn = units.EnemyHP, units.EnemySpeed, units.EnemyTurnSpeed
	}
	if s.HP > 0 {
		hp = s.HP
	}
	if s.Speed > 0 {
		speed = s.Speed
	}
	if s.TurnSpeed > 0 {
		turn = s.TurnSpeed
	}
	return units.NewUnit(units.Spec{
		ID:        c.allocateID(faction),
		Faction:   faction,
		Role:      s.Role,
		CanTarget: units.TargetGround | units.TargetBuilding,
		Position:  pos,
		Speed:     speed,
		TurnSpeed: turn,
		HP:        hp,
	})
}

// report turns an apply outcome into listener notifications, structured
// events and metrics.
func (c *Core) report(out combat.Outcome) {
	ctx := context.Background()
	frame := uint64(c.frame)
	for _, hit := range out.Hits {
		if hit.Target.Kind == units.KindUnit {
			c.unitEvent(UnitEvent{Type: UnitDamaged, Unit: hit.Target, Related: hit.Source, Value: hit.Amount})
		}
		health := 0
		if u := c.world.ResolveUnit(hit.Target); u != nil {
			health = u.HP
		} else if t := c.world.ResolveTower(hit.Target); t != nil {
			health = t.HP
		}
		combatlog.Damage(ctx, c.deps.Publisher, frame, entity(hit.Source), entity(hit.Target), combatlog.DamagePayload{
			Kind:         hit.Kind.String(),
			Amount:       hit.Amount,
			TargetHealth: health,
		})
	}
	for _, dead := range out.Deaths {
		c.unitEvent(UnitEvent{Type: UnitDied, Unit: dead.Ref()})
		combatlog.Defeat(ctx, c.deps.Publisher, frame, entity(dead.Ref()), combatlog.DefeatPayload{Kind: dead.DefinitionID})
	}
	c.deps.Metrics.Add(telemetry.MetricUnitsDefeated, uint64(len(out.Deaths)))
	for _, t := range out.Destroyed {
		combatlog.TowerDestroyed(ctx, c.deps.Publisher, frame, entity(t.Ref()))
		c.stateChanged(fmt.Sprintf("tower %s destroyed", t.Ref()))
	}
	for _, u := range out.Spawned {
		c.unitEvent(UnitEvent{Type: UnitSpawned, Unit: u.Ref(), Value: u.HP})
		combatlog.Spawned(ctx, c.deps.Publisher, frame, entity(u.Ref()), combatlog.SpawnedPayload{
			UnitID: u.DefinitionID,
			X:      u.Position.X,
			Y:      u.Position.Y,
		})
	}
	c.deps.Metrics.Add(telemetry.MetricUnitsSpawned, uint64(len(out.Spawned)))
	for _, f := range out.Failed {
		c.deps.Logger.Printf("sim: frame %d: spawn %q failed: %v", c.frame, f.Request.UnitID, f.Err)
		combatlog.SpawnFailed(ctx, c.deps.Publisher, frame, combatlog.SpawnFailedPayload{
			UnitID: f.Request.UnitID,
			Reason: f.Err.Error(),
		})
	}
}

func entity(ref units.Ref) logging.EntityRef {
	kind := logging.EntityKindUnit
	if ref.Kind == units.KindTower {
		kind = logging.EntityKindTower
	}
	return logging.EntityRef{ID: ref.String(), Kind: kind}
}
