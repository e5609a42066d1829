package behavior

import (
	"github.com/clover-storm/unit-simulator/internal/geom"
	"github.com/clover-storm/unit-simulator/internal/targeting"
	"github.com/clover-storm/unit-simulator/internal/units"
)

// acquire keeps a living target until the periodic re-evaluation and picks
// a new one when it is lost. Switching targets releases the old slot.
func acquire(env *Env, u *units.Unit, opponents []*units.Unit, towers []*units.Tower) targeting.Target {
	current := env.resolve(u.Target)
	u.FramesSinceTargetEvaluation++
	if alive(current) && u.FramesSinceTargetEvaluation < units.TargetReevaluateFrames {
		return current
	}
	u.FramesSinceTargetEvaluation = 0

	next := targeting.SelectTarget(u, opponents, towers)
	if next.Ref() != u.Target {
		env.World.ReleaseSlot(u)
		u.Target = next.Ref()
		u.FramesSinceSlotEvaluation = 0
	}
	return next
}

// upkeepSlot reserves a slot on first contact and moves to a better one
// every SlotReevaluateFrames.
func upkeepSlot(u, target *units.Unit) {
	if u.TakenSlotIndex == -1 {
		target.TryClaimSlot(u)
		u.FramesSinceSlotEvaluation = 0
		return
	}
	u.FramesSinceSlotEvaluation++
	if u.FramesSinceSlotEvaluation >= units.SlotReevaluateFrames {
		target.ClaimBestSlot(u)
		u.FramesSinceSlotEvaluation = 0
	}
}

// engage pursues and attacks target. Melee units close on their slot while
// ranged units hold position once in range.
func engage(env *Env, u *units.Unit, target targeting.Target, opponents []*units.Unit, others []*units.Unit) {
	var aim geom.Vec2
	var reach float64
	switch {
	case target.Unit != nil:
		aim = target.Unit.Position
		reach = u.AttackRange
		u.Destination = aim
		if u.Role == units.Melee {
			upkeepSlot(u, target.Unit)
			if u.TakenSlotIndex != -1 {
				u.Destination = target.Unit.SlotPosition(u.TakenSlotIndex, u.Radius)
			}
		}
	case target.Tower != nil:
		aim = target.Tower.Position
		reach = u.AttackRange + target.Tower.Radius
		u.Destination = aim
	}

	env.Combat.UpdateChargeState(u, aim, true)

	distance := u.Position.Dist(aim)
	inRange := distance <= reach
	if inRange && u.AttackCooldown <= 0 {
		if target.Unit != nil {
			env.Combat.CollectAttackEvents(u, target.Unit, opponents, env.Events)
		} else {
			env.Combat.CollectTowerAttack(u, target.Tower, env.Events)
		}
		u.AttackCooldown = units.AttackCooldownFrames
	}

	if inRange && (u.Role == units.Ranged || target.Tower != nil || u.TakenSlotIndex == -1) {
		halt(u)
		face(u, aim)
		return
	}
	moveToward(env, u, u.Destination, others)
}

func coolDown(u *units.Unit) {
	if u.AttackCooldown > 0 {
		u.AttackCooldown--
		if u.AttackCooldown < 0 {
			u.AttackCooldown = 0
		}
	}
}

func halt(u *units.Unit) {
	u.Velocity = geom.Zero
	u.HasAvoidanceTarget = false
	u.AvoidanceThreat = units.Ref{}
}

// face turns a stationary unit toward a point at its turn rate.
func face(u *units.Unit, p geom.Vec2) {
	dir := p.Sub(u.Position)
	if dir.LenSq() < 1e-6 {
		return
	}
	diff := geom.WrapAngle(dir.Angle() - u.Forward.Angle())
	u.Forward = u.Forward.Rotate(geom.Clamp(diff, -u.TurnSpeed, u.TurnSpeed))
}
