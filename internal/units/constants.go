package units

const (
	UnitRadius        = 20.0
	FriendlyHP        = 100
	EnemyHP           = 30
	BaseDamage        = 10
	FriendlySpeed     = 4.5
	FriendlyTurnSpeed = 0.08
	EnemySpeed        = 4.0
	EnemyTurnSpeed    = 0.1

	MeleeRangeMultiplier  = 3.0
	RangedRangeMultiplier = 8.0

	// NumAttackSlots is the size of the ring of attack positions around a unit.
	NumAttackSlots = 8
	slotPadding    = 10.0

	// AttackCooldownFrames is the delay between two attacks of one unit.
	AttackCooldownFrames = 30.0

	SlotReevaluateFrames   = 30
	TargetReevaluateFrames = 45

	CollisionRadiusScale = 1.1

	// WaypointThreshold is how close a unit must get to consume a waypoint.
	WaypointThreshold = 10.0
)
