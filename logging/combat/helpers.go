package combat

import (
	"context"

	"github.com/clover-storm/unit-simulator/logging"
)

const (
	// EventDamage is emitted for each applied hit.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a unit dies.
	EventDefeat logging.EventType = "combat.defeat"
	// EventTowerDestroyed is emitted when a tower reaches zero HP.
	EventTowerDestroyed logging.EventType = "combat.tower_destroyed"
	// EventSpawned is emitted for units created by death effects.
	EventSpawned logging.EventType = "combat.spawned"
	// EventSpawnFailed is emitted when a requested spawn could not be built.
	EventSpawnFailed logging.EventType = "combat.spawn_failed"
)

type DamagePayload struct {
	Kind         string `json:"kind"`
	Amount       int    `json:"amount"`
	TargetHealth int    `json:"targetHealth"`
}

type DefeatPayload struct {
	Kind string `json:"kind,omitempty"`
}

type SpawnedPayload struct {
	UnitID string  `json:"unitId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type SpawnFailedPayload struct {
	UnitID string `json:"unitId"`
	Reason string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryCombat
	pub.Publish(ctx, event)
}

func Damage(ctx context.Context, pub logging.Publisher, frame uint64, actor, target logging.EntityRef, payload DamagePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventDamage,
		Frame:    frame,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func Defeat(ctx context.Context, pub logging.Publisher, frame uint64, target logging.EntityRef, payload DefeatPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventDefeat,
		Frame:    frame,
		Actor:    target,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func TowerDestroyed(ctx context.Context, pub logging.Publisher, frame uint64, tower logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventTowerDestroyed,
		Frame:    frame,
		Actor:    tower,
		Severity: logging.SeverityInfo,
	})
}

func Spawned(ctx context.Context, pub logging.Publisher, frame uint64, unit logging.EntityRef, payload SpawnedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpawned,
		Frame:    frame,
		Actor:    unit,
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func SpawnFailed(ctx context.Context, pub logging.Publisher, frame uint64, payload SpawnFailedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpawnFailed,
		Frame:    frame,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSim},
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}
