package simulation

import (
	"context"

	"github.com/clover-storm/unit-simulator/logging"
)

const (
	// EventWaveStarted is emitted when a wave's spawn commands are queued.
	EventWaveStarted logging.EventType = "simulation.wave_started"
	// EventCompleted is emitted once when a run ends.
	EventCompleted logging.EventType = "simulation.completed"
	// EventStateLoaded is emitted after a snapshot replaces the world.
	EventStateLoaded logging.EventType = "simulation.state_loaded"
	// EventCommandRejected is emitted when a command references a unit that
	// does not exist or carries invalid values.
	EventCommandRejected logging.EventType = "simulation.command_rejected"
	// EventFrameOverrun is emitted when a frame takes longer than its budget.
	EventFrameOverrun logging.EventType = "simulation.frame_overrun"
)

type WaveStartedPayload struct {
	Wave   int `json:"wave"`
	Spawns int `json:"spawns"`
}

type CompletedPayload struct {
	Reason       string `json:"reason"`
	Result       string `json:"result,omitempty"`
	WinCondition string `json:"winCondition,omitempty"`
}

type StateLoadedPayload struct {
	Friendly int `json:"friendly"`
	Enemy    int `json:"enemy"`
	Towers   int `json:"towers"`
}

type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

type FrameOverrunPayload struct {
	DurationMillis int64 `json:"durationMillis"`
	BudgetMillis   int64 `json:"budgetMillis"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryGameplay
	if event.Actor.Kind == "" {
		event.Actor = logging.EntityRef{Kind: logging.EntityKindSim}
	}
	pub.Publish(ctx, event)
}

func WaveStarted(ctx context.Context, pub logging.Publisher, frame uint64, payload WaveStartedPayload) {
	publish(ctx, pub, logging.Event{Type: EventWaveStarted, Frame: frame, Severity: logging.SeverityInfo, Payload: payload})
}

func Completed(ctx context.Context, pub logging.Publisher, frame uint64, payload CompletedPayload) {
	publish(ctx, pub, logging.Event{Type: EventCompleted, Frame: frame, Severity: logging.SeverityInfo, Payload: payload})
}

func StateLoaded(ctx context.Context, pub logging.Publisher, frame uint64, payload StateLoadedPayload) {
	publish(ctx, pub, logging.Event{Type: EventStateLoaded, Frame: frame, Severity: logging.SeverityInfo, Payload: payload})
}

// CommandRejected records a dropped command at warn level.
func CommandRejected(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload CommandRejectedPayload) {
	publish(ctx, pub, logging.Event{Type: EventCommandRejected, Frame: frame, Actor: actor, Severity: logging.SeverityWarn, Payload: payload})
}

func FrameOverrun(ctx context.Context, pub logging.Publisher, frame uint64, payload FrameOverrunPayload) {
	publish(ctx, pub, logging.Event{Type: EventFrameOverrun, Frame: frame, Severity: logging.SeverityWarn, Payload: payload})
}
