package sim

import (
	"sync/atomic"

	"github.com/clover-storm/unit-simulator/internal/units"
)

// UnitEventType classifies per-unit notifications.
type UnitEventType string

const (
	UnitSpawned UnitEventType = "spawned"
	UnitDied    UnitEventType = "died"
	UnitDamaged UnitEventType = "damaged"
	UnitRevived UnitEventType = "revived"
	UnitRemoved UnitEventType = "removed"
)

// UnitEvent reports something that happened to one unit. Related is the
// other party when there is one, such as the attacker of a damage event.
type UnitEvent struct {
	Type    UnitEventType `json:"type"`
	Frame   int           `json:"frame"`
	Unit    units.Ref     `json:"unit"`
	Related units.Ref     `json:"related,omitempty"`
	Value   int           `json:"value,omitempty"`
}

// Listener observes a Core. Calls happen synchronously on the goroutine
// that drives the Core, so implementations must not call back into it.
type Listener interface {
	OnFrameGenerated(snapshot FrameSnapshot)
	OnStateChanged(description string)
	OnUnitEvent(event UnitEvent)
	OnSimulationComplete(frame int, reason string)
}

// ListenerFuncs adapts optional functions into a Listener.
type ListenerFuncs struct {
	Frame    func(FrameSnapshot)
	State    func(string)
	Unit     func(UnitEvent)
	Complete func(frame int, reason string)
}

func (l ListenerFuncs) OnFrameGenerated(s FrameSnapshot) {
	if l.Frame != nil {
		l.Frame(s)
	}
}

func (l ListenerFuncs) OnStateChanged(description string) {
	if l.State != nil {
		l.State(description)
	}
}

func (l ListenerFuncs) OnUnitEvent(e UnitEvent) {
	if l.Unit != nil {
		l.Unit(e)
	}
}

func (l ListenerFuncs) OnSimulationComplete(frame int, reason string) {
	if l.Complete != nil {
		l.Complete(frame, reason)
	}
}

// NotificationKind tags the payload of a Notification.
type NotificationKind string

const (
	NotifyFrame    NotificationKind = "frame"
	NotifyState    NotificationKind = "state_change"
	NotifyUnit     NotificationKind = "unit_event"
	NotifyComplete NotificationKind = "simulation_complete"
)

// Notification is one listener call captured as a value.
type Notification struct {
	Kind     NotificationKind
	Frame    *FrameSnapshot
	Message  string
	Unit     *UnitEvent
	Complete int
}

// ChannelListener forwards notifications to a buffered channel. When the
// channel is full the notification is dropped and counted, so a slow
// reader never stalls the simulation.
type ChannelListener struct {
	ch      chan Notification
	dropped atomic.Uint64
}

func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelListener{ch: make(chan Notification, buffer)}
}

func (l *ChannelListener) C() <-chan Notification { return l.ch }

func (l *ChannelListener) Dropped() uint64 { return l.dropped.Load() }

func (l *ChannelListener) send(n Notification) {
	select {
	case l.ch <- n:
	default:
		l.dropped.Add(1)
	}
}

func (l *ChannelListener) OnFrameGenerated(s FrameSnapshot) {
	l.send(Notification{Kind: NotifyFrame, Frame: &s})
}

func (l *ChannelListener) OnStateChanged(description string) {
	l.send(Notification{Kind: NotifyState, Message: description})
}

func (l *ChannelListener) OnUnitEvent(e UnitEvent) {
	l.send(Notification{Kind: NotifyUnit, Unit: &e})
}

func (l *ChannelListener) OnSimulationComplete(frame int, reason string) {
	l.send(Notification{Kind: NotifyComplete, Message: reason, Complete: frame})
}
