package lifecycle

import (
	"context"

	"github.com/clover-storm/unit-simulator/logging"
)

const (
	EventSessionCreated logging.EventType = "lifecycle.session_created"
	EventSessionClosed  logging.EventType = "lifecycle.session_closed"
	EventClientJoined   logging.EventType = "lifecycle.client_joined"
	EventClientLeft     logging.EventType = "lifecycle.client_left"
)

type SessionClosedPayload struct {
	Reason string `json:"reason"`
}

type ClientPayload struct {
	Role    string `json:"role"`
	Clients int    `json:"clients"`
}

func session(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindSession}
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryLifecycle
	pub.Publish(ctx, event)
}

func SessionCreated(ctx context.Context, pub logging.Publisher, id string) {
	publish(ctx, pub, logging.Event{Type: EventSessionCreated, Session: id, Actor: session(id), Severity: logging.SeverityInfo})
}

// SessionClosed records why a session went away: explicit close, idle
// timeout or server shutdown.
func SessionClosed(ctx context.Context, pub logging.Publisher, id string, payload SessionClosedPayload) {
	publish(ctx, pub, logging.Event{Type: EventSessionClosed, Session: id, Actor: session(id), Severity: logging.SeverityInfo, Payload: payload})
}

func ClientJoined(ctx context.Context, pub logging.Publisher, id string, client string, payload ClientPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventClientJoined,
		Session:  id,
		Actor:    logging.EntityRef{ID: client, Kind: logging.EntityKindClient},
		Targets:  []logging.EntityRef{session(id)},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

func ClientLeft(ctx context.Context, pub logging.Publisher, id string, client string, payload ClientPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventClientLeft,
		Session:  id,
		Actor:    logging.EntityRef{ID: client, Kind: logging.EntityKindClient},
		Targets:  []logging.EntityRef{session(id)},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}
