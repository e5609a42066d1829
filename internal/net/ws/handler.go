// Package ws serves simulation sessions over websockets. Each connection
// attaches one client to a session, pushes the session's messages and
// turns inbound commands into session calls.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clover-storm/unit-simulator/internal/session"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	// SessionHeader carries the session id on the upgrade response.
	SessionHeader = "X-Session-ID"
)

type HandlerConfig struct {
	Logger telemetry.Logger
	// CommandTimeout bounds each session call made for a client message.
	CommandTimeout time.Duration
}

type Handler struct {
	sessions *session.Manager
	logger   telemetry.Logger
	timeout  time.Duration
	upgrader websocket.Upgrader
}

func NewHandler(sessions *session.Manager, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		sessions: sessions,
		logger:   logger,
		timeout:  timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades GET /ws?session=<id>. Without an id a new session is
// created; an unknown id is rejected before the upgrade.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, err := h.resolve(r)
	if err != nil {
		status := nethttp.StatusBadRequest
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			status = nethttp.StatusNotFound
		case errors.Is(err, session.ErrSessionLimit):
			status = nethttp.StatusServiceUnavailable
		}
		nethttp.Error(w, err.Error(), status)
		return
	}

	header := nethttp.Header{}
	header.Set(SessionHeader, s.ID())
	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.logger.Printf("upgrade failed for session %s: %v", s.ID(), err)
		return
	}

	role := r.URL.Query().Get("role")
	if role == "" {
		role = "observer"
	}
	h.serve(s, conn, uuid.NewString(), role)
}

func (h *Handler) resolve(r *nethttp.Request) (*session.Session, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return h.sessions.Create(r.Context())
	}
	return h.sessions.Get(id)
}

func (h *Handler) serve(s *session.Session, conn *websocket.Conn, clientID, role string) {
	client := s.Attach(clientID, role)
	replies := make(chan session.Message, 16)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, client, replies, writerDone)
	defer s.Detach(clientID)

	reply := func(m session.Message) bool {
		select {
		case replies <- m:
			return true
		case <-writerDone:
			return false
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	snap, err := s.Snapshot(ctx)
	cancel()
	if err != nil {
		reply(errorMessage(err))
		return
	}
	if !reply(session.Message{Type: session.MessageFrame, Data: snap}) {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("client %s on session %s: read: %v", clientID, s.ID(), err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", clientID, err)
			if !reply(errorMessage(fmt.Errorf("malformed message: %w", err))) {
				return
			}
			continue
		}
		if msg.Type != messageCommand {
			if !reply(errorMessage(fmt.Errorf("unknown message type %q", msg.Type))) {
				return
			}
			continue
		}
		if err := h.dispatch(s, msg.Data); err != nil {
			if !reply(errorMessage(err)) {
				return
			}
		}
	}
}

func (h *Handler) dispatch(s *session.Session, data json.RawMessage) error {
	ctl, cmd, err := decodeCommand(data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if cmd != nil {
		return s.Enqueue(ctx, *cmd)
	}
	switch ctl.Type {
	case controlStep:
		_, err = s.Step(ctx, max(ctl.Frames, 1))
	case controlPlay:
		err = s.Play(ctx)
	case controlPause:
		err = s.Pause(ctx)
	case controlSeek:
		_, err = s.Seek(ctx, ctl.Frame)
	case controlReset:
		err = s.Reset(ctx)
	case controlLoad:
		err = s.LoadState(ctx, *ctl.Snapshot)
	}
	return err
}

// writeLoop is the only goroutine writing to conn. It ends when the
// client's channel closes or a write fails.
func (h *Handler) writeLoop(conn *websocket.Conn, client *session.Client, replies <-chan session.Message, done chan<- struct{}) {
	defer close(done)
	defer conn.Close()
	write := func(m session.Message) bool {
		data, err := json.Marshal(m)
		if err != nil {
			h.logger.Printf("failed to marshal %s for %s: %v", m.Type, client.ID, err)
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return false
		}
		return true
	}
	for {
		select {
		case m, ok := <-client.Messages():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(m) {
				return
			}
		case m := <-replies:
			if !write(m) {
				return
			}
		}
	}
}

func errorMessage(err error) session.Message {
	return session.Message{Type: session.MessageError, Data: session.ErrorPayload{Message: err.Error()}}
}
