package session

import (
	"sync"
	"sync/atomic"

	"github.com/clover-storm/unit-simulator/internal/journal"
)

type MessageType string

const (
	MessageFrame       MessageType = "frame"
	MessageStateChange MessageType = "state_change"
	MessageComplete    MessageType = "simulation_complete"
	MessageError       MessageType = "error"
)

// Message is one server-to-client envelope.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

type CompletePayload struct {
	Frame  int    `json:"frame"`
	Reason string `json:"reason"`
}

type StateChangePayload struct {
	Description string `json:"description"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Client is one subscriber attached to a session. Messages are delivered
// on a buffered channel; a full buffer drops messages instead of stalling
// the simulation. Once drops pass the resync threshold the client is
// marked lagging and the oldest buffered message gives way to the newest.
type Client struct {
	ID   string
	Role string

	mu      sync.Mutex
	out     chan Message
	closed  bool
	lagging bool
	policy  *journal.Policy
	dropped atomic.Uint64
}

func newClient(id, role string, buffer int) *Client {
	return &Client{
		ID:     id,
		Role:   role,
		out:    make(chan Message, buffer),
		policy: journal.NewPolicy(),
	}
}

// Messages is closed when the client is detached or the session closes.
func (c *Client) Messages() <-chan Message { return c.out }

func (c *Client) Dropped() uint64 { return c.dropped.Load() }

func (c *Client) Lagging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lagging
}

// deliver queues m and reports a resync signal when this delivery tipped
// the client into lagging.
func (c *Client) deliver(m Message) (journal.ResyncSignal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return journal.ResyncSignal{}, false
	}
	select {
	case c.out <- m:
		c.policy.NoteDelivered()
		if c.lagging && len(c.out) < cap(c.out)/2 {
			c.lagging = false
		}
		return journal.ResyncSignal{}, false
	default:
	}

	if c.lagging {
		select {
		case <-c.out:
		default:
		}
		select {
		case c.out <- m:
			c.dropped.Add(1)
			return journal.ResyncSignal{}, false
		default:
		}
	}

	c.dropped.Add(1)
	c.policy.NoteDropped(string(m.Type), c.ID)
	signal, ok := c.policy.Consume()
	if ok {
		c.lagging = true
	}
	return signal, ok
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}
