package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clover-storm/unit-simulator/internal/journal"
	"github.com/clover-storm/unit-simulator/internal/sim"
	"github.com/clover-storm/unit-simulator/internal/storage"
	"github.com/clover-storm/unit-simulator/logging"
	"github.com/clover-storm/unit-simulator/logging/lifecycle"
	simlog "github.com/clover-storm/unit-simulator/logging/simulation"
)

// Info is a point-in-time summary of a session.
type Info struct {
	ID           string    `json:"id"`
	Frame        int       `json:"frame"`
	Status       string    `json:"status"`
	Playing      bool      `json:"playing"`
	Clients      int       `json:"clients"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type request struct {
	fn    func() error
	reply chan error
}

// Session owns one simulation. A single goroutine runs the Core; every
// other goroutine reaches it through requests on a channel.
type Session struct {
	id        string
	cfg       Config
	deps      Deps
	createdAt time.Time

	core     *sim.Core
	journal  *journal.Journal
	recorder *storage.Recorder

	// clientsChanged reports attach (+1) and detach (-1) to the manager.
	clientsChanged func(delta int)

	requests  chan request
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	activity  atomic.Int64

	mu      sync.RWMutex
	clients map[string]*Client
	info    Info

	// Owned by the loop goroutine.
	playing   bool
	replaying bool
	last      sim.FrameSnapshot
	hasLast   bool
	commands  []sim.Command
}

func newSession(ctx context.Context, id string, cfg Config, deps Deps, clientsChanged func(int)) *Session {
	deps.Publisher = logging.ForSession(deps.Publisher, id)
	now := deps.Clock()
	s := &Session{
		id:             id,
		cfg:            cfg,
		deps:           deps,
		createdAt:      now,
		journal:        journal.New(cfg.JournalCapacity, 0),
		clientsChanged: clientsChanged,
		requests:       make(chan request),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		clients:        make(map[string]*Client),
	}
	s.activity.Store(now.UnixNano())
	s.journal.SetInterval(cfg.JournalInterval)
	s.journal.AttachMetrics(deps.Metrics)

	s.core = sim.NewCore(cfg.Sim, sim.Deps{Logger: deps.Logger, Metrics: deps.Metrics, Publisher: deps.Publisher})
	s.core.AddListener(sim.ListenerFuncs{
		Frame:    s.onFrame,
		State:    s.onStateChanged,
		Complete: s.onComplete,
	})
	if deps.Store != nil {
		if err := deps.Store.CreateSession(ctx, id); err != nil {
			deps.Logger.Printf("session %s: persistence disabled: %v", id, err)
		} else {
			s.recorder = storage.NewRecorder(deps.Store, id, cfg.Recorder, deps.Logger, deps.Metrics)
			s.core.AddListener(s.recorder)
		}
	}
	s.core.Initialize()
	s.refreshInfo()

	go s.loop()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) loop() {
	defer close(s.done)
	var ticker *time.Ticker
	var tick <-chan time.Time
	pace := func() {
		switch {
		case s.playing && ticker == nil:
			ticker = time.NewTicker(s.cfg.tickInterval())
			tick = ticker.C
		case !s.playing && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-s.stop:
			return
		case req := <-s.requests:
			err := req.fn()
			pace()
			s.refreshInfo()
			req.reply <- err
		case <-tick:
			s.advance()
			pace()
			s.refreshInfo()
		}
	}
}

// advance runs one paced frame while playing.
func (s *Session) advance() {
	start := time.Now()
	_, reason, err := s.core.Tick()
	if err != nil {
		s.deps.Logger.Printf("session %s: tick failed: %v", s.id, err)
		s.playing = false
		return
	}
	if reason != "" {
		s.playing = false
	}
	budget := s.cfg.tickInterval()
	if elapsed := time.Since(start); elapsed > budget {
		simlog.FrameOverrun(context.Background(), s.deps.Publisher, uint64(s.core.Frame()-1), simlog.FrameOverrunPayload{
			DurationMillis: elapsed.Milliseconds(),
			BudgetMillis:   budget.Milliseconds(),
		})
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.requests <- request{fn: fn, reply: reply}:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	s.touch()
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) touch() {
	s.activity.Store(s.deps.Clock().UnixNano())
}

// Step advances n frames and returns the last snapshot.
func (s *Session) Step(ctx context.Context, n int) (sim.FrameSnapshot, error) {
	n = max(n, 1)
	var snap sim.FrameSnapshot
	err := s.do(ctx, func() error {
		for i := 0; i < n; i++ {
			var err error
			var reason string
			snap, reason, err = s.core.Tick()
			if err != nil {
				return err
			}
			if reason != "" {
				s.playing = false
				break
			}
		}
		return nil
	})
	return snap, err
}

// Play starts pacing frames at the configured tick rate.
func (s *Session) Play(ctx context.Context) error {
	return s.do(ctx, func() error {
		if _, done := s.core.Done(); done {
			return ErrRunEnded
		}
		s.playing = true
		return nil
	})
}

func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.playing = false
		s.core.Pause()
		return nil
	})
}

// Enqueue schedules a simulation command. Commands for past frames take
// effect on the next frame. Journaled frames from that frame on belong to
// a timeline that no longer exists and are dropped.
func (s *Session) Enqueue(ctx context.Context, cmd sim.Command) error {
	return s.do(ctx, func() error {
		cmd.Frame = max(cmd.Frame, s.core.Frame())
		if err := s.core.EnqueueCommand(cmd); err != nil {
			return err
		}
		s.commands = append(s.commands, cmd)
		s.journal.Truncate(cmd.Frame - 1)
		s.discardPersisted(cmd.Frame - 1)
		return nil
	})
}

// Seek moves the session to the state after frame. Backward seeks restore
// the nearest journaled or persisted snapshot at or before frame, or
// restart from the beginning, then replay recorded commands forward.
// The returned snapshot is frame; the next step produces frame+1.
func (s *Session) Seek(ctx context.Context, frame int) (sim.FrameSnapshot, error) {
	if frame < 0 {
		return sim.FrameSnapshot{}, fmt.Errorf("seek to negative frame %d", frame)
	}
	var snap sim.FrameSnapshot
	err := s.do(ctx, func() error {
		s.playing = false
		s.core.Pause()
		var err error
		snap, err = s.seek(ctx, frame)
		if err != nil {
			return err
		}
		s.broadcast(Message{Type: MessageFrame, Data: snap})
		return nil
	})
	return snap, err
}

func (s *Session) seek(ctx context.Context, frame int) (sim.FrameSnapshot, error) {
	s.replaying = true
	defer func() { s.replaying = false }()

	result := s.last
	if frame < s.core.Frame() {
		base, ok := s.journal.Nearest(frame)
		if !ok && s.deps.Store != nil {
			if snap, err := s.deps.Store.Snapshot(ctx, s.id, frame); err == nil {
				base, ok = journal.Keyframe{Frame: snap.FrameNumber, Snapshot: snap}, true
			} else if !errors.Is(err, storage.ErrNotFound) {
				s.deps.Logger.Printf("session %s: load persisted frame %d: %v", s.id, frame, err)
			}
		}
		from := -1
		if ok {
			if err := s.core.LoadState(base.Snapshot); err != nil {
				return sim.FrameSnapshot{}, fmt.Errorf("restore frame %d: %w", base.Frame, err)
			}
			from = base.Frame
			result = base.Snapshot
		} else {
			s.core.Reset()
		}
		for _, cmd := range s.commands {
			if cmd.Frame > from {
				if err := s.core.EnqueueCommand(cmd); err != nil {
					s.deps.Logger.Printf("session %s: replay %s: %v", s.id, cmd, err)
				}
			}
		}
	}
	for s.core.Frame() <= frame {
		var err error
		if result, err = s.core.Step(); err != nil {
			return sim.FrameSnapshot{}, err
		}
	}
	s.last, s.hasLast = result, true
	return result, nil
}

// Reset discards the run and starts over from frame zero.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.playing = false
		s.core.Reset()
		s.journal.Reset()
		s.commands = nil
		s.hasLast = false
		s.last = sim.FrameSnapshot{}
		s.discardPersisted(-1)
		return nil
	})
}

// LoadState replaces the world with snap. Recorded commands are dropped.
func (s *Session) LoadState(ctx context.Context, snap sim.FrameSnapshot) error {
	return s.do(ctx, func() error {
		if err := s.core.LoadState(snap); err != nil {
			return err
		}
		s.playing = false
		s.commands = nil
		s.journal.Truncate(snap.FrameNumber - 1)
		s.journal.Record(snap)
		s.discardPersisted(snap.FrameNumber - 1)
		s.last, s.hasLast = snap, true
		return nil
	})
}

// Snapshot returns the most recent frame, or the initial state before the
// first step.
func (s *Session) Snapshot(ctx context.Context) (sim.FrameSnapshot, error) {
	var snap sim.FrameSnapshot
	err := s.do(ctx, func() error {
		if s.hasLast {
			snap = s.last
		} else {
			snap = s.core.Snapshot()
		}
		return nil
	})
	return snap, err
}

// Journal exposes the session's keyframe buffer for read access.
func (s *Session) Journal() *journal.Journal { return s.journal }

func (s *Session) discardPersisted(after int) {
	if s.deps.Store == nil || s.recorder == nil {
		return
	}
	ctx := context.Background()
	if err := s.recorder.Flush(ctx); err != nil {
		s.deps.Logger.Printf("session %s: flush: %v", s.id, err)
	}
	if _, err := s.deps.Store.DeleteSnapshotsAfter(ctx, s.id, after); err != nil {
		s.deps.Logger.Printf("session %s: prune persisted frames: %v", s.id, err)
	}
}

func (s *Session) onFrame(snap sim.FrameSnapshot) {
	s.journal.Record(snap)
	s.last, s.hasLast = snap, true
	if s.replaying {
		return
	}
	s.broadcast(Message{Type: MessageFrame, Data: snap})
}

func (s *Session) onStateChanged(description string) {
	if s.replaying {
		return
	}
	s.broadcast(Message{Type: MessageStateChange, Data: StateChangePayload{Description: description}})
}

func (s *Session) onComplete(frame int, reason string) {
	s.playing = false
	s.broadcast(Message{Type: MessageComplete, Data: CompletePayload{Frame: frame, Reason: reason}})
}

func (s *Session) broadcast(m Message) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		if signal, ok := c.deliver(m); ok {
			s.deps.Logger.Printf("session %s: client %s lagging: %s", s.id, c.ID, signal.Summary())
		}
	}
}

// Attach subscribes a new client to the session's messages.
func (s *Session) Attach(clientID, role string) *Client {
	c := newClient(clientID, role, s.cfg.ClientBuffer)
	s.mu.Lock()
	old, replaced := s.clients[clientID]
	s.clients[clientID] = c
	n := len(s.clients)
	s.info.Clients = n
	s.mu.Unlock()
	s.touch()
	if replaced {
		old.close()
		s.notifyClients(-1)
	}

	s.notifyClients(1)
	lifecycle.ClientJoined(context.Background(), s.deps.Publisher, s.id, clientID, lifecycle.ClientPayload{Role: role, Clients: n})
	return c
}

// Detach removes a client and closes its message channel.
func (s *Session) Detach(clientID string) {
	s.mu.Lock()
	c, ok := s.clients[clientID]
	if ok {
		delete(s.clients, clientID)
	}
	n := len(s.clients)
	s.info.Clients = n
	s.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	s.touch()
	s.notifyClients(-1)
	lifecycle.ClientLeft(context.Background(), s.deps.Publisher, s.id, clientID, lifecycle.ClientPayload{Role: c.Role, Clients: n})
}

func (s *Session) notifyClients(delta int) {
	if s.clientsChanged != nil {
		s.clientsChanged(delta)
	}
}

func (s *Session) refreshInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.ID = s.id
	s.info.Frame = s.core.Frame()
	s.info.Status = string(s.core.Status())
	s.info.Playing = s.playing
	s.info.CreatedAt = s.createdAt
}

func (s *Session) Info() Info {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()
	info.LastActivity = time.Unix(0, s.activity.Load())
	return info
}

// idle reports whether the session has no clients and no activity since
// the timeout.
func (s *Session) idle(now time.Time) bool {
	s.mu.RLock()
	clients := len(s.clients)
	s.mu.RUnlock()
	return clients == 0 && now.Sub(time.Unix(0, s.activity.Load())) > s.cfg.IdleTimeout
}

// shutdown stops the loop, flushes persistence and closes every client.
func (s *Session) shutdown(reason string) {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		frame := s.core.Frame()
		if s.recorder != nil {
			s.recorder.Close()
			if err := s.deps.Store.CloseSession(context.Background(), s.id, reason, frame); err != nil {
				s.deps.Logger.Printf("session %s: record close: %v", s.id, err)
			}
		}

		s.mu.Lock()
		clients := s.clients
		s.clients = make(map[string]*Client)
		s.info.Clients = 0
		s.mu.Unlock()
		for _, c := range clients {
			c.deliver(Message{Type: MessageError, Data: ErrorPayload{Message: "session closed: " + reason}})
			c.close()
			s.notifyClients(-1)
		}
		lifecycle.SessionClosed(context.Background(), s.deps.Publisher, s.id, lifecycle.SessionClosedPayload{Reason: reason})
	})
}

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }
