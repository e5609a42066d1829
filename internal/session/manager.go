// Package session runs simulations on behalf of remote clients: one Core
// per session, each driven by its own goroutine, with idle cleanup and a
// cap on concurrent sessions.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/logging/lifecycle"
)

type Manager struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	clients atomic.Int64
}

func NewManager(cfg Config, deps Deps) *Manager {
	return &Manager{
		cfg:      cfg.normalized(),
		deps:     deps.normalized(),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Config() Config { return m.cfg }

// Create starts a session with a generated id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	return m.CreateWithID(ctx, uuid.NewString())
}

// CreateWithID starts a session under a caller-chosen id.
func (m *Manager) CreateWithID(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("create session: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("create session %s: %w", id, ErrSessionExists)
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("create session: %w (%d)", ErrSessionLimit, m.cfg.MaxSessions)
	}
	s := newSession(ctx, id, m.cfg, m.deps, m.clientsChanged)
	m.sessions[id] = s

	m.deps.Metrics.Add(telemetry.MetricSessionsCreated, 1)
	m.deps.Metrics.Store(telemetry.MetricSessionsActive, uint64(len(m.sessions)))
	m.deps.Logger.Printf("session %s created (%d active)", id, len(m.sessions))
	lifecycle.SessionCreated(ctx, m.deps.Publisher, id)
	return s, nil
}

func (m *Manager) clientsChanged(delta int) {
	n := m.clients.Add(int64(delta))
	m.deps.Metrics.Store(telemetry.MetricClientsActive, uint64(max(n, 0)))
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Remove closes a session and forgets it.
func (m *Manager) Remove(id string) error {
	return m.remove(id, ReasonClosed)
}

func (m *Manager) remove(id, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	s.shutdown(reason)
	m.deps.Metrics.Store(telemetry.MetricSessionsActive, uint64(n))
	m.deps.Logger.Printf("session %s removed: %s (%d active)", id, reason, n)
	return nil
}

// List summarizes every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup removes idle sessions and returns how many went away.
func (m *Manager) Cleanup() int {
	now := m.deps.Clock()
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.idle(now) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, id := range idle {
		if m.remove(id, ReasonIdle) == nil {
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions every cleanup interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.deps.Logger.Printf("cleanup removed %d idle sessions", n)
			}
		}
	}
}

// Close shuts every session down and refuses new ones.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range sessions {
			s.shutdown(ReasonShutdown)
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.deps.Metrics.Store(telemetry.MetricSessionsActive, 0)
	return nil
}
