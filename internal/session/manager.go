package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/metrics"
)

// Factory builds a session with the given ID.
type Factory func(id string) *Session

// Manager tracks independent sessions keyed by ID.
type Manager struct {
	factory Factory
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(factory Factory, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Manager{
		factory:  factory,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new idle session under a fresh UUID.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := m.factory(id)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.metrics.ActiveSessions.Inc()
	m.logger.Info("session created", zap.String("session", id))
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and forgets a session. It reports whether id existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.metrics.ActiveSessions.Dec()
	m.logger.Info("session closed", zap.String("session", id))
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears down every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		m.metrics.ActiveSessions.Dec()
	}
}
