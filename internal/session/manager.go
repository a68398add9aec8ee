package session

import (
	"sync"
	"time"

	"codeberg.org/gruf/go-errors/v2"
)

// ErrSessionNotFound is returned by DeleteSession for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// Manager manages session contexts
type Manager struct {
	sessions  map[string]*Context
	mu        sync.RWMutex
	maxTraces int
}

// NewManager creates a new session manager. Each session stores at most
// maxTraces traces, 0 for no limit.
func NewManager(maxTraces int) *Manager {
	return &Manager{
		sessions:  make(map[string]*Context),
		maxTraces: maxTraces,
	}
}

// GetOrCreateSession gets an existing session or creates a new one
func (m *Manager) GetOrCreateSession(sessionID string) *Context {
	// Try to get existing session
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if exists {
		return session
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if session, exists := m.sessions[sessionID]; exists {
		return session
	}

	session = NewContext(sessionID, m.maxTraces)
	m.sessions[sessionID] = session
	return session
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(sessionID string) *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DeleteSession removes a session and drops its traces
func (m *Manager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return errors.Wrapf(ErrSessionNotFound, "id %q", sessionID)
	}

	session.Close()
	delete(m.sessions, sessionID)
	return nil
}

// Sweep removes sessions not accessed within ttl and returns how many
// were removed
func (m *Manager) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, session := range m.sessions {
		if session.LastAccessed().Before(cutoff) {
			session.Close()
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// CloseAll closes all sessions
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		session.Close()
	}
	m.sessions = make(map[string]*Context)
}
