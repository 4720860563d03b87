package fixsession

import (
	"context"
	"fmt"
	"sync"
)

// SessionManager is the process-wide SessionId -> Session map spec §4.5
// describes. Concurrent lookups, registration and iteration are safe.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

// NewSessionManager returns an empty registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[SessionID]*Session)}
}

// Register adds or replaces the session under its own ID.
func (m *SessionManager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Unregister removes a single session by ID.
func (m *SessionManager) Unregister(id SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// LookUp finds a registered session by ID.
func (m *SessionManager) LookUp(id SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns a point-in-time snapshot of all registered sessions.
func (m *SessionManager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// UnregisterAll clears the registry, disconnecting every session first.
func (m *SessionManager) UnregisterAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[SessionID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect("engine shutdown")
	}
}

// SendToTarget is the public send-by-identity entry point (spec §4.5):
// locate the session, then send through its SendPipeline.
func SendToTarget(ctx context.Context, msg *Message, sid SessionID, manager *SessionManager) bool {
	s, ok := manager.LookUp(sid)
	if !ok {
		return false
	}
	msg.Header.BeginString = sid.BeginString
	msg.Header.SenderCompID = sid.SenderCompID
	msg.Header.TargetCompID = sid.TargetCompID
	return s.Send(ctx, msg)
}

// ErrSessionNotFound is returned by callers that need an explicit error
// rather than SendToTarget's best-effort boolean.
type ErrSessionNotFound struct{ SessionID SessionID }

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("fixsession: no registered session for %s", e.SessionID.String())
}
