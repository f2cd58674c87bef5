package composer

import (
	"sync"
	"time"

	"dashmail/utils"

	"github.com/google/uuid"
)

// SessionManager tracks the open composition sessions. Every Open starts a
// fresh draft; closed sessions are forgotten so completions of their
// outstanding submits cannot reach a newer session.
type SessionManager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	blobs         BlobStore
	maxBytes      int64
	maxImageWidth int
	ttl           time.Duration
	done          chan struct{}
}

// NewSessionManager creates a session manager. Idle sessions are reaped
// after ttl so abandoned composers do not leak staged attachments.
func NewSessionManager(blobs BlobStore, maxBytes int64, maxImageWidth int, ttl time.Duration) *SessionManager {
	m := &SessionManager{
		sessions:      make(map[string]*Session),
		blobs:         blobs,
		maxBytes:      maxBytes,
		maxImageWidth: maxImageWidth,
		ttl:           ttl,
		done:          make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Open starts a new composition session for the user
func (m *SessionManager) Open(userID string) *Session {
	s := newSession(uuid.New().String(), userID, m.blobs, m.maxBytes, m.maxImageWidth)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session if it exists and belongs to the user
func (m *SessionManager) Get(id, userID string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, false
	}
	return s, true
}

// Close ends a session and forgets it
func (m *SessionManager) Close(id, userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.UserID == userID {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok || s.UserID != userID {
		return false
	}
	s.Close()
	return true
}

// Count returns the number of open sessions
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session and stops the reaper
func (m *SessionManager) Shutdown() {
	close(m.done)
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// reapLoop periodically closes idle sessions
func (m *SessionManager) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.reap(now)
		}
	}
}

func (m *SessionManager) reap(now time.Time) {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.IdleSince(now) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		utils.Log.Info("Reaping idle composer session %s", s.ID)
		s.Close()
	}
}
