// Package session holds the signed-in sessions of the application and notifies
// listeners whenever one of them changes.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("session not found")

	// mockable
	nowFunc = time.Now
)

// Event is the kind of change a listener is notified about.
type Event string

const (
	SignedIn       Event = "SIGNED_IN"
	SignedOut      Event = "SIGNED_OUT"
	TokenRefreshed Event = "TOKEN_REFRESHED"
)

type (
	Session struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	Change struct {
		Event   Event
		Session Session
	}

	// Listener is called after every session change.
	Listener func(Change)
)

func (s Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Manager is the single holder of session state. The zero value is not usable, see NewManager.
type Manager struct {
	ttl time.Duration

	mu        sync.RWMutex
	sessions  map[string]Session
	lastPurge time.Time

	lmu       sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewManager returns a Manager whose sessions live for ttl unless refreshed.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:       ttl,
		sessions:  make(map[string]Session),
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers fn and returns the function removing it. Calling it twice is a no-op.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lmu.Lock()
			delete(m.listeners, id)
			m.lmu.Unlock()
		})
	}
}

func (m *Manager) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	m.lmu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.lmu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

// Open creates a new session for a user.
func (m *Manager) Open(userID, role string) Session {
	now := nowFunc().UTC()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	if now.Sub(m.lastPurge) >= m.ttl {
		m.purge(now)
	}
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.publish(Change{Event: SignedIn, Session: sess})
	return sess
}

// Current returns the session with the given ID if it is still open.
func (m *Manager) Current(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok || sess.expired(nowFunc()) {
		return Session{}, false
	}
	return sess, true
}

// Refresh extends the lifetime of an open session.
func (m *Manager) Refresh(id string) (Session, error) {
	now := nowFunc().UTC()

	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || sess.expired(now) {
		delete(m.sessions, id)
		m.mu.Unlock()
		return Session{}, ErrNotFound
	}
	sess.ExpiresAt = now.Add(m.ttl)
	m.sessions[id] = sess
	m.mu.Unlock()

	m.publish(Change{Event: TokenRefreshed, Session: sess})
	return sess, nil
}

// Close ends a session. Closing an unknown session does nothing.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.publish(Change{Event: SignedOut, Session: sess})
	}
}

// CloseUser ends every session of a user and returns how many were closed.
func (m *Manager) CloseUser(userID string) int {
	var changes []Change

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, id)
			changes = append(changes, Change{Event: SignedOut, Session: sess})
		}
	}
	m.mu.Unlock()

	m.publish(changes...)
	return len(changes)
}

// Len drops the expired sessions and returns the number of open ones.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purge(nowFunc().UTC())
	return len(m.sessions)
}

// purge drops expired sessions. m.mu must be held.
// Open calls it at most once per ttl so signing in stays cheap.
func (m *Manager) purge(now time.Time) {
	for id, sess := range m.sessions {
		if sess.expired(now) {
			delete(m.sessions, id)
		}
	}
	m.lastPurge = now
}
