package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) listen(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	evts := make([]Event, 0, len(r.changes))
	for _, c := range r.changes {
		evts = append(evts, c.Event)
	}
	return evts
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Hour)
	rec := new(recorder)
	unsubscribe := m.Subscribe(rec.listen)
	defer unsubscribe()

	sess := m.Open("user-1", "student")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)

	got, ok := m.Current(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess, got)

	refreshed, err := m.Refresh(sess.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.ExpiresAt.Before(sess.ExpiresAt))

	m.Close(sess.ID)
	_, ok = m.Current(sess.ID)
	assert.False(t, ok)

	m.Close(sess.ID) // unknown: no event
	_, err = m.Refresh(sess.ID)
	assert.Equal(t, ErrNotFound, err)

	assert.Equal(t, []Event{SignedIn, TokenRefreshed, SignedOut}, rec.events())
}

func TestManager_Expiry(t *testing.T) {
	defer func() { nowFunc = time.Now }()

	m := NewManager(time.Minute)
	sess := m.Open("user-1", "student")

	nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := m.Current(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	_, err := m.Refresh(sess.ID)
	assert.Equal(t, ErrNotFound, err)
}

func TestManager_PurgeOnOpen(t *testing.T) {
	defer func() { nowFunc = time.Now }()

	start := time.Now()
	nowFunc = func() time.Time { return start }
	m := NewManager(time.Minute)
	old := m.Open("user-1", "student")

	// within a ttl of the last purge: the map is not scanned
	nowFunc = func() time.Time { return start.Add(30 * time.Second) }
	m.Open("user-2", "student")
	m.mu.RLock()
	assert.Len(t, m.sessions, 2)
	m.mu.RUnlock()

	// a ttl later the expired session is dropped on the next sign in
	nowFunc = func() time.Time { return start.Add(80 * time.Second) }
	m.Open("user-3", "student")
	m.mu.RLock()
	_, kept := m.sessions[old.ID]
	n := len(m.sessions)
	m.mu.RUnlock()
	assert.False(t, kept)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())
}

func TestManager_CloseUser(t *testing.T) {
	m := NewManager(time.Hour)
	rec := new(recorder)
	defer m.Subscribe(rec.listen)()

	a1 := m.Open("a", "student")
	a2 := m.Open("a", "student")
	b := m.Open("b", "admin")

	assert.Equal(t, 2, m.CloseUser("a"))
	assert.Equal(t, 0, m.CloseUser("a"))

	_, ok := m.Current(a1.ID)
	assert.False(t, ok)
	_, ok = m.Current(a2.ID)
	assert.False(t, ok)
	_, ok = m.Current(b.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, []Event{SignedIn, SignedIn, SignedIn, SignedOut, SignedOut}, rec.events())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager(time.Hour)
	rec := new(recorder)
	unsubscribe := m.Subscribe(rec.listen)

	m.Open("a", "student")
	unsubscribe()
	unsubscribe()
	m.Open("b", "student")

	assert.Equal(t, []Event{SignedIn}, rec.events())
}

func TestManager_ListenerMayReadState(t *testing.T) {
	m := NewManager(time.Hour)
	var seen bool
	defer m.Subscribe(func(c Change) {
		_, seen = m.Current(c.Session.ID)
	})()

	m.Open("a", "student")
	assert.True(t, seen)
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Subscribe(func(Change) {})()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Open("u", "student")
			_, _ = m.Current(s.ID)
			_, _ = m.Refresh(s.ID)
			m.Close(s.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.Len())
}
