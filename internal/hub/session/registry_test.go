package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chathub/sessionhub/internal/models"
)

type fakeSender struct {
	mu     sync.Mutex
	closed bool
	sent   [][]byte
}

func (f *fakeSender) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.sent = append(f.sent, frame)
	return true
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type fakePurger struct {
	mu     sync.Mutex
	purged []int64
}

func (f *fakePurger) Purge(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, userID)
}

func TestRegister_EvictsPriorSession(t *testing.T) {
	r := NewRegistry(nil)
	sender1 := &fakeSender{}
	sender2 := &fakeSender{}

	s1 := NewSession(1, "alice", models.RoleUser, sender1)
	s2 := NewSession(1, "alice", models.RoleUser, sender2)

	assert.Nil(t, r.Register(s1))
	prior := r.Register(s2)
	assert.Same(t, s1, prior)

	got, ok := r.Get(1)
	assert.True(t, ok)
	assert.Same(t, s2, got)

	sender1.mu.Lock()
	assert.True(t, sender1.closed)
	if assert.Len(t, sender1.sent, 1) {
		assert.Contains(t, string(sender1.sent[0]), "session_replaced")
	}
	sender1.mu.Unlock()
}

func TestUnregister_PurgesRooms(t *testing.T) {
	purger := &fakePurger{}
	r := NewRegistry(purger)
	s := NewSession(1, "alice", models.RoleUser, &fakeSender{})
	r.Register(s)

	removed := r.Unregister(1)
	assert.Same(t, s, removed)
	assert.Equal(t, []int64{1}, purger.purged)

	_, ok := r.Get(1)
	assert.False(t, ok)
}

func TestUnregister_ClosesSender(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(&fakePurger{})
	s := NewSession(1, "alice", models.RoleUser, sender)
	r.Register(s)

	r.Unregister(1)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.True(t, sender.closed)
}

func TestUnregister_UnknownUserIsNoop(t *testing.T) {
	purger := &fakePurger{}
	r := NewRegistry(purger)
	assert.Nil(t, r.Unregister(99))
	assert.Empty(t, purger.purged)
}

func TestCleanupDead_RemovesTimedOutSessions(t *testing.T) {
	r := NewRegistry(&fakePurger{})
	s := NewSession(1, "alice", models.RoleUser, &fakeSender{})
	s.lastActivity = time.Now().Add(-time.Hour)
	r.Register(s)

	alive := NewSession(2, "bob", models.RoleUser, &fakeSender{})
	r.Register(alive)

	dead := r.CleanupDead(time.Minute)
	assert.Equal(t, []int64{1}, dead)
	assert.Equal(t, 1, r.Len())
}

func TestSend_DoesNotTouchLastActivity(t *testing.T) {
	sender := &fakeSender{}
	s := NewSession(1, "alice", models.RoleUser, sender)
	before := s.LastActivity()
	time.Sleep(time.Millisecond)
	assert.True(t, s.Send([]byte("hi")))
	assert.Equal(t, before, s.LastActivity())
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry(&fakePurger{})
	var wg sync.WaitGroup
	for i := int64(0); i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s := NewSession(id, "u", models.RoleUser, &fakeSender{})
			r.Register(s)
			r.Unregister(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
