package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chathub/sessionhub/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	presences map[int64]models.Presence
	published []models.Presence
}

func newFakeStore() *fakeStore {
	return &fakeStore{presences: make(map[int64]models.Presence)}
}

func (f *fakeStore) SetPresence(_ context.Context, p models.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presences[p.UserID] = p
	return nil
}

func (f *fakeStore) GetPresence(_ context.Context, userID int64) (models.Presence, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.presences[userID]
	return p, ok, nil
}

func (f *fakeStore) DeletePresence(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.presences, userID)
	return nil
}

func (f *fakeStore) PublishPresence(_ context.Context, p models.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, p)
	return nil
}

func TestOnline_SetsStatusAndNotifies(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(store, time.Hour)

	var got models.Presence
	tr.Subscribe(func(p models.Presence) { got = p })

	assert.NoError(t, tr.Online(context.Background(), 1, "general"))
	assert.Equal(t, models.PresenceOnline, got.Status)
	assert.Equal(t, "general", got.CurrentRoom)

	p, ok, _ := tr.Get(context.Background(), 1)
	assert.True(t, ok)
	assert.Equal(t, models.PresenceOnline, p.Status)
}

func TestOffline_OnUnregister(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(store, time.Hour)
	tr.Online(context.Background(), 1, "general")
	tr.Offline(context.Background(), 1)

	p, _, _ := tr.Get(context.Background(), 1)
	assert.Equal(t, models.PresenceOffline, p.Status)
}

func TestCheckIdle_DemotesToAwayPastThreshold(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(store, 10*time.Millisecond)
	tr.Online(context.Background(), 1, "general")

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, tr.CheckIdle(context.Background(), 1))

	p, _, _ := tr.Get(context.Background(), 1)
	assert.Equal(t, models.PresenceAway, p.Status)
}

func TestCheckIdle_LeavesFreshOnlineAlone(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(store, time.Hour)
	tr.Online(context.Background(), 1, "general")

	assert.NoError(t, tr.CheckIdle(context.Background(), 1))
	p, _, _ := tr.Get(context.Background(), 1)
	assert.Equal(t, models.PresenceOnline, p.Status)
}
