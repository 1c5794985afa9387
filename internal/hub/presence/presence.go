// Package presence implements the Presence Tracker (C8): an
// online/offline/away/busy state machine per user, backed by a pluggable
// cache so a multi-node deployment shares a consistent view. Grounded on
// 0DukePan's internal/cache presence methods (Redis-backed) and
// original_source/src/presence.rs's state transitions.
package presence

import (
	"context"
	"time"

	"github.com/chathub/sessionhub/internal/models"
)

// Store is the cache/replication boundary presence depends on; the
// production implementation lives in internal/cache and is backed by Redis.
type Store interface {
	SetPresence(ctx context.Context, p models.Presence) error
	GetPresence(ctx context.Context, userID int64) (models.Presence, bool, error)
	DeletePresence(ctx context.Context, userID int64) error
	PublishPresence(ctx context.Context, p models.Presence) error
}

// Subscriber receives presence deltas.
type Subscriber func(models.Presence)

type Tracker struct {
	store         Store
	awayThreshold time.Duration

	subscribers []Subscriber
}

func NewTracker(store Store, awayThreshold time.Duration) *Tracker {
	return &Tracker{store: store, awayThreshold: awayThreshold}
}

func (t *Tracker) Subscribe(sub Subscriber) {
	t.subscribers = append(t.subscribers, sub)
}

func (t *Tracker) notify(p models.Presence) {
	for _, sub := range t.subscribers {
		sub(p)
	}
}

// Online transitions userID to Online, as happens at session register.
func (t *Tracker) Online(ctx context.Context, userID int64, room string) error {
	return t.transition(ctx, userID, models.PresenceOnline, room)
}

// Offline transitions userID to Offline, as happens at session unregister.
func (t *Tracker) Offline(ctx context.Context, userID int64) error {
	return t.transition(ctx, userID, models.PresenceOffline, "")
}

// SetStatus applies an explicit client-requested status update (Away, Busy,
// Online).
func (t *Tracker) SetStatus(ctx context.Context, userID int64, status models.PresenceStatus) error {
	return t.transition(ctx, userID, status, "")
}

func (t *Tracker) transition(ctx context.Context, userID int64, status models.PresenceStatus, room string) error {
	p := models.Presence{
		UserID:      userID,
		Status:      status,
		LastSeen:    time.Now(),
		CurrentRoom: room,
	}
	if err := t.store.SetPresence(ctx, p); err != nil {
		return err
	}
	if err := t.store.PublishPresence(ctx, p); err != nil {
		return err
	}
	t.notify(p)
	return nil
}

// CheckIdle re-evaluates userID's presence, demoting Online sessions idle
// past awayThreshold to Away. Intended to be called on the same cadence as
// the Heartbeat Supervisor.
func (t *Tracker) CheckIdle(ctx context.Context, userID int64) error {
	p, ok, err := t.store.GetPresence(ctx, userID)
	if err != nil || !ok {
		return err
	}
	if p.Status == models.PresenceOnline && time.Since(p.LastSeen) > t.awayThreshold {
		return t.transition(ctx, userID, models.PresenceAway, p.CurrentRoom)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, userID int64) (models.Presence, bool, error) {
	return t.store.GetPresence(ctx, userID)
}

// ApplyRemote feeds a presence event received from another node's
// PublishPresence (via the cache's pub/sub channel) to local subscribers,
// without re-publishing it — the node that originated the transition
// already persisted and published it.
func (t *Tracker) ApplyRemote(p models.Presence) {
	t.notify(p)
}
