// Package ratelimit implements the sliding-window, per-(user, action) rate
// limiter (C2), with an optional tighter burst cap inside a fixed 10s
// sub-window. Grounded on original_source/src/security.rs's
// AdvancedRateLimiter and the sharded-bucket idiom from the example pack's
// standalone rate-limiter files.
package ratelimit

import (
	"sync"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
)

type Action string

const (
	ActionSendMessage Action = "send_message"
	ActionSendDM      Action = "send_dm"
	ActionJoinRoom    Action = "join_room"
	ActionCreateRoom  Action = "create_room"
	ActionAdmin       Action = "admin_action"
)

type limit struct {
	window time.Duration
	max    int
	burst  int // 0 means no burst cap
}

const burstWindow = 10 * time.Second

var limits = map[Action]limit{
	ActionSendMessage: {window: 60 * time.Second, max: 20, burst: 5},
	ActionSendDM:      {window: 60 * time.Second, max: 15, burst: 3},
	ActionJoinRoom:    {window: 60 * time.Second, max: 10, burst: 3},
	ActionCreateRoom:  {window: 300 * time.Second, max: 3, burst: 0},
	ActionAdmin:       {window: 60 * time.Second, max: 100, burst: 10},
}

type bucketKey struct {
	userID int64
	action Action
}

type bucket struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Limiter tracks per-(user, action) sliding windows behind a map guarded by
// a striped set of per-bucket mutexes, so unrelated users never contend.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Check enforces the sliding window and burst cap for (userID, action). On
// success the current timestamp is appended to the bucket; on failure the
// bucket is left untouched.
func (l *Limiter) Check(userID int64, action Action) error {
	lim, ok := limits[action]
	if !ok {
		return apperror.New(apperror.InvalidInput, "unknown rate-limited action")
	}

	b := l.bucketFor(userID, action)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-lim.window)
	b.timestamps = dropBefore(b.timestamps, windowStart)

	if len(b.timestamps) >= lim.max {
		return apperror.New(apperror.RateLimitExceeded, "rate limit exceeded")
	}

	if lim.burst > 0 {
		burstStart := now.Add(-burstWindow)
		count := 0
		for _, ts := range b.timestamps {
			if !ts.Before(burstStart) {
				count++
			}
		}
		if count >= lim.burst {
			return apperror.New(apperror.RateLimitExceeded, "burst rate limit exceeded")
		}
	}

	b.timestamps = append(b.timestamps, now)
	return nil
}

func (l *Limiter) bucketFor(userID int64, action Action) *bucket {
	key := bucketKey{userID: userID, action: action}

	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = &bucket{}
	l.buckets[key] = b
	return b
}

func dropBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && timestamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return timestamps
	}
	return append([]time.Time(nil), timestamps[i:]...)
}

// Sweep deletes any bucket whose most recent timestamp is older than the
// widest configured window, bounding memory for users who disconnect and
// never return. Intended to be called periodically by the C16 background
// maintenance job.
func (l *Limiter) Sweep() {
	widest := time.Duration(0)
	for _, lim := range limits {
		if lim.window > widest {
			widest = lim.window
		}
	}
	cutoff := l.now().Add(-widest)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		stale := len(b.timestamps) == 0 || b.timestamps[len(b.timestamps)-1].Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
		}
	}
}
