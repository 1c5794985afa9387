package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chathub/sessionhub/internal/apperror"
)

func TestCheck_WithinLimitSucceeds(t *testing.T) {
	l := New()
	fixed := time.Now()
	// 3s apart: 20 calls fit in the 60s window and no 10s burst sub-window
	// holds more than 3 earlier calls, under the burst cap of 5.
	step := 0
	l.now = func() time.Time {
		step++
		return fixed.Add(time.Duration(step) * 3 * time.Second)
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
}

func TestCheck_ExceedsMaxFails(t *testing.T) {
	l := New()
	fixed := time.Now()
	// 3s apart keeps every 10s burst sub-window under the burst cap while all
	// 20 accepted calls stay inside the 60s window, so the 21st call is
	// rejected by the sliding-window max rather than by burst.
	step := 0
	l.now = func() time.Time {
		step++
		return fixed.Add(time.Duration(step) * 3 * time.Second)
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
	err := l.Check(1, ActionSendMessage)
	assert.Error(t, err)
	assert.Equal(t, apperror.RateLimitExceeded, apperror.KindOf(err))
}

func TestCheck_BurstCapFails(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
	err := l.Check(1, ActionSendMessage)
	assert.Error(t, err)
}

func TestCheck_UsersAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
	assert.NoError(t, l.Check(2, ActionSendMessage))
}

func TestCheck_ActionsAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
	assert.NoError(t, l.Check(1, ActionSendDM))
}

func TestCheck_SlidingWindowExpires(t *testing.T) {
	l := New()
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Check(1, ActionSendMessage))
	}
	assert.Error(t, l.Check(1, ActionSendMessage))

	l.now = func() time.Time { return fixed.Add(61 * time.Second) }
	assert.NoError(t, l.Check(1, ActionSendMessage))
}

func TestCheck_ConcurrentUsersDoNotRace(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for u := int64(0); u < 50; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				l.Check(userID, ActionJoinRoom)
			}
		}(u)
	}
	wg.Wait()
}

func TestCheck_CreateRoomHasNoBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Check(1, ActionCreateRoom))
	}
	assert.Error(t, l.Check(1, ActionCreateRoom))
}

func TestSweep_RemovesStaleBuckets(t *testing.T) {
	l := New()
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	assert.NoError(t, l.Check(1, ActionSendMessage))

	l.now = func() time.Time { return fixed.Add(10 * time.Minute) }
	l.Sweep()

	l.mu.RLock()
	_, ok := l.buckets[bucketKey{userID: 1, action: ActionSendMessage}]
	l.mu.RUnlock()
	assert.False(t, ok)
}
