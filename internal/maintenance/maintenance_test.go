package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRateLimiter struct{ sweeps int32 }

func (f *fakeRateLimiter) Sweep() { atomic.AddInt32(&f.sweeps, 1) }

type fakeSessionLister struct{}

func (fakeSessionLister) UserIDs() []int64 { return []int64{1, 2} }

type fakePresenceChecker struct{ checks int32 }

func (f *fakePresenceChecker) CheckIdle(ctx context.Context, userID int64) error {
	atomic.AddInt32(&f.checks, 1)
	return nil
}

type fakeArchiver struct{ calls int32 }

func (f *fakeArchiver) ArchiveDeletedMessages(ctx context.Context, olderThan time.Duration) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, nil
}

type noopLogger struct{ mu sync.Mutex }

func (*noopLogger) Info(ctx context.Context, msg string, args ...interface{})  {}
func (*noopLogger) Error(ctx context.Context, msg string, args ...interface{}) {}

func TestSupervisor_RunsAllJobsAndStops(t *testing.T) {
	rl := &fakeRateLimiter{}
	pc := &fakePresenceChecker{}
	ar := &fakeArchiver{}

	sup := New(rl, fakeSessionLister{}, pc, ar, &noopLogger{})
	sup.rateLimitSweepInterval = time.Millisecond
	sup.presenceSweepInterval = time.Millisecond
	sup.archiveInterval = time.Millisecond

	sup.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	sup.Stop()

	if atomic.LoadInt32(&rl.sweeps) == 0 {
		t.Fatal("expected at least one rate limit sweep")
	}
	if atomic.LoadInt32(&pc.checks) == 0 {
		t.Fatal("expected at least one presence check")
	}
	if atomic.LoadInt32(&ar.calls) == 0 {
		t.Fatal("expected at least one archive call")
	}
}
