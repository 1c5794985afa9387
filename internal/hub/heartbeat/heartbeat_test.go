package heartbeat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	mu         sync.Mutex
	pingCalls  int
	cleanupCalls int
}

func (f *fakePinger) Ping(frame []byte) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingCalls++
	return 1, 0
}

func (f *fakePinger) CleanupDead(timeout time.Duration) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalls++
	return nil
}

type noopLogger struct{}

func (noopLogger) Info(ctx context.Context, msg string, args ...interface{}) {}
func (noopLogger) Warn(ctx context.Context, msg string, args ...interface{}) {}

func TestSupervisor_TicksAndStops(t *testing.T) {
	pinger := &fakePinger{}
	sup := New(pinger, []byte("ping"), 5*time.Millisecond, noopLogger{})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	sup.Stop()
	<-done

	pinger.mu.Lock()
	defer pinger.mu.Unlock()
	assert.Greater(t, pinger.pingCalls, 0)
	assert.Greater(t, pinger.cleanupCalls, 0)
}
