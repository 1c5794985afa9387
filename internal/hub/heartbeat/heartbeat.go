// Package heartbeat implements the Heartbeat Supervisor (C10): a fixed
// cadence ping of every session, followed on the same tick by a dead-session
// sweep.
// Grounded on original_source/src/hub/common.rs's ping_all_clients and
// cleanup_dead_connections, and 0DukePan's rooms.Client ping/pong timers.
package heartbeat

import (
	"context"
	"time"
)

// Pinger is implemented by the Session Registry: Ping attempts a
// non-blocking ping send to every live session and returns how many
// succeeded/failed; CleanupDead evicts sessions idle past timeout and
// returns the evicted user ids.
type Pinger interface {
	Ping(frame []byte) (succeeded, failed int)
	CleanupDead(timeout time.Duration) []int64
}

// Logger is the minimal logging surface the supervisor needs.
type Logger interface {
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
}

// Supervisor runs the ping and cleanup ticks until Stop is called.
type Supervisor struct {
	pinger            Pinger
	pingFrame         []byte
	heartbeatInterval time.Duration
	deadTimeout       time.Duration
	logger            Logger

	stop chan struct{}
	done chan struct{}
}

func New(pinger Pinger, pingFrame []byte, heartbeatInterval time.Duration, logger Logger) *Supervisor {
	return &Supervisor{
		pinger:            pinger,
		pingFrame:         pingFrame,
		heartbeatInterval: heartbeatInterval,
		deadTimeout:       3 * heartbeatInterval,
		logger:            logger,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Run blocks, ticking at heartbeatInterval, until Stop is called.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)

	pingTicker := time.NewTicker(s.heartbeatInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			ok, failed := s.pinger.Ping(s.pingFrame)
			if failed > 0 {
				s.logger.Warn(ctx, "heartbeat ping completed with failures: ok=%d failed=%d", ok, failed)
			} else {
				s.logger.Info(ctx, "heartbeat ping succeeded for all sessions: ok=%d", ok)
			}

			dead := s.pinger.CleanupDead(s.deadTimeout)
			if len(dead) > 0 {
				s.logger.Warn(ctx, "heartbeat cleanup evicted %d dead sessions", len(dead))
			}
		}
	}
}

func (s *Supervisor) Stop() {
	close(s.stop)
	<-s.done
}
