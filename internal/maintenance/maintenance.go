// Package maintenance implements Background Maintenance (C16): periodic
// rate-limit bucket sweeps, stale-presence demotion, and archiving of
// soft-deleted messages past their retention window. Grounded on 0DukePan's
// internal/persistence/sync.go RunCleanupJob/RunArchivingJob/RunIndexingJob
// ticker-loop idiom, generalized from TODO stubs into real sweeps.
package maintenance

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is the sweep surface the security/ratelimit.Limiter exposes.
type RateLimiter interface {
	Sweep()
}

// SessionLister enumerates the currently connected user ids, so idle
// presence can be re-evaluated on the same cadence as the heartbeat.
type SessionLister interface {
	UserIDs() []int64
}

// PresenceChecker demotes a single user's stale Online presence to Away.
type PresenceChecker interface {
	CheckIdle(ctx context.Context, userID int64) error
}

// Archiver hard-deletes soft-deleted messages past the retention window and
// reports how many rows were removed.
type Archiver interface {
	ArchiveDeletedMessages(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Logger is the minimal logging surface maintenance jobs need.
type Logger interface {
	Info(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// Supervisor runs the three maintenance jobs on independent tickers until
// Stop is called.
type Supervisor struct {
	rateLimiter RateLimiter
	sessions    SessionLister
	presence    PresenceChecker
	archiver    Archiver
	logger      Logger

	rateLimitSweepInterval time.Duration
	presenceSweepInterval  time.Duration
	archiveInterval        time.Duration
	archiveRetention       time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

func New(rateLimiter RateLimiter, sessions SessionLister, presence PresenceChecker, archiver Archiver, logger Logger) *Supervisor {
	return &Supervisor{
		rateLimiter:            rateLimiter,
		sessions:               sessions,
		presence:               presence,
		archiver:               archiver,
		logger:                 logger,
		rateLimitSweepInterval: 5 * time.Minute,
		presenceSweepInterval:  30 * time.Second,
		archiveInterval:        1 * time.Hour,
		archiveRetention:       30 * 24 * time.Hour,
		done:                   make(chan struct{}),
	}
}

// Start launches every job as its own goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	s.wg.Add(3)
	go s.runRateLimitSweep(ctx)
	go s.runPresenceSweep(ctx)
	go s.runArchiving(ctx)
}

func (s *Supervisor) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Supervisor) runRateLimitSweep(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.rateLimitSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.rateLimiter.Sweep()
		}
	}
}

func (s *Supervisor) runPresenceSweep(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.presenceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			for _, userID := range s.sessions.UserIDs() {
				if err := s.presence.CheckIdle(ctx, userID); err != nil {
					s.logger.Error(ctx, "presence idle check failed: user=%d err=%v", userID, err)
				}
			}
		}
	}
}

func (s *Supervisor) runArchiving(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			count, err := s.archiver.ArchiveDeletedMessages(ctx, s.archiveRetention)
			if err != nil {
				s.logger.Error(ctx, "message archiving failed: err=%v", err)
				continue
			}
			if count > 0 {
				s.logger.Info(ctx, "archived soft-deleted messages: count=%d", count)
			}
		}
	}
}
