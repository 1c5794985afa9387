// Package stats implements Hub Statistics (C11): monotonic counters plus
// the active-connection gauge, guarded by its own lock so it never
// serializes on the session/room registries. Grounded on
// original_source/src/hub/common.rs's HubStats.
package stats

import (
	"sync"
	"time"

	"github.com/chathub/sessionhub/internal/models"
)

type Stats struct {
	mu                sync.RWMutex
	uptimeStart       time.Time
	totalConnections  uint64
	activeConnections uint64
	totalMessages     uint64
	totalRoomsCreated uint64
}

func New() *Stats {
	return &Stats{uptimeStart: time.Now()}
}

func (s *Stats) IncConnection(activeCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalConnections++
	s.activeConnections = uint64(activeCount)
}

func (s *Stats) SetActiveConnections(activeCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConnections = uint64(activeCount)
}

func (s *Stats) IncMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalMessages++
}

func (s *Stats) IncRoomCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRoomsCreated++
}

// Snapshot returns an immutable copy of the current counters.
func (s *Stats) Snapshot() models.HubStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.HubStats{
		UptimeStart:       s.uptimeStart,
		TotalConnections:  s.totalConnections,
		ActiveConnections: s.activeConnections,
		TotalMessages:     s.totalMessages,
		TotalRoomsCreated: s.totalRoomsCreated,
	}
}
