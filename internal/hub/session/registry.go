// Package session implements the Session Registry (C3): a thread-safe
// user id -> Session map with liveness tracking and dead-session cleanup.
// Grounded on original_source/src/hub/common.rs's ChatHub client map and
// 0DukePan's rooms.Client/Room register-unregister idiom.
package session

import (
	"sync"
	"time"

	"github.com/chathub/sessionhub/internal/models"
)

var sessionReplacedFrame = []byte(`{"type":"error","data":{"code":"session_replaced","message":"session replaced by a new connection"}}`)

// Sender is the non-blocking outbound delivery handle a Session exposes to
// fan-out code. Send must never block the caller: a full or closed sink
// drops the frame and reports so via the bool return.
type Sender interface {
	Send(frame []byte) bool
	Close()
}

// Session is the per-connection state the registry exclusively owns; fan-out
// code only ever touches it through the registry's read APIs.
type Session struct {
	UserID        int64
	Username      string
	Role          models.Role
	sender        Sender
	ConnectedAt   time.Time
	mu            sync.Mutex
	lastActivity  time.Time
}

func NewSession(userID int64, username string, role models.Role, sender Sender) *Session {
	now := time.Now()
	return &Session{
		UserID:       userID,
		Username:     username,
		Role:         role,
		sender:       sender,
		ConnectedAt:  now,
		lastActivity: now,
	}
}

// Send delivers frame via the session's non-blocking sink. It leaves the
// liveness clock alone: only inbound frames and pongs count as activity, so
// heartbeat pings sent through here do not keep a silent peer alive.
func (s *Session) Send(frame []byte) bool {
	return s.sender.Send(frame)
}

// Touch records activity, used for both inbound frames and pong replies.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) IsAlive(timeout time.Duration) bool {
	return time.Since(s.LastActivity()) <= timeout
}

func (s *Session) Close() {
	s.sender.Close()
}

// Purger is implemented by the Room Registry so unregister can remove a
// departing user from every room's membership without this package
// importing the room package (avoids an import cycle, same boundary the
// teacher draws between rooms.Manager and its SyncEngineService).
type Purger interface {
	Purge(userID int64)
}

// Registry is the thread-safe Session Registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	purger   Purger
}

func NewRegistry(purger Purger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		purger:   purger,
	}
}

// Register inserts session, evicting and closing any prior session for the
// same user id (duplicate-connect policy resolved in SPEC_FULL.md §4.3:
// the new session always wins). Returns the evicted session, if any.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	prior := r.sessions[s.UserID]
	r.sessions[s.UserID] = s
	r.mu.Unlock()

	if prior != nil {
		prior.sender.Send(sessionReplacedFrame)
		prior.Close()
	}
	return prior
}

// Unregister removes userID's session, closes its outbound handle, and
// purges it from every room's membership set. Returns the removed session,
// if any. Closing here is idempotent with a caller that already closed the
// session itself (e.g. ws.Client.Start on its own disconnect path).
func (r *Registry) Unregister(userID int64) *Session {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
		if r.purger != nil {
			r.purger.Purge(userID)
		}
	}
	return s
}

func (r *Registry) Get(userID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Snapshot returns a point-in-time copy of all live sessions, safe to
// range over without holding the registry lock.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// UserIDs returns the user ids of every currently connected session.
func (r *Registry) UserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.sessions))
	for userID := range r.sessions {
		out = append(out, userID)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Ping attempts a non-blocking send of frame to every live session and
// reports how many succeeded versus failed.
func (r *Registry) Ping(frame []byte) (succeeded, failed int) {
	for _, s := range r.Snapshot() {
		if s.Send(frame) {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// CleanupDead evicts every session whose last activity exceeds timeout and
// returns the evicted user ids.
func (r *Registry) CleanupDead(timeout time.Duration) []int64 {
	var dead []int64
	for _, s := range r.Snapshot() {
		if !s.IsAlive(timeout) {
			dead = append(dead, s.UserID)
		}
	}
	for _, userID := range dead {
		r.Unregister(userID)
	}
	return dead
}
