// Package sessionmanager implements the Security Session Manager (C13): it
// tracks every Argon2id-hashed token issued to a user, enforces
// connection_limit_per_user by evicting the oldest tracked token, enforces
// an absolute session lifetime, and is the component the transport layer
// asks "is this bearer token still one I issued" on every authenticated
// REST request and at WebSocket upgrade.
// Grounded on original_source/src/security.rs's SessionManager, with
// DefaultHasher replaced by the teacher's Argon2id token hashing
// (internal/auth).
package sessionmanager

import (
	"sort"
	"sync"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/auth"
	"github.com/chathub/sessionhub/internal/hub/session"
)

const sessionLifetime = 24 * time.Hour

type sessionInfo struct {
	hashedToken  string
	createdAt    time.Time
	lastActivity time.Time
	sourceAddr   string
}

// Manager is the thread-safe Security Session Manager.
type Manager struct {
	mu              sync.Mutex
	sessions        map[int64][]sessionInfo
	connectionLimit int
	registry        *session.Registry
}

// New creates a Manager enforcing connectionLimit concurrently tracked
// tokens per user (config's connection_limit_per_user, §4.13); a limit <= 0
// disables the cap. registry lets the Manager forcibly disconnect a user's
// live WebSocket session whenever one of that user's tokens is evicted,
// whichever token the live session was opened with; pass nil where only
// token bookkeeping is under test.
func New(connectionLimit int, registry *session.Registry) *Manager {
	return &Manager{
		sessions:        make(map[int64][]sessionInfo),
		connectionLimit: connectionLimit,
		registry:        registry,
	}
}

// CreateSession hashes token and adds it to userID's tracked sessions. If
// this would exceed connectionLimit, the oldest-by-created-at tracked token
// is evicted and, if registry is set, userID's live Session Registry entry
// is evicted too (§4.13).
func (m *Manager) CreateSession(userID int64, token, sourceAddr string) error {
	hashed, err := auth.HashToken(token)
	if err != nil {
		return apperror.Wrap(apperror.Fatal, "failed to hash session token", err)
	}

	now := time.Now()
	info := sessionInfo{
		hashedToken:  hashed,
		createdAt:    now,
		lastActivity: now,
		sourceAddr:   sourceAddr,
	}

	m.mu.Lock()
	sessions := append(m.sessions[userID], info)
	evicted := false
	if m.connectionLimit > 0 && len(sessions) > m.connectionLimit {
		sort.Slice(sessions, func(i, j int) bool { return sessions[i].createdAt.Before(sessions[j].createdAt) })
		sessions = sessions[1:]
		evicted = true
	}
	m.sessions[userID] = sessions
	m.mu.Unlock()

	if evicted && m.registry != nil {
		m.registry.Unregister(userID)
	}
	return nil
}

// ValidateSession reports whether token matches one of userID's active
// sessions and that session has not exceeded its absolute lifetime,
// touching the matched session's activity clock on success.
func (m *Manager) ValidateSession(userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.sessions[userID]
	if !ok || len(sessions) == 0 {
		return apperror.New(apperror.Unauthorized, "no active session for user")
	}

	for i, info := range sessions {
		if !auth.VerifyToken(info.hashedToken, token) {
			continue
		}
		if time.Since(info.createdAt) > sessionLifetime {
			m.sessions[userID] = append(sessions[:i], sessions[i+1:]...)
			return apperror.New(apperror.Unauthorized, "session exceeded its absolute lifetime")
		}
		sessions[i].lastActivity = time.Now()
		return nil
	}
	return apperror.New(apperror.Unauthorized, "session token does not match")
}

// EndSession removes every tracked session for userID. The WebSocket
// disconnect path does not call it; tracked tokens outlive the connection.
func (m *Manager) EndSession(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// ActiveSessionCount returns the number of users with at least one tracked
// session.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
