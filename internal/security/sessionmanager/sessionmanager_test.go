package sessionmanager

import (
	"testing"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/models"
)

type fakeSender struct{ closed bool }

func (f *fakeSender) Send([]byte) bool { return !f.closed }
func (f *fakeSender) Close()           { f.closed = true }

func TestManager_CreateThenValidate(t *testing.T) {
	m := New(0, nil)
	if err := m.CreateSession(1, "token-a", "10.0.0.1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := m.ValidateSession(1, "token-a"); err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
}

func TestManager_ValidateWrongToken(t *testing.T) {
	m := New(0, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	err := m.ValidateSession(1, "token-b")
	if apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestManager_ValidateUnknownUser(t *testing.T) {
	m := New(0, nil)
	err := m.ValidateSession(99, "token-a")
	if apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestManager_EndSession(t *testing.T) {
	m := New(0, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	m.EndSession(1)
	err := m.ValidateSession(1, "token-a")
	if apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected Unauthorized after EndSession, got %v", err)
	}
}

func TestManager_ExpiredSessionLifetime(t *testing.T) {
	m := New(0, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	m.mu.Lock()
	sessions := m.sessions[1]
	sessions[0].createdAt = time.Now().Add(-25 * time.Hour)
	m.sessions[1] = sessions
	m.mu.Unlock()

	err := m.ValidateSession(1, "token-a")
	if apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected Unauthorized for expired session, got %v", err)
	}
}

func TestManager_ActiveSessionCount(t *testing.T) {
	m := New(0, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	_ = m.CreateSession(2, "token-b", "10.0.0.2")
	if got := m.ActiveSessionCount(); got != 2 {
		t.Fatalf("ActiveSessionCount() = %d, want 2", got)
	}
}

func TestManager_MultipleSessionsPerUser(t *testing.T) {
	m := New(0, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	_ = m.CreateSession(1, "token-b", "10.0.0.2")

	if err := m.ValidateSession(1, "token-a"); err != nil {
		t.Fatalf("ValidateSession(token-a): %v", err)
	}
	if err := m.ValidateSession(1, "token-b"); err != nil {
		t.Fatalf("ValidateSession(token-b): %v", err)
	}
}

func TestManager_ConnectionLimitEvictsOldestToken(t *testing.T) {
	m := New(2, nil)
	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	time.Sleep(time.Millisecond)
	_ = m.CreateSession(1, "token-b", "10.0.0.2")
	time.Sleep(time.Millisecond)
	_ = m.CreateSession(1, "token-c", "10.0.0.3")

	if err := m.ValidateSession(1, "token-a"); apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected oldest token-a to be evicted, got err=%v", err)
	}
	if err := m.ValidateSession(1, "token-b"); err != nil {
		t.Fatalf("expected token-b to still be valid: %v", err)
	}
	if err := m.ValidateSession(1, "token-c"); err != nil {
		t.Fatalf("expected token-c to still be valid: %v", err)
	}
}

func TestManager_ConnectionLimitEvictsLiveSessionFromRegistry(t *testing.T) {
	registry := session.NewRegistry(nil)
	m := New(1, registry)

	sender := &fakeSender{}
	registry.Register(session.NewSession(1, "alice", models.RoleUser, sender))

	_ = m.CreateSession(1, "token-a", "10.0.0.1")
	time.Sleep(time.Millisecond)
	_ = m.CreateSession(1, "token-b", "10.0.0.2")

	if _, ok := registry.Get(1); ok {
		t.Fatalf("expected user 1's live session to be evicted from the registry")
	}
	if !sender.closed {
		t.Fatalf("expected the evicted session's sender to be closed")
	}
}
