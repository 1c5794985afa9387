package ipmonitor

import (
	"testing"
	"time"

	"github.com/chathub/sessionhub/internal/apperror"
)

func TestMonitor_AllowsUnknownIP(t *testing.T) {
	m := New()
	suspicious, err := m.CheckIP("1.2.3.4")
	if err != nil || suspicious {
		t.Fatalf("CheckIP = %v, %v", suspicious, err)
	}
}

func TestMonitor_RejectsBlacklisted(t *testing.T) {
	m := New()
	m.Blacklist("1.2.3.4")
	_, err := m.CheckIP("1.2.3.4")
	if apperror.KindOf(err) != apperror.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestMonitor_FlagsSuspiciousVolume(t *testing.T) {
	m := New()
	var suspicious bool
	for i := 0; i < suspiciousThreshold; i++ {
		var err error
		suspicious, err = m.CheckIP("9.9.9.9")
		if err != nil {
			t.Fatalf("CheckIP: %v", err)
		}
	}
	if !suspicious {
		t.Fatal("expected suspicious=true once threshold reached")
	}
}

func TestMonitor_WindowExpires(t *testing.T) {
	m := New()
	current := time.Now()
	m.now = func() time.Time { return current }

	for i := 0; i < suspiciousThreshold; i++ {
		if _, err := m.CheckIP("5.5.5.5"); err != nil {
			t.Fatalf("CheckIP: %v", err)
		}
	}

	current = current.Add(2 * monitorWindow)
	suspicious, err := m.CheckIP("5.5.5.5")
	if err != nil {
		t.Fatalf("CheckIP: %v", err)
	}
	if suspicious {
		t.Fatal("expected old actions to have aged out of the window")
	}
}
