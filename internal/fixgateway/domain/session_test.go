package domain

import (
	"testing"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

func TestNewFixSessionPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	id := fixsession.SessionID{BeginString: "FIX.4.2", SenderCompID: "BUYER", TargetCompID: "SELLER"}

	rec := NewFixSession(id, now)

	if rec.Status != SessionStatusPending {
		t.Fatalf("status = %s, want PENDING", rec.Status)
	}
	if rec.SessionID != id.String() {
		t.Fatalf("SessionID = %s, want %s", rec.SessionID, id.String())
	}
	if !rec.CreatedAt.Equal(now) || !rec.LastActiveAt.Equal(now) {
		t.Fatalf("timestamps not stamped with now")
	}
}

func TestToFixSessionIDRoundTrip(t *testing.T) {
	id := fixsession.SessionID{BeginString: "FIX.4.4", SenderCompID: "A", TargetCompID: "B"}
	rec := NewFixSession(id, time.Now())

	got := rec.ToFixSessionID()
	if got != id {
		t.Fatalf("ToFixSessionID() = %+v, want %+v", got, id)
	}
}
