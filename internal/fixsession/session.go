package fixsession

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Session is the aggregate spec §2 and §4 describe: a SessionState
// guarded by the session mutex, the MessageStore/Application/Schedule
// collaborators, and a swappable Responder. Its methods are grouped by
// file along the component boundaries of spec §4: statemachine.go
// (SessionStateMachine), gapfill.go (GapFillEngine), liveness.go
// (LivenessEngine), sendpipeline.go (SendPipeline).
//
// A Session is created once, registered in a SessionManager, and
// survives disconnects: only the Responder is attached/detached across
// reconnects. It is destroyed only on engine shutdown or explicit
// unregistration.
type Session struct {
	ID       SessionID
	Settings Settings
	Store    MessageStore
	App      Application
	Schedule Schedule
	Codec    Codec
	Log      *slog.Logger

	clock func() time.Time

	state *SessionState

	responderMu sync.RWMutex
	responder   Responder
}

// NewSession constructs a registered-but-unattached Session. clock may
// be nil (defaults to time.Now); tests inject a fake clock so liveness
// and timeout logic never needs a real sleep.
func NewSession(id SessionID, settings Settings, store MessageStore, app Application, schedule Schedule, codec Codec, log *slog.Logger, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	if schedule == nil {
		schedule = AlwaysOpenSchedule{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		ID:       id,
		Settings: settings,
		Store:    store,
		App:      app,
		Schedule: schedule,
		Codec:    codec,
		Log:      log,
		clock:    clock,
		state:    NewSessionState(clock, settings.TestRequestDelayMultiplier),
	}
	s.state.heartBeatInt = settings.HeartBtInt
	return s
}

func (s *Session) now() time.Time { return s.clock() }

// Connect attaches a transport Responder. Safe to call repeatedly across
// reconnects; the previous responder (if any) is simply replaced.
func (s *Session) Connect(r Responder) {
	s.responderMu.Lock()
	s.responder = r
	s.responderMu.Unlock()
}

// Disconnect detaches the responder and tells the transport to close,
// logging a human-readable cause (spec §7).
func (s *Session) Disconnect(reason string) {
	s.responderMu.Lock()
	r := s.responder
	s.responder = nil
	s.responderMu.Unlock()

	if r != nil {
		r.Disconnect()
	}
	s.Log.Info("session disconnected", "session", s.ID.String(), "reason", reason)

	if s.Settings.ResetOnDisconnect {
		if err := s.Reset(context.Background()); err != nil {
			s.Log.Error("reset on disconnect failed", "session", s.ID.String(), "error", err)
		}
	}
}

// HasResponder reports whether a transport is currently attached.
func (s *Session) HasResponder() bool {
	s.responderMu.RLock()
	defer s.responderMu.RUnlock()
	return s.responder != nil
}

func (s *Session) getResponder() Responder {
	s.responderMu.RLock()
	defer s.responderMu.RUnlock()
	return s.responder
}

// IsLoggedOn reports whether both sides have completed the logon
// handshake (spec §3 invariant 4).
func (s *Session) IsLoggedOn() bool { return s.state.isLoggedOn() }

// Reset implements spec §3 invariant 6 via the application hook
// OnBeforeSessionReset, then the store/flag reset.
func (s *Session) Reset(ctx context.Context) error {
	s.App.OnBeforeSessionReset(s.ID)
	return s.state.reset(ctx, s.Store)
}
