package fixsession

import "context"

// Application is the callback sink the engine drives: admin/app message
// hooks plus logon/logout notifications. It models the source's
// Application/ApplicationExtended split as one capability interface with
// default no-op behavior via BaseApplication embedding, rather than two
// parallel interfaces, per the design note in spec §9. Implementations
// must be reentrant-safe: callbacks may arrive on I/O, timer or
// application goroutines.
type Application interface {
	// ToAdmin is called immediately before an outbound admin message is
	// sent, after the header is stamped. Panics/errors are swallowed by
	// the caller; use it to add fields, never to block the send.
	ToAdmin(ctx context.Context, msg *Message, sessionID SessionID)

	// FromAdmin is called after an inbound admin message passes verify.
	// Returning one of the typed errors in errors.go converts to the
	// matching outbound Reject/Logout.
	FromAdmin(ctx context.Context, msg *Message, sessionID SessionID) error

	// ToApp is called immediately before an outbound application message
	// is sent (including resend retransmissions). Returning DoNotSendError
	// aborts the send.
	ToApp(ctx context.Context, msg *Message, sessionID SessionID) error

	// FromApp delivers an inbound application message once sequencing
	// has been satisfied (in ascending MsgSeqNum order).
	FromApp(ctx context.Context, msg *Message, sessionID SessionID) error

	OnLogon(sessionID SessionID)
	OnLogout(sessionID SessionID)

	// CanLogon gates initiator logon generation (LivenessEngine step 4).
	// Returning false defers logon generation to the next retry tick.
	CanLogon(sessionID SessionID) bool

	// OnBeforeSessionReset is called immediately before state.reset().
	OnBeforeSessionReset(sessionID SessionID)
}

// BaseApplication is an embeddable no-op Application. Concrete
// applications embed it and override only the methods they care about.
type BaseApplication struct{}

func (BaseApplication) ToAdmin(context.Context, *Message, SessionID)       {}
func (BaseApplication) FromAdmin(context.Context, *Message, SessionID) error { return nil }
func (BaseApplication) ToApp(context.Context, *Message, SessionID) error    { return nil }
func (BaseApplication) FromApp(context.Context, *Message, SessionID) error  { return nil }
func (BaseApplication) OnLogon(SessionID)                                   {}
func (BaseApplication) OnLogout(SessionID)                                  {}
func (BaseApplication) CanLogon(SessionID) bool                             { return true }
func (BaseApplication) OnBeforeSessionReset(SessionID)                      {}

var _ Application = BaseApplication{}
