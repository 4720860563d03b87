package fixsession

import "time"

// Settings holds the per-session configuration keys spec §6 enumerates.
// A Settings value is immutable for the lifetime of a Session; changing
// negotiated values (e.g. HeartBtInt) happens on SessionState, not here.
type Settings struct {
	// Initiator is true if this side opens the logon handshake.
	Initiator bool

	HeartBtInt                 int // seconds; 0 disables liveness
	CheckLatency                bool
	MaxLatency                  time.Duration // default 120s
	CheckCompID                  bool
	TestRequestDelayMultiplier   float64 // (0,1], default 0.5

	ResetOnLogon      bool
	ResetOnLogout     bool
	ResetOnDisconnect bool
	ResetOnError      bool
	DisconnectOnError bool

	RefreshOnLogon bool

	PersistMessages             bool // default true
	SendRedundantResendRequests bool
	ClosedResendInterval        bool // forces literal closed range instead of open-range sentinel
	MillisecondsInTimeStamp     bool

	ValidateSequenceNumbers bool
	ValidateIncomingMessage bool
	RejectInvalidMessage    bool

	ForceResendWhenCorruptedStore bool
	AllowUnknownMsgFields         bool
	DisableHeartBeatCheck         bool

	EnableLastMsgSeqNumProcessed bool
	EnableNextExpectedMsgSeqNum  bool

	LogonTimeout  time.Duration
	LogoutTimeout time.Duration

	ResendRequestChunkSize int // 0 = unlimited

	AllowedRemoteAddresses []string

	LogonIntervals []time.Duration // default [5s]
}

// DefaultSettings returns the spec-documented defaults.
func DefaultSettings() Settings {
	return Settings{
		HeartBtInt:                   30,
		CheckLatency:                 true,
		MaxLatency:                   120 * time.Second,
		CheckCompID:                  true,
		TestRequestDelayMultiplier:   0.5,
		PersistMessages:              true,
		ValidateSequenceNumbers:      true,
		ValidateIncomingMessage:      true,
		RejectInvalidMessage:         true,
		LogonTimeout:                 10 * time.Second,
		LogoutTimeout:                2 * time.Second,
		LogonIntervals:               []time.Duration{5 * time.Second},
	}
}

// logonDelay implements computeNextLogonDelayMillis (spec §4.3): indexed
// table of retry backoffs, clamped to the last entry once attempts
// exceed the table length.
func (s Settings) logonDelay(attempts int) time.Duration {
	table := s.LogonIntervals
	if len(table) == 0 {
		table = []time.Duration{5 * time.Second}
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(table) {
		idx = len(table) - 1
	}
	return table[idx]
}
