package fixsession

import "fmt"

// The engine's error taxonomy (spec §7) is modeled as a tagged result
// rather than propagated panics/checked exceptions: every admin handler
// matches these kinds and converts them into an outbound protocol
// message before returning, instead of unwinding past dispatch.

// RejectLogonError means the peer's Logon is unacceptable. The session
// optionally emits a Logout first, advances the target seq, then
// disconnects.
type RejectLogonError struct{ Text string }

func (e *RejectLogonError) Error() string { return "reject logon: " + e.Text }

// FieldError is a header/body fault in an otherwise-parsed message,
// recovered by sending a session-level Reject naming Tag and Reason
// (SessionRejectReason, 373) and advancing the target seq (unless the
// fault is on a Logon/SequenceReset carrying PossDup).
type FieldError struct {
	Tag    int
	Reason int
	Text   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field error tag=%d reason=%d: %s", e.Tag, e.Reason, e.Text)
}

// IncorrectDataFormatError is a syntactic field error; rejected with
// RejectIncorrectDataFormat.
type IncorrectDataFormatError struct {
	Tag  int
	Text string
}

func (e *IncorrectDataFormatError) Error() string {
	return fmt.Sprintf("incorrect data format tag=%d: %s", e.Tag, e.Text)
}

// IncorrectTagValueError is an enumerated-value violation; rejected with
// RejectValueIsIncorrect.
type IncorrectTagValueError struct {
	Tag  int
	Text string
}

func (e *IncorrectTagValueError) Error() string {
	return fmt.Sprintf("incorrect tag value tag=%d: %s", e.Tag, e.Text)
}

// UnsupportedMessageTypeError is an unknown MsgType. On FIX.4.2+ this
// becomes a BusinessMessageReject; on earlier versions, a session Reject.
type UnsupportedMessageTypeError struct{ MsgType string }

func (e *UnsupportedMessageTypeError) Error() string {
	return "unsupported message type: " + e.MsgType
}

// UnsupportedVersionError is a BeginString mismatch; Logout + disconnect.
type UnsupportedVersionError struct{ Got, Want string }

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version: got %s want %s", e.Got, e.Want)
}

// InvalidMessageError means the bytes could not be parsed at all.
// Disconnect only if it was a Logon; otherwise log and apply the
// resetOrDisconnect-on-error policy.
type InvalidMessageError struct{ Text string }

func (e *InvalidMessageError) Error() string { return "invalid message: " + e.Text }

// DoNotSendError is returned by Application.ToApp to veto a send (the
// message is folded into a gap instead of transmitted, or the public
// Send call aborts).
type DoNotSendError struct{}

func (*DoNotSendError) Error() string { return "application vetoed send" }

var ErrDoNotSend = &DoNotSendError{}
