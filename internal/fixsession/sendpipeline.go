package fixsession

import (
	"context"
	"time"
)

// secondPrecision truncates SendingTime to whole seconds when
// MillisecondsInTimeStamp is disabled (spec §4.4 step 1).
const secondPrecision = time.Second

// Send is the public outbound API (spec §4.4). It strips PossDupFlag and
// OrigSendingTime — those only make sense on a resend retransmission —
// and always assigns a fresh sequence number. The returned bool is
// best-effort: true means the bytes were handed to the transport, not
// that the peer received them.
func (s *Session) Send(ctx context.Context, msg *Message) bool {
	msg.Header.PossDupFlag = false
	msg.Header.OrigSendingTime = time.Time{}
	return s.sendRaw(ctx, msg, 0)
}

// sendWithSeq retransmits msg under its original MsgSeqNum (PossDup
// resend path); overrideSeq must be > 0.
func (s *Session) sendWithSeq(ctx context.Context, msg *Message, overrideSeq int) bool {
	return s.sendRaw(ctx, msg, overrideSeq)
}

// sendRaw is the single outbound funnel (spec §4.4): stamp header,
// assign/preserve MsgSeqNum, run callbacks, gate by logon state, render,
// transmit, persist+advance. The whole stamp->persist->increment
// sequence runs under senderMu so concurrent callers cannot interleave.
func (s *Session) sendRaw(ctx context.Context, msg *Message, overrideSeq int) bool {
	s.state.senderMu.Lock()
	defer s.state.senderMu.Unlock()

	fresh := overrideSeq == 0
	seq := overrideSeq
	if fresh {
		n, err := s.Store.GetNextSenderMsgSeqNum(ctx)
		if err != nil {
			s.Log.Error("get next sender seq failed", "session", s.ID.String(), "error", err)
			return false
		}
		seq = n
	}

	s.stampHeader(msg, seq)

	if s.Settings.EnableLastMsgSeqNumProcessed && !msg.Header.HasLastMsgSeqNumProc {
		target, err := s.Store.GetNextTargetMsgSeqNum(ctx)
		if err == nil {
			msg.Header.LastMsgSeqNumProcessed = target - 1
			msg.Header.HasLastMsgSeqNumProc = true
		}
	}

	if msg.IsAdmin() {
		s.App.ToAdmin(ctx, msg, s.ID)

		if msg.Header.MsgType == MsgTypeLogon {
			s.state.mu.Lock()
			resetReceived := s.state.resetReceived
			s.state.mu.Unlock()

			if !resetReceived && msg.Header.ResetSeqNumFlag {
				if err := s.Reset(ctx); err != nil {
					s.Log.Error("reset on logon send failed", "session", s.ID.String(), "error", err)
				}
				n, err := s.Store.GetNextSenderMsgSeqNum(ctx)
				if err == nil {
					seq = n
					msg.Header.MsgSeqNum = seq
				}
				s.state.mu.Lock()
				s.state.resetSent = true
				s.state.mu.Unlock()
			}
		}
	} else {
		if err := s.App.ToApp(ctx, msg, s.ID); err != nil {
			return false
		}
	}

	raw, err := s.Codec.Encode(msg)
	if err != nil {
		s.Log.Error("encode failed", "session", s.ID.String(), "error", err)
		return false
	}

	if !s.canSendNow(msg.Header.MsgType) {
		s.Log.Warn("dropping send, not logged on", "session", s.ID.String(), "msgType", msg.Header.MsgType)
		return false
	}

	r := s.getResponder()
	if r == nil {
		return false
	}
	ok := r.Send(raw)
	s.state.markLastSent(s.now())

	if fresh && ok {
		if s.Settings.PersistMessages {
			if err := s.Store.Set(ctx, seq, raw); err != nil {
				s.Log.Error("persist outbound message failed", "session", s.ID.String(), "seq", seq, "error", err)
			}
		}
		if err := s.Store.IncrNextSenderMsgSeqNum(ctx); err != nil {
			s.Log.Error("increment sender seq failed", "session", s.ID.String(), "error", err)
		}
	}
	return ok
}

// canSendNow implements the send-gate of spec §4.4 step 6: Logon,
// Logout, ResendRequest and SequenceReset may be sent any time; every
// other message type only once logged on.
func (s *Session) canSendNow(msgType string) bool {
	switch msgType {
	case MsgTypeLogon, MsgTypeLogout, MsgTypeResendRequest, MsgTypeSequenceReset:
		return true
	default:
		return s.IsLoggedOn()
	}
}

func (s *Session) stampHeader(msg *Message, seq int) {
	msg.Header.BeginString = s.ID.BeginString
	msg.Header.SenderCompID = s.ID.SenderCompID
	msg.Header.SenderSubID = s.ID.SenderSubID
	msg.Header.SenderLocationID = s.ID.SenderLocationID
	msg.Header.TargetCompID = s.ID.TargetCompID
	msg.Header.TargetSubID = s.ID.TargetSubID
	msg.Header.TargetLocationID = s.ID.TargetLocationID
	msg.Header.MsgSeqNum = seq
	msg.Header.SendingTime = s.now()
	if !s.Settings.MillisecondsInTimeStamp {
		msg.Header.SendingTime = msg.Header.SendingTime.Truncate(secondPrecision)
	}
}
