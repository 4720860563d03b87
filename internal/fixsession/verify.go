package fixsession

import (
	"context"
	"fmt"
	"time"
)

// verify is the central inbound gate (spec §4.1.1). It runs the ordered
// checks, performing whatever recovery (Reject/Logout/enqueue+resend) a
// failure calls for itself, and returns false whenever the caller should
// stop processing this message. On success (true) it has already
// delivered the message to FromAdmin/FromApp (step 10).
func (s *Session) verify(ctx context.Context, msg *Message, checkTooHigh, checkTooLow bool) bool {
	s.state.markLastReceived(s.now())

	if msg.Header.BeginString != s.ID.BeginString {
		verErr := &UnsupportedVersionError{Got: msg.Header.BeginString, Want: s.ID.BeginString}
		s.sendLogout(ctx, verErr.Error())
		s.Disconnect(verErr.Error())
		return false
	}

	if !s.validLogonState(msg.Header.MsgType) {
		s.sendLogout(ctx, fmt.Sprintf("MsgType %s not valid in current state", msg.Header.MsgType))
		return false
	}

	if s.Settings.CheckLatency && !s.isGoodTime(msg.Header.SendingTime) {
		s.sendReject(ctx, msg, RejectSendingTimeAccuracyProblem, "SendingTime accuracy problem")
		s.sendLogout(ctx, "SendingTime accuracy problem")
		return false
	}

	if s.Settings.CheckCompID && !s.isCorrectCompID(msg) {
		s.sendReject(ctx, msg, RejectCompIDProblem, "CompID problem")
		s.sendLogout(ctx, "CompID problem")
		return false
	}

	nextTarget, err := s.Store.GetNextTargetMsgSeqNum(ctx)
	if err != nil {
		s.Log.Error("get next target seq failed", "session", s.ID.String(), "error", err)
		return false
	}

	if checkTooHigh && msg.Header.MsgSeqNum > nextTarget {
		if err := s.doTargetTooHigh(ctx, msg); err != nil {
			s.Log.Error("target too high handling failed", "session", s.ID.String(), "error", err)
		}
		return false
	}

	if checkTooLow && msg.Header.MsgSeqNum < nextTarget {
		if !msg.Header.PossDupFlag {
			s.sendLogout(ctx, fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", nextTarget, msg.Header.MsgSeqNum))
			return false
		}
		// Already-seen retransmission: validate but never re-deliver or
		// advance the target seq, since this message was accounted for
		// the first time it arrived.
		s.validatePossDup(ctx, msg)
		return false
	}

	if msg.Header.MsgType == MsgTypeLogon && checkTooLow && s.Settings.EnableNextExpectedMsgSeqNum {
		nextSender, err := s.Store.GetNextSenderMsgSeqNum(ctx)
		if err == nil && msg.Header.NextExpectedMsgSeqNum > nextSender {
			s.sendLogout(ctx, "NextExpectedMsgSeqNum too high")
			return false
		}
	}

	if msg.Header.PossDupFlag && msg.Header.MsgType != MsgTypeSequenceReset {
		if !s.validatePossDup(ctx, msg) {
			return false
		}
	}

	rr := s.state.getResendRange()
	if rr.Pending() && msg.Header.MsgSeqNum >= rr.End {
		s.state.clearResendRange()
		s.Log.Info("resend range completed", "session", s.ID.String(), "begin", rr.Begin, "end", rr.End)
	} else if rr.Pending() && rr.ChunkEnd > 0 && msg.Header.MsgSeqNum >= rr.ChunkEnd && rr.ChunkEnd < rr.End {
		nextEnd := rr.End
		chunkSize := s.Settings.ResendRequestChunkSize
		if chunkSize > 0 {
			candidate := rr.ChunkEnd + chunkSize
			if candidate < nextEnd {
				nextEnd = candidate
			}
		}
		_ = s.sendResendRequest(ctx, rr.ChunkEnd+1, nextEnd)
	}

	s.deliver(ctx, msg)
	return true
}

// validLogonState implements spec §4.1.1 step 2, treated as authoritative
// over the source's ambiguous predicate (spec §9 open question).
func (s *Session) validLogonState(msgType string) bool {
	s.state.mu.Lock()
	logonReceived := s.state.logonReceived
	logonSent := s.state.logonSent
	s.state.mu.Unlock()

	switch msgType {
	case MsgTypeLogon:
		return !logonReceived
	case MsgTypeLogout:
		return logonSent
	case MsgTypeSequenceReset, MsgTypeReject:
		return true
	default:
		return logonReceived
	}
}

// isGoodTime implements spec §4.1.1 step 3.
func (s *Session) isGoodTime(sendingTime time.Time) bool {
	delta := s.now().Sub(sendingTime)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.Settings.MaxLatency
}

// isCorrectCompID implements spec §4.1.1 step 4.
func (s *Session) isCorrectCompID(msg *Message) bool {
	return msg.Header.SenderCompID == s.ID.TargetCompID && msg.Header.TargetCompID == s.ID.SenderCompID
}

// validatePossDup implements spec §4.1.1 step 8.
func (s *Session) validatePossDup(ctx context.Context, msg *Message) bool {
	if msg.Header.MsgType != MsgTypeSequenceReset {
		if msg.Header.OrigSendingTime.IsZero() {
			if s.Settings.RejectInvalidMessage {
				s.sendReject(ctx, msg, RejectRequiredTagMissing, "OrigSendingTime missing on PossDup")
				return false
			}
			s.Log.Warn("PossDup message missing OrigSendingTime", "session", s.ID.String())
			return true
		}
		if msg.Header.OrigSendingTime.After(msg.Header.SendingTime) {
			s.sendReject(ctx, msg, RejectSendingTimeAccuracyProblem, "OrigSendingTime after SendingTime")
			s.sendLogout(ctx, "OrigSendingTime after SendingTime")
			return false
		}
	}
	return true
}

func (s *Session) sendReject(ctx context.Context, ref *Message, reason int, text string) {
	reply := NewMessage(MsgTypeReject)
	reply.Header.RefMsgType = ref.Header.MsgType
	reply.Header.SessionRejectReason = reason
	reply.Header.Text = text
	s.sendRaw(ctx, reply, 0)
}

// sendFieldReject is sendReject plus the offending tag (RefTagID, 371),
// for the FieldError/IncorrectDataFormatError/IncorrectTagValueError
// family converted out of deliver (spec §7).
func (s *Session) sendFieldReject(ctx context.Context, ref *Message, tag, reason int, text string) {
	reply := NewMessage(MsgTypeReject)
	reply.Header.RefMsgType = ref.Header.MsgType
	reply.Header.RefTagID = tag
	reply.Header.SessionRejectReason = reason
	reply.Header.Text = text
	s.sendRaw(ctx, reply, 0)
}

// sendUnsupportedMsgType implements the UnsupportedMessageTypeError
// recovery (spec §7): a BusinessMessageReject on FIX.4.2+, a plain
// session Reject on earlier versions.
func (s *Session) sendUnsupportedMsgType(ctx context.Context, ref *Message, msgType string) {
	text := "unsupported message type: " + msgType
	if beginStringAtLeast(s.ID.BeginString, "FIX.4.2") {
		reply := NewMessage(MsgTypeBusinessReject)
		reply.Header.RefMsgType = ref.Header.MsgType
		reply.Header.BusinessRejectReason = BusinessRejectUnsupportedMessageType
		reply.Header.Text = text
		s.sendRaw(ctx, reply, 0)
		return
	}
	s.sendReject(ctx, ref, RejectInvalidMsgType, text)
}

func (s *Session) sendLogout(ctx context.Context, text string) {
	s.state.mu.Lock()
	s.state.logoutReason = text
	alreadySent := s.state.logoutSent
	s.state.mu.Unlock()
	if alreadySent {
		return
	}
	reply := NewMessage(MsgTypeLogout)
	reply.Header.Text = text
	s.sendRaw(ctx, reply, 0)
	s.state.mu.Lock()
	s.state.logoutSent = true
	s.state.mu.Unlock()
}
