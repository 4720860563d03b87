package fixsession

import (
	"context"
	"fmt"
)

// Receive is the engine's entry point (spec §4.1): dispatch by MsgType
// to the matching admin handler, or to the application path for
// everything else.
func (s *Session) Receive(ctx context.Context, msg *Message) error {
	switch msg.Header.MsgType {
	case MsgTypeLogon:
		return s.handleLogon(ctx, msg)
	case MsgTypeLogout:
		return s.handleLogout(ctx, msg)
	case MsgTypeHeartbeat:
		return s.handleHeartbeat(ctx, msg)
	case MsgTypeTestRequest:
		return s.handleTestRequest(ctx, msg)
	case MsgTypeResendRequest:
		return s.handleResendRequest(ctx, msg)
	case MsgTypeSequenceReset:
		return s.handleSequenceReset(ctx, msg)
	case MsgTypeReject:
		return s.handleReject(ctx, msg)
	default:
		return s.handleApp(ctx, msg)
	}
}

// handleLogon implements spec §4.1 Logon(A).
func (s *Session) handleLogon(ctx context.Context, msg *Message) error {
	if !s.Schedule.IsSessionTime(s.now()) {
		s.Disconnect("logon received outside session schedule")
		return &RejectLogonError{Text: "outside session schedule"}
	}

	if s.Settings.RefreshOnLogon && !s.Settings.Initiator {
		_ = s.Store.Refresh(ctx)
	}

	s.state.mu.Lock()
	if msg.Header.ResetSeqNumFlag {
		s.state.resetReceived = true
	} else if s.Settings.Initiator && s.state.resetSent && msg.Header.MsgSeqNum == 1 {
		s.state.resetReceived = true
	}
	resetReceived := s.state.resetReceived
	resetSent := s.state.resetSent
	logonAlreadySent := s.state.logonSent
	s.state.mu.Unlock()

	if resetReceived && !resetSent {
		if err := s.Reset(ctx); err != nil {
			return err
		}
	}

	respondingToOurLogon := s.Settings.Initiator && logonAlreadySent
	if !respondingToOurLogon {
		reply := NewMessage(MsgTypeLogon)
		reply.Header.EncryptMethod = 0
		reply.Header.HeartBtInt = msg.Header.HeartBtInt
		s.state.mu.Lock()
		s.state.heartBeatInt = msg.Header.HeartBtInt
		s.state.mu.Unlock()
		s.sendRaw(ctx, reply, 0)
		s.state.mu.Lock()
		s.state.logonSent = true
		s.state.mu.Unlock()
	}

	if !s.verify(ctx, msg, false, s.Settings.ValidateSequenceNumbers) {
		return nil
	}

	s.state.mu.Lock()
	s.state.logonReceived = true
	s.state.logoutSent = false
	s.state.logoutReceived = false
	targetTooHigh := false
	nextTarget, _ := s.Store.GetNextTargetMsgSeqNum(ctx)
	if s.Settings.ValidateSequenceNumbers && msg.Header.MsgSeqNum > nextTarget {
		targetTooHigh = true
	}
	resetOnLogon := s.Settings.ResetOnLogon
	s.state.mu.Unlock()

	if targetTooHigh && !resetOnLogon {
		if err := s.doTargetTooHigh(ctx, msg); err != nil {
			return err
		}
	} else {
		if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
			return err
		}
		s.drainQueue(ctx)
	}

	nextSender, _ := s.Store.GetNextSenderMsgSeqNum(ctx)
	if msg.Header.MsgSeqNum > nextSender {
		_ = s.sendResendRequest(ctx, msg.Header.MsgSeqNum, nextSender-1)
	}

	s.App.OnLogon(s.ID)
	return nil
}

// handleLogout implements spec §4.1 Logout(5).
func (s *Session) handleLogout(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, s.Settings.ValidateSequenceNumbers, s.Settings.ValidateSequenceNumbers) {
		return nil
	}

	s.state.mu.Lock()
	alreadySentLogout := s.state.logoutSent
	s.state.logoutReceived = true
	resetOnLogout := s.Settings.ResetOnLogout
	s.state.mu.Unlock()

	if !alreadySentLogout {
		reply := NewMessage(MsgTypeLogout)
		if s.state.logoutReason != "" {
			reply.Header.Text = s.state.logoutReason
		}
		s.sendRaw(ctx, reply, 0)
		s.state.mu.Lock()
		s.state.logoutSent = true
		s.state.mu.Unlock()
		s.Log.Info("received logout request", "session", s.ID.String())
	} else {
		s.Log.Info("received logout response", "session", s.ID.String())
	}

	if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}

	if resetOnLogout {
		if err := s.Reset(ctx); err != nil {
			s.Log.Error("reset on logout failed", "session", s.ID.String(), "error", err)
		}
	}

	s.App.OnLogout(s.ID)
	s.Disconnect("logout")
	return nil
}

// handleHeartbeat implements spec §4.1 Heartbeat(0).
func (s *Session) handleHeartbeat(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, s.Settings.ValidateSequenceNumbers, s.Settings.ValidateSequenceNumbers) {
		return nil
	}
	if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}
	s.drainQueue(ctx)
	return nil
}

// handleTestRequest implements spec §4.1 TestRequest(1).
func (s *Session) handleTestRequest(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, s.Settings.ValidateSequenceNumbers, s.Settings.ValidateSequenceNumbers) {
		return nil
	}
	reply := NewMessage(MsgTypeHeartbeat)
	reply.Header.TestReqID = msg.Header.TestReqID
	s.sendRaw(ctx, reply, 0)
	if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}
	s.drainQueue(ctx)
	return nil
}

// handleResendRequest implements spec §4.1 ResendRequest(2): verify
// without tooHigh/tooLow, then delegate to the gap-fill engine.
func (s *Session) handleResendRequest(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, false, false) {
		return nil
	}
	return s.answerResendRequest(ctx, msg)
}

// handleSequenceReset implements spec §4.1 SequenceReset(4).
func (s *Session) handleSequenceReset(ctx context.Context, msg *Message) error {
	gapFill := msg.Header.GapFillFlag
	if !s.verify(ctx, msg, gapFill, gapFill) {
		return nil
	}

	nextTarget, err := s.Store.GetNextTargetMsgSeqNum(ctx)
	if err != nil {
		return err
	}

	newSeqNo := msg.Header.NewSeqNo
	switch {
	case newSeqNo > nextTarget:
		rr := s.state.getResendRange()
		if rr.Pending() && newSeqNo > rr.Begin && newSeqNo <= rr.End {
			if err := s.Store.SetNextTargetMsgSeqNum(ctx, newSeqNo); err != nil {
				return err
			}
			return s.sendResendRequest(ctx, newSeqNo, rr.End)
		}
		if err := s.Store.SetNextTargetMsgSeqNum(ctx, newSeqNo); err != nil {
			return err
		}
	case newSeqNo < nextTarget:
		s.sendReject(ctx, msg, RejectValueIsIncorrect, fmt.Sprintf("NewSeqNo(%d) less than expected(%d)", newSeqNo, nextTarget))
	}
	return nil
}

// handleReject implements spec §4.1 Reject(3).
func (s *Session) handleReject(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, false, s.Settings.ValidateSequenceNumbers) {
		return nil
	}
	if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}
	s.drainQueue(ctx)
	return nil
}

// handleApp implements spec §4.1 "any other (application)": advancing
// nextTargetSeq is handled here, in the app path, rather than inside
// verify (which only delivers to FromApp on success).
func (s *Session) handleApp(ctx context.Context, msg *Message) error {
	if !s.verify(ctx, msg, s.Settings.ValidateSequenceNumbers, s.Settings.ValidateSequenceNumbers) {
		return nil
	}
	if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
		return err
	}
	s.drainQueue(ctx)
	return nil
}

// drainQueue delivers any out-of-order messages now made contiguous by
// an advancing nextTargetSeq, in ascending order, until a hole remains.
func (s *Session) drainQueue(ctx context.Context) {
	for {
		next, err := s.Store.GetNextTargetMsgSeqNum(ctx)
		if err != nil {
			return
		}
		msg, ok := s.state.dequeue(next)
		if !ok {
			return
		}
		s.deliver(ctx, msg)
		if err := s.Store.IncrNextTargetMsgSeqNum(ctx); err != nil {
			return
		}
	}
}

func (s *Session) deliver(ctx context.Context, msg *Message) {
	var err error
	if msg.IsAdmin() {
		err = s.App.FromAdmin(ctx, msg, s.ID)
	} else {
		err = s.App.FromApp(ctx, msg, s.ID)
	}
	if err != nil {
		s.convertApplicationError(ctx, msg, err)
	}
}

// convertApplicationError implements the Application doc comment's
// promise (spec §7): a typed error out of FromAdmin/FromApp converts to
// the matching outbound Reject/Logout. Anything else is an opaque
// application error with no protocol-level recovery, so it's just logged.
func (s *Session) convertApplicationError(ctx context.Context, msg *Message, err error) {
	switch e := err.(type) {
	case *FieldError:
		s.sendFieldReject(ctx, msg, e.Tag, e.Reason, e.Text)
	case *IncorrectDataFormatError:
		s.sendFieldReject(ctx, msg, e.Tag, RejectIncorrectDataFormat, e.Text)
	case *IncorrectTagValueError:
		s.sendFieldReject(ctx, msg, e.Tag, RejectValueIsIncorrect, e.Text)
	case *UnsupportedMessageTypeError:
		s.sendUnsupportedMsgType(ctx, msg, e.MsgType)
	case *UnsupportedVersionError:
		s.sendLogout(ctx, e.Error())
		s.Disconnect(e.Error())
	case *RejectLogonError:
		s.sendLogout(ctx, e.Text)
		s.Disconnect(e.Error())
	default:
		s.Log.Warn("application callback error", "session", s.ID.String(), "msgType", msg.Header.MsgType, "error", err)
	}
}
