package fixsession

import (
	"context"
	"time"
)

// Next is the LivenessEngine tick (spec §4.3), invoked by a periodic
// timer (typically 1s). It never blocks: every branch either returns
// immediately or fires at most one outbound admin message.
func (s *Session) Next(ctx context.Context) {
	if !s.Schedule.IsSessionTime(s.now()) {
		if err := s.Reset(ctx); err != nil {
			s.Log.Error("schedule-window reset failed", "session", s.ID.String(), "error", err)
		}
		return
	}

	if !s.HasResponder() {
		return
	}

	if !s.state.logonReceivedFlag() {
		s.nextAwaitingLogon(ctx)
		return
	}

	interval := time.Duration(s.state.heartBeatIntSeconds()) * time.Second
	if interval == 0 {
		return
	}

	if s.isLogoutTimedOut() {
		s.Disconnect("logout response timed out")
		return
	}

	now := s.now()
	s.state.mu.Lock()
	sinceSend := now.Sub(s.state.lastSentTime)
	sinceRecv := now.Sub(s.state.lastReceivedTime)
	s.state.mu.Unlock()

	if sinceSend < interval && sinceRecv < interval {
		return
	}

	if sinceRecv > time.Duration(2.4*float64(interval)) {
		if !s.Settings.DisableHeartBeatCheck {
			s.Disconnect("heartbeat timed out")
		} else {
			s.Log.Warn("heartbeat timed out but check disabled", "session", s.ID.String())
		}
		return
	}

	s.state.mu.Lock()
	n := s.state.testRequestCounter + 1
	delayMult := s.state.testRequestDelayMultiplier
	s.state.mu.Unlock()
	testRequestDeadline := time.Duration((1 + float64(n)*delayMult) * float64(interval))

	if sinceRecv > testRequestDeadline {
		reply := NewMessage(MsgTypeTestRequest)
		reply.Header.TestReqID = "TEST"
		s.sendRaw(ctx, reply, 0)
		s.state.mu.Lock()
		s.state.testRequestCounter++
		s.state.mu.Unlock()
		return
	}

	if sinceSend >= interval {
		hb := NewMessage(MsgTypeHeartbeat)
		s.sendRaw(ctx, hb, 0)
	}
}

// nextAwaitingLogon implements spec §4.3 step 4: the pre-logon branch.
func (s *Session) nextAwaitingLogon(ctx context.Context) {
	s.state.mu.Lock()
	logonSent := s.state.logonSent
	attempts := s.state.logonAttempts
	lastAttempt := s.state.lastLogonAttempt
	s.state.mu.Unlock()

	if s.Settings.Initiator && !logonSent {
		if s.isTimeToGenerateLogon(attempts, lastAttempt) {
			if !s.App.CanLogon(s.ID) {
				return
			}
			reply := NewMessage(MsgTypeLogon)
			reply.Header.EncryptMethod = 0
			reply.Header.HeartBtInt = s.Settings.HeartBtInt
			s.state.mu.Lock()
			s.state.logonAttempts++
			s.state.lastLogonAttempt = s.now()
			s.state.heartBeatInt = s.Settings.HeartBtInt
			s.state.mu.Unlock()
			s.sendRaw(ctx, reply, 0)
			s.state.mu.Lock()
			s.state.logonSent = true
			s.state.mu.Unlock()
		}
		return
	}

	if logonSent && s.isLogonTimedOut() {
		s.Disconnect("timed out waiting for logon response")
	}
}

// isTimeToGenerateLogon implements computeNextLogonDelayMillis (spec §4.3).
func (s *Session) isTimeToGenerateLogon(attempts int, lastAttempt time.Time) bool {
	if attempts == 0 {
		return true
	}
	return s.now().Sub(lastAttempt) >= s.Settings.logonDelay(attempts)
}

func (s *Session) isLogonTimedOut() bool {
	s.state.mu.Lock()
	sent := s.state.logonSent
	lastAttempt := s.state.lastLogonAttempt
	s.state.mu.Unlock()
	if !sent || lastAttempt.IsZero() {
		return false
	}
	return s.now().Sub(lastAttempt) > s.Settings.LogonTimeout
}

func (s *Session) isLogoutTimedOut() bool {
	s.state.mu.Lock()
	logoutSent := s.state.logoutSent
	lastSent := s.state.lastSentTime
	s.state.mu.Unlock()
	if !logoutSent {
		return false
	}
	return s.now().Sub(lastSent) > s.Settings.LogoutTimeout
}
