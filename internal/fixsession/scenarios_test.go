package fixsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: logon handshake, acceptor side (spec §8.1).
func TestLogonHandshakeAcceptor(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	s, store, resp := newTestSession(settings, app, clock)

	in := inboundLogon(1, 30)
	in.Header.SendingTime = clock.Now()
	require.NoError(t, s.Receive(context.Background(), in))

	reply := resp.last()
	require.NotNil(t, reply)
	assert.Equal(t, MsgTypeLogon, reply.Header.MsgType)
	assert.Equal(t, 1, reply.Header.MsgSeqNum)
	assert.Equal(t, 0, reply.Header.EncryptMethod)
	assert.Equal(t, 30, reply.Header.HeartBtInt)
	assert.Equal(t, "SERVER", reply.Header.SenderCompID)
	assert.Equal(t, "CLIENT", reply.Header.TargetCompID)

	assert.True(t, s.IsLoggedOn())
	next, _ := store.GetNextTargetMsgSeqNum(context.Background())
	assert.Equal(t, 2, next)
	assert.Equal(t, 1, app.onLogon)
}

// Scenario 2: gap detection, queueing and drain (spec §8.2).
func TestGapDetectionAndDrain(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	s, store, resp := newTestSession(settings, app, clock)
	ctx := context.Background()

	require.NoError(t, store.SetNextTargetMsgSeqNum(ctx, 5))
	s.state.mu.Lock()
	s.state.logonSent = true
	s.state.logonReceived = true
	s.state.mu.Unlock()

	gapMsg := inboundApp(8, clock.Now())
	require.NoError(t, s.Receive(ctx, gapMsg))

	resendReq := resp.last()
	require.NotNil(t, resendReq)
	assert.Equal(t, MsgTypeResendRequest, resendReq.Header.MsgType)
	assert.Equal(t, 5, resendReq.Header.BeginSeqNo)
	assert.Equal(t, 0, resendReq.Header.EndSeqNo)

	for seq := 5; seq <= 7; seq++ {
		require.NoError(t, s.Receive(ctx, inboundApp(seq, clock.Now())))
	}

	next, _ := store.GetNextTargetMsgSeqNum(ctx)
	assert.Equal(t, 9, next)
	require.Len(t, app.fromApp, 4)
	assert.Equal(t, 8, app.fromApp[len(app.fromApp)-1].Header.MsgSeqNum)
}

// Scenario 3: peer resend of a persisted range (spec §8.3).
func TestPeerResendOfPersistedRange(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	s, store, resp := newTestSession(settings, app, clock)
	ctx := context.Background()

	s.state.mu.Lock()
	s.state.logonSent = true
	s.state.logonReceived = true
	s.state.mu.Unlock()

	require.NoError(t, store.SetNextSenderMsgSeqNum(ctx, 15))
	for seq := 10; seq <= 14; seq++ {
		m := inboundApp(seq, clock.Now())
		m.Header.SenderCompID, m.Header.TargetCompID = "SERVER", "CLIENT"
		raw, err := memCodec{}.Encode(m)
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, seq, raw))
	}

	req := NewMessage(MsgTypeResendRequest)
	req.Header.BeginString = "FIX.4.4"
	req.Header.SenderCompID = "CLIENT"
	req.Header.TargetCompID = "SERVER"
	req.Header.MsgSeqNum = 20
	req.Header.BeginSeqNo = 10
	req.Header.EndSeqNo = 0
	req.Header.SendingTime = clock.Now()

	require.NoError(t, store.SetNextTargetMsgSeqNum(ctx, 20))
	require.NoError(t, s.Receive(ctx, req))

	sent := resp.messages()
	require.Len(t, sent, 5)
	for i, seq := 0, 10; seq <= 14; i, seq = i+1, seq+1 {
		assert.Equal(t, seq, sent[i].Header.MsgSeqNum)
		assert.True(t, sent[i].Header.PossDupFlag)
		assert.False(t, sent[i].Header.OrigSendingTime.IsZero())
		assert.NotEqual(t, MsgTypeSequenceReset, sent[i].Header.MsgType)
	}
}

// Scenario 4: PossDup too-low is swallowed as a duplicate (spec §8.4).
func TestPossDupTooLowAccepted(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	s, store, resp := newTestSession(settings, app, clock)
	ctx := context.Background()

	require.NoError(t, store.SetNextTargetMsgSeqNum(ctx, 20))
	s.state.mu.Lock()
	s.state.logonSent = true
	s.state.logonReceived = true
	s.state.mu.Unlock()

	dup := inboundApp(15, clock.Now())
	dup.Header.PossDupFlag = true
	dup.Header.OrigSendingTime = clock.Now().Add(-time.Second)

	require.NoError(t, s.Receive(ctx, dup))

	for _, m := range resp.messages() {
		assert.NotEqual(t, MsgTypeLogout, m.Header.MsgType)
	}
	next, _ := store.GetNextTargetMsgSeqNum(ctx)
	assert.Equal(t, 20, next)
	assert.Empty(t, app.fromApp)
}

// Scenario 5: SendingTime too far in the past rejects then logs out (spec §8.5).
func TestSendingTimeTooFarInPast(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	settings.MaxLatency = 120 * time.Second
	s, _, resp := newTestSession(settings, app, clock)
	ctx := context.Background()

	s.state.mu.Lock()
	s.state.logonSent = true
	s.state.logonReceived = true
	s.state.mu.Unlock()

	stale := inboundApp(1, clock.Now().Add(-300*time.Second))
	require.NoError(t, s.Receive(ctx, stale))

	msgs := resp.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgTypeReject, msgs[0].Header.MsgType)
	assert.Equal(t, RejectSendingTimeAccuracyProblem, msgs[0].Header.SessionRejectReason)
	assert.Equal(t, MsgTypeLogout, msgs[1].Header.MsgType)
}

// Scenario 6: heartbeat timeout escalates to a TestRequest, then a disconnect (spec §8.6).
func TestHeartbeatTimeoutEscalation(t *testing.T) {
	clock := newFakeClock(time.Now())
	app := newRecordingApp()
	settings := DefaultSettings()
	settings.HeartBtInt = 2
	s, _, resp := newTestSession(settings, app, clock)
	ctx := context.Background()

	s.state.mu.Lock()
	s.state.logonSent = true
	s.state.logonReceived = true
	s.state.heartBeatInt = 2
	s.state.mu.Unlock()

	clock.Advance(3100 * time.Millisecond)
	s.Next(ctx)

	msgs := resp.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeTestRequest, msgs[0].Header.MsgType)
	assert.Equal(t, "TEST", msgs[0].Header.TestReqID)

	clock.Advance(1800 * time.Millisecond)
	s.Next(ctx)

	assert.True(t, resp.disconnect)
}
