package fixsession

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"
	"time"
)

func encodeGob(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(raw []byte) (*Message, error) {
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// memStore is an in-memory MessageStore for tests: no persistence
// concerns beyond a plain map, counters starting at 1.
type memStore struct {
	mu           sync.Mutex
	nextSender   int
	nextTarget   int
	created      time.Time
	messages     map[int][]byte
	refreshCalls int
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		nextSender: 1,
		nextTarget: 1,
		created:    now,
		messages:   make(map[int][]byte),
	}
}

func (m *memStore) GetNextSenderMsgSeqNum(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSender, nil
}

func (m *memStore) SetNextSenderMsgSeqNum(_ context.Context, seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSender = seq
	return nil
}

func (m *memStore) IncrNextSenderMsgSeqNum(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSender++
	return nil
}

func (m *memStore) GetNextTargetMsgSeqNum(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextTarget, nil
}

func (m *memStore) SetNextTargetMsgSeqNum(_ context.Context, seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTarget = seq
	return nil
}

func (m *memStore) IncrNextTargetMsgSeqNum(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTarget++
	return nil
}

func (m *memStore) Get(_ context.Context, begin, end int) ([]StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredMessage
	for seq := begin; seq <= end; seq++ {
		if raw, ok := m.messages[seq]; ok {
			out = append(out, StoredMessage{Seq: seq, Raw: raw})
		}
	}
	return out, nil
}

func (m *memStore) Set(_ context.Context, seq int, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[seq] = raw
	return nil
}

func (m *memStore) Refresh(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	return nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSender = 1
	m.nextTarget = 1
	m.messages = make(map[int][]byte)
	return nil
}

func (m *memStore) CreationTime(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, nil
}

func (m *memStore) Close() error { return nil }

// fakeResponder records every frame handed to Send and never actually
// touches a socket.
type fakeResponder struct {
	mu         sync.Mutex
	sent       [][]byte
	disconnect bool
}

func (r *fakeResponder) Send(raw []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, append([]byte(nil), raw...))
	return true
}

func (r *fakeResponder) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnect = true
}

func (r *fakeResponder) RemoteAddress() string { return "test://peer" }

func (r *fakeResponder) messages() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, 0, len(r.sent))
	for _, raw := range r.sent {
		m, _ := memCodec{}.Decode(raw)
		out = append(out, m)
	}
	return out
}

func (r *fakeResponder) last() *Message {
	msgs := r.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// memCodec is a stand-in wire codec for tests: it gob-encodes the
// Message verbatim rather than rendering real SOH tag=value bytes,
// since these tests exercise session semantics, not the wire grammar
// (spec §1 scopes the codec out of this package).
type memCodec struct{}

func (memCodec) Encode(msg *Message) ([]byte, error) {
	return encodeGob(msg)
}

func (memCodec) Decode(raw []byte) (*Message, error) {
	return decodeGob(raw)
}

// recordingApp is a BaseApplication that records every callback
// invocation so tests can assert on delivery order and content.
type recordingApp struct {
	BaseApplication
	mu         sync.Mutex
	fromApp    []*Message
	fromAdmin  []*Message
	onLogon    int
	onLogout   int
	canLogon   bool
	logonCalls int
}

func newRecordingApp() *recordingApp {
	return &recordingApp{canLogon: true}
}

func (a *recordingApp) FromApp(_ context.Context, msg *Message, _ SessionID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fromApp = append(a.fromApp, msg)
	return nil
}

func (a *recordingApp) FromAdmin(_ context.Context, msg *Message, _ SessionID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fromAdmin = append(a.fromAdmin, msg)
	return nil
}

func (a *recordingApp) OnLogon(SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogon++
}

func (a *recordingApp) OnLogout(SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogout++
}

func (a *recordingApp) CanLogon(SessionID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logonCalls++
	return a.canLogon
}

// fakeClock lets tests move time forward deterministically without
// sleeping a real goroutine.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSessionID() SessionID {
	return SessionID{BeginString: "FIX.4.4", SenderCompID: "SERVER", TargetCompID: "CLIENT"}
}

func newTestSession(settings Settings, app Application, clock *fakeClock) (*Session, *memStore, *fakeResponder) {
	store := newMemStore(clock.Now())
	resp := &fakeResponder{}
	s := NewSession(testSessionID(), settings, store, app, AlwaysOpenSchedule{}, memCodec{}, nil, clock.Now)
	s.Connect(resp)
	return s, store, resp
}

func inboundLogon(seq int, heartBtInt int) *Message {
	m := NewMessage(MsgTypeLogon)
	m.Header.BeginString = "FIX.4.4"
	m.Header.SenderCompID = "CLIENT"
	m.Header.TargetCompID = "SERVER"
	m.Header.MsgSeqNum = seq
	m.Header.HeartBtInt = heartBtInt
	m.Header.SendingTime = time.Now()
	return m
}

func inboundApp(seq int, sendingTime time.Time) *Message {
	m := NewMessage("D")
	m.Header.BeginString = "FIX.4.4"
	m.Header.SenderCompID = "CLIENT"
	m.Header.TargetCompID = "SERVER"
	m.Header.MsgSeqNum = seq
	m.Header.SendingTime = sendingTime
	return m
}
