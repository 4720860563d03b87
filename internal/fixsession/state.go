package fixsession

import (
	"context"
	"sync"
	"time"
)

// ResendRange is the (beginSeq, endSeq, chunkEndSeq) triple describing a
// pending resend. The zero value (0,0,0) means "no resend pending".
type ResendRange struct {
	Begin    int
	End      int
	ChunkEnd int
}

// Pending reports whether a resend is currently outstanding.
func (r ResendRange) Pending() bool { return r != (ResendRange{}) }

// SessionState is the mutable record spec §3 describes: counters,
// flags, queues and timing marks, exclusively owned by one Session and
// guarded by its mutex except where a field has its own fine-grained
// lock (senderSeqLock), mirrored here as senderMu.
//
// Sequence counters are not cached here: they live in the MessageStore,
// which is authoritative (spec §3 invariant 2). SessionState only holds
// the locks that serialize access to them.
type SessionState struct {
	mu sync.Mutex

	// senderMu serializes the stamp->persist->increment sequence in
	// sendRaw. nextTargetSeq has no equivalent fine-grained lock: per the
	// source's ambiguous two-lock pattern, advancing it is guarded by mu
	// alone (held by the caller for the duration of the receive path).
	senderMu sync.Mutex

	creationTime     time.Time
	lastSentTime     time.Time
	lastReceivedTime time.Time

	heartBeatInt               int
	testRequestCounter         int
	testRequestDelayMultiplier float64

	logonSent      bool
	logonReceived  bool
	logoutSent     bool
	logoutReceived bool
	resetSent      bool
	resetReceived  bool

	logoutReason string

	resendRange ResendRange

	inboundQueue map[int]*Message

	logonAttempts    int
	lastLogonAttempt time.Time

	clock func() time.Time
}

// NewSessionState creates a SessionState with counters starting at 1
// (caller's MessageStore is expected to already report 1 for a fresh
// session) and creationTime set to now.
func NewSessionState(clock func() time.Time, testRequestDelayMultiplier float64) *SessionState {
	if clock == nil {
		clock = time.Now
	}
	if testRequestDelayMultiplier <= 0 || testRequestDelayMultiplier > 1 {
		testRequestDelayMultiplier = 0.5
	}
	now := clock()
	return &SessionState{
		creationTime:               now,
		lastSentTime:               now,
		lastReceivedTime:           now,
		testRequestDelayMultiplier: testRequestDelayMultiplier,
		inboundQueue:               make(map[int]*Message),
		clock:                      clock,
	}
}

func (s *SessionState) now() time.Time { return s.clock() }

// reset implements spec §3 invariant 6: counters return to 1 (via the
// store, by the caller), all flags clear, creationTime updates.
func (s *SessionState) reset(ctx context.Context, store MessageStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.Reset(ctx); err != nil {
		return err
	}
	s.logonSent = false
	s.logonReceived = false
	s.logoutSent = false
	s.logoutReceived = false
	s.resetSent = false
	s.resetReceived = false
	s.logoutReason = ""
	s.resendRange = ResendRange{}
	s.inboundQueue = make(map[int]*Message)
	s.testRequestCounter = 0
	s.creationTime = s.now()
	return nil
}

func (s *SessionState) isLoggedOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logonSent && s.logonReceived
}

func (s *SessionState) logonReceivedFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logonReceived
}

func (s *SessionState) heartBeatIntSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartBeatInt
}

func (s *SessionState) markLastReceived(t time.Time) {
	s.mu.Lock()
	s.lastReceivedTime = t
	s.testRequestCounter = 0
	s.mu.Unlock()
}

func (s *SessionState) markLastSent(t time.Time) {
	s.mu.Lock()
	s.lastSentTime = t
	s.mu.Unlock()
}

func (s *SessionState) enqueue(msg *Message) {
	s.mu.Lock()
	s.inboundQueue[msg.Header.MsgSeqNum] = msg
	s.mu.Unlock()
}

func (s *SessionState) dequeue(seq int) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.inboundQueue[seq]
	if ok {
		delete(s.inboundQueue, seq)
	}
	return m, ok
}

func (s *SessionState) setResendRange(r ResendRange) {
	s.mu.Lock()
	s.resendRange = r
	s.mu.Unlock()
}

func (s *SessionState) getResendRange() ResendRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resendRange
}

func (s *SessionState) clearResendRange() {
	s.setResendRange(ResendRange{})
}
