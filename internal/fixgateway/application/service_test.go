package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// fakeStore is a minimal in-memory fixsession.MessageStore: enough for
// RegisterSession to construct a Session, nothing more.
type fakeStore struct {
	mu         sync.Mutex
	nextSender int
	nextTarget int
	created    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextSender: 1, nextTarget: 1, created: time.Now()}
}

func (s *fakeStore) GetNextSenderMsgSeqNum(context.Context) (int, error) { return s.nextSender, nil }
func (s *fakeStore) SetNextSenderMsgSeqNum(_ context.Context, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSender = seq
	return nil
}
func (s *fakeStore) IncrNextSenderMsgSeqNum(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSender++
	return nil
}
func (s *fakeStore) GetNextTargetMsgSeqNum(context.Context) (int, error) { return s.nextTarget, nil }
func (s *fakeStore) SetNextTargetMsgSeqNum(_ context.Context, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTarget = seq
	return nil
}
func (s *fakeStore) IncrNextTargetMsgSeqNum(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTarget++
	return nil
}
func (s *fakeStore) Get(context.Context, int, int) ([]fixsession.StoredMessage, error) { return nil, nil }
func (s *fakeStore) Set(context.Context, int, []byte) error                           { return nil }
func (s *fakeStore) Refresh(context.Context) error                                    { return nil }
func (s *fakeStore) Reset(context.Context) error                                      { return nil }
func (s *fakeStore) CreationTime(context.Context) (time.Time, error)                  { return s.created, nil }
func (s *fakeStore) Close() error                                                     { return nil }

// fakeRepo is an in-memory domain.FixRepository.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.FixSession
}

func newFakeRepo() *fakeRepo { return &fakeRepo{sessions: make(map[string]*domain.FixSession)} }

func (r *fakeRepo) GetSession(_ context.Context, sessionID string) (*domain.FixSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rec, nil
}

func (r *fakeRepo) SaveSession(_ context.Context, session *domain.FixSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID] = session
	return nil
}

func (r *fakeRepo) ListActiveSessions(_ context.Context) ([]*domain.FixSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.FixSession, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec)
	}
	return out, nil
}

// fakePublisher records every published event for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func testSessionID() fixsession.SessionID {
	return fixsession.SessionID{BeginString: "FIX.4.2", SenderCompID: "BUYER", TargetCompID: "SELLER"}
}

func newTestService(repo domain.FixRepository, pub EventPublisher) *FixApplicationService {
	newStore := func(fixsession.SessionID) (fixsession.MessageStore, error) {
		return newFakeStore(), nil
	}
	return NewFixApplicationService(repo, nil, pub, fixsession.AlwaysOpenSchedule{}, nil, newStore, nil)
}

func TestRegisterSessionIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	id := testSessionID()

	s1, err := svc.RegisterSession(context.Background(), id, fixsession.DefaultSettings())
	if err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	s2, err := svc.RegisterSession(context.Background(), id, fixsession.DefaultSettings())
	if err != nil {
		t.Fatalf("RegisterSession (second call): %v", err)
	}
	if s1 != s2 {
		t.Fatal("RegisterSession should return the existing session on a repeat call, not build a new one")
	}
}

func TestGetSessionPrefersCache(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	id := testSessionID()

	if _, err := svc.RegisterSession(context.Background(), id, fixsession.DefaultSettings()); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}

	rec, err := svc.GetSession(context.Background(), id.String())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec.Status != domain.SessionStatusPending {
		t.Fatalf("Status = %s, want PENDING", rec.Status)
	}
}

func TestOnLogonPublishesEvent(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, pub)
	id := testSessionID()

	if _, err := svc.RegisterSession(context.Background(), id, fixsession.DefaultSettings()); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}

	svc.OnLogon(id)

	rec, err := svc.GetSession(context.Background(), id.String())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec.Status != domain.SessionStatusLoggedOn {
		t.Fatalf("Status = %s, want LOGGED_ON", rec.Status)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.topics) != 1 || pub.topics[0] != "fix.session.logged_on" {
		t.Fatalf("topics = %v, want [fix.session.logged_on]", pub.topics)
	}
}

func TestForceLogoutUnknownSessionErrors(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	if err := svc.ForceLogout(context.Background(), "nonexistent", "test"); err != domain.ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestPublishEventSkipsSilentlyWithNilPublisher(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	// Must not panic despite no publisher configured.
	svc.publishEvent(context.Background(), "fix.session.logged_on", "x", domain.SessionLoggedOnEvent{})
}
