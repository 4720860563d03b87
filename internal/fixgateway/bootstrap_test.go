package fixgateway

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixgateway/application"
	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"github.com/wyfcoding/fixsession/internal/fixsession"
	"github.com/wyfcoding/fixsession/pkg/config"
)

type stubStore struct{ created time.Time }

func (s *stubStore) GetNextSenderMsgSeqNum(context.Context) (int, error) { return 1, nil }
func (s *stubStore) SetNextSenderMsgSeqNum(context.Context, int) error  { return nil }
func (s *stubStore) IncrNextSenderMsgSeqNum(context.Context) error      { return nil }
func (s *stubStore) GetNextTargetMsgSeqNum(context.Context) (int, error) { return 1, nil }
func (s *stubStore) SetNextTargetMsgSeqNum(context.Context, int) error  { return nil }
func (s *stubStore) IncrNextTargetMsgSeqNum(context.Context) error      { return nil }
func (s *stubStore) Get(context.Context, int, int) ([]fixsession.StoredMessage, error) {
	return nil, nil
}
func (s *stubStore) Set(context.Context, int, []byte) error          { return nil }
func (s *stubStore) Refresh(context.Context) error                   { return nil }
func (s *stubStore) Reset(context.Context) error                     { return nil }
func (s *stubStore) CreationTime(context.Context) (time.Time, error) { return s.created, nil }
func (s *stubStore) Close() error                                    { return nil }

type stubRepo struct{ sessions map[string]*domain.FixSession }

func (r *stubRepo) GetSession(_ context.Context, id string) (*domain.FixSession, error) {
	rec, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rec, nil
}
func (r *stubRepo) SaveSession(_ context.Context, session *domain.FixSession) error {
	r.sessions[session.SessionID] = session
	return nil
}
func (r *stubRepo) ListActiveSessions(context.Context) ([]*domain.FixSession, error) {
	out := make([]*domain.FixSession, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec)
	}
	return out, nil
}

func newStubService() *application.FixApplicationService {
	repo := &stubRepo{sessions: make(map[string]*domain.FixSession)}
	newStore := func(fixsession.SessionID) (fixsession.MessageStore, error) {
		return &stubStore{created: time.Now()}, nil
	}
	return application.NewFixApplicationService(repo, nil, nil, fixsession.AlwaysOpenSchedule{}, nil, newStore, nil)
}

func TestRegisterSessionsFromConfigSplitsAcceptorsAndInitiators(t *testing.T) {
	svc := newStubService()
	cfg := []config.FixSessionConfig{
		{SenderCompID: "US", TargetCompID: "THEM", Initiator: false},
		{SenderCompID: "US", TargetCompID: "OTHER", Initiator: true, TargetAddress: "127.0.0.1:5001"},
	}

	acceptors, initiators, err := RegisterSessionsFromConfig(context.Background(), svc, cfg)
	if err != nil {
		t.Fatalf("RegisterSessionsFromConfig: %v", err)
	}
	if len(acceptors) != 1 {
		t.Fatalf("acceptors = %d, want 1", len(acceptors))
	}
	if len(initiators) != 1 {
		t.Fatalf("initiators = %d, want 1", len(initiators))
	}
	if initiators[0].Address != "127.0.0.1:5001" {
		t.Fatalf("initiator address = %s, want 127.0.0.1:5001", initiators[0].Address)
	}
}

func TestRegisterSessionsFromConfigRejectsInitiatorWithoutAddress(t *testing.T) {
	svc := newStubService()
	cfg := []config.FixSessionConfig{
		{SenderCompID: "US", TargetCompID: "THEM", Initiator: true},
	}

	if _, _, err := RegisterSessionsFromConfig(context.Background(), svc, cfg); err == nil {
		t.Fatal("expected an error for an initiator session with no target_address")
	}
}

func TestRegisterSessionsFromConfigDefaultsBeginString(t *testing.T) {
	svc := newStubService()
	cfg := []config.FixSessionConfig{
		{SenderCompID: "US", TargetCompID: "THEM"},
	}

	acceptors, _, err := RegisterSessionsFromConfig(context.Background(), svc, cfg)
	if err != nil {
		t.Fatalf("RegisterSessionsFromConfig: %v", err)
	}
	if acceptors[0].ID.BeginString != defaultBeginString {
		t.Fatalf("BeginString = %s, want %s", acceptors[0].ID.BeginString, defaultBeginString)
	}
}
