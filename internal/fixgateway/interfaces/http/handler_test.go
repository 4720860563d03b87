package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fixsession/internal/fixgateway/application"
	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"github.com/wyfcoding/fixsession/internal/fixsession"
)

type fakeStore struct{ created time.Time }

func (s *fakeStore) GetNextSenderMsgSeqNum(context.Context) (int, error)     { return 1, nil }
func (s *fakeStore) SetNextSenderMsgSeqNum(context.Context, int) error      { return nil }
func (s *fakeStore) IncrNextSenderMsgSeqNum(context.Context) error          { return nil }
func (s *fakeStore) GetNextTargetMsgSeqNum(context.Context) (int, error)     { return 1, nil }
func (s *fakeStore) SetNextTargetMsgSeqNum(context.Context, int) error      { return nil }
func (s *fakeStore) IncrNextTargetMsgSeqNum(context.Context) error          { return nil }
func (s *fakeStore) Get(context.Context, int, int) ([]fixsession.StoredMessage, error) {
	return nil, nil
}
func (s *fakeStore) Set(context.Context, int, []byte) error          { return nil }
func (s *fakeStore) Refresh(context.Context) error                   { return nil }
func (s *fakeStore) Reset(context.Context) error                     { return nil }
func (s *fakeStore) CreationTime(context.Context) (time.Time, error) { return s.created, nil }
func (s *fakeStore) Close() error                                    { return nil }

type fakeRepo struct{ sessions map[string]*domain.FixSession }

func (r *fakeRepo) GetSession(_ context.Context, id string) (*domain.FixSession, error) {
	rec, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rec, nil
}
func (r *fakeRepo) SaveSession(_ context.Context, session *domain.FixSession) error {
	r.sessions[session.SessionID] = session
	return nil
}
func (r *fakeRepo) ListActiveSessions(context.Context) ([]*domain.FixSession, error) {
	out := make([]*domain.FixSession, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec)
	}
	return out, nil
}

func newTestHandler(t *testing.T) (*SessionHandler, fixsession.SessionID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &fakeRepo{sessions: make(map[string]*domain.FixSession)}
	newStore := func(fixsession.SessionID) (fixsession.MessageStore, error) {
		return &fakeStore{created: time.Now()}, nil
	}
	svc := application.NewFixApplicationService(repo, nil, nil, fixsession.AlwaysOpenSchedule{}, nil, newStore, nil)

	id := fixsession.SessionID{BeginString: "FIX.4.2", SenderCompID: "BUYER", TargetCompID: "SELLER"}
	if _, err := svc.RegisterSession(context.Background(), id, fixsession.DefaultSettings()); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	return NewSessionHandler(svc), id
}

func TestListSessionsReturnsRegistered(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := gin.New()
	handler.RegisterRoutes(router.Group(""))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fix/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Sessions []map[string]any `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v, body=%s", err, w.Body.String())
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1, body=%s", len(resp.Sessions), w.Body.String())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := gin.New()
	handler.RegisterRoutes(router.Group(""))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fix/sessions/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestForceResendRequestRequiresBeginSeq(t *testing.T) {
	handler, id := newTestHandler(t)
	router := gin.New()
	handler.RegisterRoutes(router.Group(""))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fix/sessions/"+url.PathEscape(id.String())+"/resend", nil)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a missing body, body=%s", w.Code, w.Body.String())
	}
}
