// Package application 编排 FIX 会话引擎：把 internal/fixsession 的状态机
// 和元数据持久化、报文归档、领域事件发布这些网关侧关切粘合在一起。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// EventPublisher 是领域事件的出站端口，由 infrastructure/messaging 实现。
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// StoreFactory 按会话标识构造一个 MessageStore（通常是 mysql 存储叠加 redis
// 热缓存装饰器），每个会话各自独立的序号/报文空间。
type StoreFactory func(id fixsession.SessionID) (fixsession.MessageStore, error)

// FixApplicationService 是 fixsession.Application 的具体实现，同时是
// HTTP/gRPC 接口层调用的唯一入口。sessions 按 SessionID 字符串形式缓存，
// 避免每次查询都打到仓储。
type FixApplicationService struct {
	fixsession.BaseApplication

	manager   *fixsession.SessionManager
	repo      domain.FixRepository
	msgRepo   domain.MessageRepository
	publisher EventPublisher
	logger    *slog.Logger
	schedule  fixsession.Schedule
	codec     fixsession.Codec
	newStore  StoreFactory
	clock     func() time.Time

	sessions sync.Map // string(SessionID) -> *domain.FixSession snapshot
}

// NewFixApplicationService 构造应用服务。publisher 为 nil 时事件发布静默跳过，
// 便于测试/未配置 Kafka 的环境启动。
func NewFixApplicationService(
	repo domain.FixRepository,
	msgRepo domain.MessageRepository,
	publisher EventPublisher,
	schedule fixsession.Schedule,
	codec fixsession.Codec,
	newStore StoreFactory,
	logger *slog.Logger,
) *FixApplicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixApplicationService{
		manager:   fixsession.NewSessionManager(),
		repo:      repo,
		msgRepo:   msgRepo,
		publisher: publisher,
		schedule:  schedule,
		codec:     codec,
		newStore:  newStore,
		clock:     time.Now,
		logger:    logger,
	}
}

// RegisterSession 创建（或返回已存在的）引擎会话，并把初始元数据落盘。
// 调用方（TCP 监听器/测试）负责随后通过 session.Connect 挂接传输层。
func (a *FixApplicationService) RegisterSession(ctx context.Context, id fixsession.SessionID, settings fixsession.Settings) (*fixsession.Session, error) {
	if existing, ok := a.manager.LookUp(id); ok {
		return existing, nil
	}

	store, err := a.newStore(id)
	if err != nil {
		return nil, fmt.Errorf("create message store: %w", err)
	}

	session := fixsession.NewSession(id, settings, store, a, a.schedule, a.codec, a.logger, a.clock)
	a.manager.Register(session)

	rec := domain.NewFixSession(id, a.clock())
	if err := a.repo.SaveSession(ctx, rec); err != nil {
		a.logger.ErrorContext(ctx, "failed to persist new session", "session", id.String(), "error", err)
	}
	a.sessions.Store(id.String(), rec)

	return session, nil
}

// Manager exposes the session registry to the transport layer, which
// needs it to resolve an inbound connection's counterparty to a
// registered Session before any identity is known on the wire.
func (a *FixApplicationService) Manager() *fixsession.SessionManager {
	return a.manager
}

// ForceLogout 管理员触发的强制登出：向对端发送 Logout 并断开连接。
func (a *FixApplicationService) ForceLogout(ctx context.Context, sessionID string, reason string) error {
	session, _, err := a.lookupByString(sessionID)
	if err != nil {
		return err
	}
	logout := fixsession.NewMessage(fixsession.MsgTypeLogout)
	logout.Header.Text = reason
	session.Send(ctx, logout)
	session.Disconnect(reason)
	return nil
}

// ForceResendRequest 管理员触发的强制补发请求，用于运维排查序号缺口。
func (a *FixApplicationService) ForceResendRequest(ctx context.Context, sessionID string, beginSeq, endSeq int) error {
	session, _, err := a.lookupByString(sessionID)
	if err != nil {
		return err
	}
	req := fixsession.NewMessage(fixsession.MsgTypeResendRequest)
	req.Header.BeginSeqNo = beginSeq
	req.Header.EndSeqNo = endSeq
	session.Send(ctx, req)
	return nil
}

// ForceTestRequest 管理员触发的即时心跳探测，跳过 LivenessEngine 的等待窗口。
func (a *FixApplicationService) ForceTestRequest(ctx context.Context, sessionID string, testReqID string) error {
	session, _, err := a.lookupByString(sessionID)
	if err != nil {
		return err
	}
	req := fixsession.NewMessage(fixsession.MsgTypeTestRequest)
	req.Header.TestReqID = testReqID
	session.Send(ctx, req)
	return nil
}

// GetSession 返回会话的持久化元数据快照，供接口层展示用。
func (a *FixApplicationService) GetSession(ctx context.Context, sessionID string) (*domain.FixSession, error) {
	if cached, ok := a.sessions.Load(sessionID); ok {
		return cached.(*domain.FixSession), nil
	}
	return a.repo.GetSession(ctx, sessionID)
}

// ListActiveSessions 返回仓储报告为活跃的会话元数据快照（由
// FixRepository.ListActiveSessions 决定；gorm 实现只返回 LOGGED_ON 状态的记录，
// 已注册但未登录的会话不在其中）。
func (a *FixApplicationService) ListActiveSessions(ctx context.Context) ([]*domain.FixSession, error) {
	return a.repo.ListActiveSessions(ctx)
}

// GetMessages 返回某会话最近归档的原始报文，用于运维排查。
func (a *FixApplicationService) GetMessages(ctx context.Context, sessionID string, limit int) ([]*domain.MessageRecord, error) {
	if a.msgRepo == nil {
		return nil, nil
	}
	return a.msgRepo.ListMessages(ctx, sessionID, limit)
}

// HeartbeatMonitor 周期性地驱动每个已注册会话的 LivenessEngine.Next()。
// 间隔固定为 1 秒，以便在 HeartBtInt 远小于分钟级的典型配置下仍能及时
// 发现超时，ctx 取消时退出。
func (a *FixApplicationService) HeartbeatMonitor(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, session := range a.manager.Sessions() {
				session.Next(ctx)
			}
		}
	}
}

// NotifyDisconnected records a transport-level disconnect (called by the
// TCP responder when the underlying connection drops outside of a
// protocol-driven Logout) and publishes SessionDisconnectedEvent.
func (a *FixApplicationService) NotifyDisconnected(ctx context.Context, sessionID fixsession.SessionID, reason string) {
	a.updateStatus(ctx, sessionID, domain.SessionStatusDisconnected)
	a.publishEvent(ctx, "fix.session.disconnected", sessionID.String(), domain.SessionDisconnectedEvent{
		SessionID:  sessionID.String(),
		Reason:     reason,
		OccurredOn: a.clock(),
	})
}

func (a *FixApplicationService) lookupByString(sessionID string) (*fixsession.Session, *domain.FixSession, error) {
	cached, ok := a.sessions.Load(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	rec := cached.(*domain.FixSession)
	session, ok := a.manager.LookUp(rec.ToFixSessionID())
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	return session, rec, nil
}

// --- fixsession.Application callbacks ---

// OnLogon 持久化登录状态并发布 SessionLoggedOnEvent。
func (a *FixApplicationService) OnLogon(sessionID fixsession.SessionID) {
	ctx := context.Background()
	a.updateStatus(ctx, sessionID, domain.SessionStatusLoggedOn)
	a.publishEvent(ctx, "fix.session.logged_on", sessionID.String(), domain.SessionLoggedOnEvent{
		SessionID:  sessionID.String(),
		OccurredOn: a.clock(),
	})
}

// OnLogout 持久化登出状态并发布 SessionLoggedOutEvent。
func (a *FixApplicationService) OnLogout(sessionID fixsession.SessionID) {
	ctx := context.Background()
	a.updateStatus(ctx, sessionID, domain.SessionStatusLoggedOut)
	a.publishEvent(ctx, "fix.session.logged_out", sessionID.String(), domain.SessionLoggedOutEvent{
		SessionID:  sessionID.String(),
		OccurredOn: a.clock(),
	})
}

// FromApp 归档入站应用报文（若配置了 MessageRepository）。
func (a *FixApplicationService) FromApp(ctx context.Context, msg *fixsession.Message, sessionID fixsession.SessionID) error {
	a.archive(ctx, sessionID, msg, "in")
	return nil
}

// FromAdmin 归档入站管理报文，并在 ResendRequest/GapFill 上发布领域事件——
// 引擎本身不对外暴露 GapFillEngine 的内部状态，这里从报文类型推断。
func (a *FixApplicationService) FromAdmin(ctx context.Context, msg *fixsession.Message, sessionID fixsession.SessionID) error {
	a.archive(ctx, sessionID, msg, "in")

	switch {
	case msg.Header.MsgType == fixsession.MsgTypeResendRequest:
		a.publishEvent(ctx, "fix.session.gap_detected", sessionID.String(), domain.GapDetectedEvent{
			SessionID:  sessionID.String(),
			Expected:   msg.Header.BeginSeqNo,
			Received:   msg.Header.EndSeqNo,
			OccurredOn: a.clock(),
		})
	case msg.Header.MsgType == fixsession.MsgTypeSequenceReset && msg.Header.GapFillFlag:
		a.publishEvent(ctx, "fix.session.resend_completed", sessionID.String(), domain.ResendCompletedEvent{
			SessionID:  sessionID.String(),
			BeginSeq:   msg.Header.MsgSeqNum,
			EndSeq:     msg.Header.NewSeqNo,
			OccurredOn: a.clock(),
		})
	}
	return nil
}

// ToApp 归档出站应用报文。
func (a *FixApplicationService) ToApp(ctx context.Context, msg *fixsession.Message, sessionID fixsession.SessionID) error {
	a.archive(ctx, sessionID, msg, "out")
	return nil
}

func (a *FixApplicationService) archive(ctx context.Context, sessionID fixsession.SessionID, msg *fixsession.Message, direction string) {
	if a.msgRepo == nil {
		return
	}
	raw, err := a.codec.Encode(msg)
	if err != nil {
		return
	}
	rec := &domain.MessageRecord{
		SessionID: sessionID.String(),
		Seq:       msg.Header.MsgSeqNum,
		Direction: direction,
		MsgType:   msg.Header.MsgType,
		Raw:       raw,
		Timestamp: a.clock(),
	}
	if err := a.msgRepo.SaveMessage(ctx, rec); err != nil {
		a.logger.WarnContext(ctx, "failed to archive message", "session", sessionID.String(), "error", err)
	}
}

func (a *FixApplicationService) updateStatus(ctx context.Context, sessionID fixsession.SessionID, status domain.SessionStatus) {
	key := sessionID.String()
	cached, ok := a.sessions.Load(key)
	var rec *domain.FixSession
	if ok {
		rec = cached.(*domain.FixSession)
	} else {
		rec = domain.NewFixSession(sessionID, a.clock())
	}
	rec.Status = status
	rec.LastActiveAt = a.clock()
	a.sessions.Store(key, rec)

	if err := a.repo.SaveSession(ctx, rec); err != nil {
		a.logger.ErrorContext(ctx, "failed to persist session status", "session", key, "error", err)
	}
}

func (a *FixApplicationService) publishEvent(ctx context.Context, topic, key string, event any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, topic, key, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish domain event", "topic", topic, "key", key, "error", err)
	}
}

var _ fixsession.Application = (*FixApplicationService)(nil)
