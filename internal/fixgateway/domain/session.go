// Package domain 提供 FIX 会话网关的核心模型：会话元数据、持久化端口与领域事件。
// 会话状态机本身（序号、重传、心跳）由 internal/fixsession 实现，本包只负责
// 把一个会话标识为一条可被持久化、可被网关对外暴露的业务记录。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// SessionStatus 会话生命周期状态
type SessionStatus string

const (
	SessionStatusPending      SessionStatus = "PENDING"
	SessionStatusLoggedOn     SessionStatus = "LOGGED_ON"
	SessionStatusLoggedOut    SessionStatus = "LOGGED_OUT"
	SessionStatusDisconnected SessionStatus = "DISCONNECTED"
)

// FixSession 是会话的持久化元数据视图：标识、最近序号、最近活跃时间、状态。
// 真正的序号/重传权威状态在 fixsession.MessageStore 中，这里只是供 HTTP/gRPC
// 接口和运维排查使用的只读镜像，在每次状态变化时由应用层刷新。
type FixSession struct {
	SessionID     string
	BeginString   string
	SenderCompID  string
	TargetCompID  string
	Status        SessionStatus
	LastMsgSeqIn  int
	LastMsgSeqOut int
	LastActiveAt  time.Time
	CreatedAt     time.Time
}

// ToFixSessionID 把持久化记录还原为 fixsession.SessionID，供引擎查找会话用。
func (s *FixSession) ToFixSessionID() fixsession.SessionID {
	return fixsession.SessionID{
		BeginString:  s.BeginString,
		SenderCompID: s.SenderCompID,
		TargetCompID: s.TargetCompID,
	}
}

// NewFixSession 根据引擎的会话标识构造一条初始为 PENDING 的记录。
func NewFixSession(id fixsession.SessionID, now time.Time) *FixSession {
	return &FixSession{
		SessionID:    id.String(),
		BeginString:  id.BeginString,
		SenderCompID: id.SenderCompID,
		TargetCompID: id.TargetCompID,
		Status:       SessionStatusPending,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// ErrSessionNotFound 表示仓储中不存在该会话记录。
var ErrSessionNotFound = errors.New("fixgateway: session not found")

// FixRepository 是会话元数据的持久化端口，由 infrastructure/persistence 实现。
type FixRepository interface {
	GetSession(ctx context.Context, sessionID string) (*FixSession, error)
	SaveSession(ctx context.Context, session *FixSession) error
	ListActiveSessions(ctx context.Context) ([]*FixSession, error)
}

// MessageRecord 是一条已发送/已接收的原始报文记录，供 ListMessages 类查询使用。
type MessageRecord struct {
	SessionID string
	Seq       int
	Direction string // "in" or "out"
	MsgType   string
	Raw       []byte
	Timestamp time.Time
}

// MessageRepository 是原始报文查询端口，独立于 fixsession.MessageStore
// （后者只关心按序号取回用于重传，不关心方向/类型等展示字段）。
type MessageRepository interface {
	SaveMessage(ctx context.Context, rec *MessageRecord) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*MessageRecord, error)
}
