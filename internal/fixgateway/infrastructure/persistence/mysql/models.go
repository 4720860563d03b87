// Package mysql 提供会话元数据、报文归档与 MessageStore 的 gorm 实现。
package mysql

import (
	"time"

	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"gorm.io/gorm"
)

// FixSessionModel 会话元数据表映射。
type FixSessionModel struct {
	gorm.Model
	SessionID     string    `gorm:"column:session_id;type:varchar(128);uniqueIndex;not null"`
	BeginString   string    `gorm:"column:begin_string;type:varchar(16);not null"`
	SenderCompID  string    `gorm:"column:sender_comp_id;type:varchar(64);not null"`
	TargetCompID  string    `gorm:"column:target_comp_id;type:varchar(64);not null"`
	Status        string    `gorm:"column:status;type:varchar(16)"`
	LastMsgSeqIn  int       `gorm:"column:last_msg_seq_in"`
	LastMsgSeqOut int       `gorm:"column:last_msg_seq_out"`
	LastActiveAt  time.Time `gorm:"column:last_active_at"`
}

func (FixSessionModel) TableName() string { return "fix_sessions" }

func toDomainSession(m *FixSessionModel) *domain.FixSession {
	return &domain.FixSession{
		SessionID:     m.SessionID,
		BeginString:   m.BeginString,
		SenderCompID:  m.SenderCompID,
		TargetCompID:  m.TargetCompID,
		Status:        domain.SessionStatus(m.Status),
		LastMsgSeqIn:  m.LastMsgSeqIn,
		LastMsgSeqOut: m.LastMsgSeqOut,
		LastActiveAt:  m.LastActiveAt,
		CreatedAt:     m.CreatedAt,
	}
}

func fromDomainSession(s *domain.FixSession) *FixSessionModel {
	return &FixSessionModel{
		SessionID:     s.SessionID,
		BeginString:   s.BeginString,
		SenderCompID:  s.SenderCompID,
		TargetCompID:  s.TargetCompID,
		Status:        string(s.Status),
		LastMsgSeqIn:  s.LastMsgSeqIn,
		LastMsgSeqOut: s.LastMsgSeqOut,
		LastActiveAt:  s.LastActiveAt,
	}
}

// FixMessageModel 持久化的一条原始报文，索引键 (session_id, seq)。
type FixMessageModel struct {
	gorm.Model
	SessionID string    `gorm:"column:session_id;type:varchar(128);uniqueIndex:idx_session_seq;not null"`
	Seq       int       `gorm:"column:seq;uniqueIndex:idx_session_seq;not null"`
	Direction string    `gorm:"column:direction;type:varchar(8)"`
	MsgType   string    `gorm:"column:msg_type;type:varchar(8)"`
	Raw       []byte    `gorm:"column:raw;type:blob"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

func (FixMessageModel) TableName() string { return "fix_messages" }

// FixSessionCounterModel 持久化的序号计数器，是 MessageStore 的权威状态。
type FixSessionCounterModel struct {
	gorm.Model
	SessionID     string    `gorm:"column:session_id;type:varchar(128);uniqueIndex;not null"`
	NextSenderSeq int       `gorm:"column:next_sender_seq;not null;default:1"`
	NextTargetSeq int       `gorm:"column:next_target_seq;not null;default:1"`
	CreationTime  time.Time `gorm:"column:creation_time"`
}

func (FixSessionCounterModel) TableName() string { return "fix_session_counters" }
