package mysql

import (
	"context"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMessageStore 是 fixsession.MessageStore 的 gorm 实现，绑定到单个
// 会话标识：计数器行按 session_id 唯一，报文表按 (session_id, seq) 唯一。
// 这是权威存储（spec 要求的 durable store）；Redis 装饰器在其前叠加热缓存。
type GormMessageStore struct {
	db        *gorm.DB
	sessionID string
}

// NewGormMessageStore 为给定会话打开/创建其计数器行，counters 从 1 开始。
func NewGormMessageStore(db *gorm.DB, id fixsession.SessionID) (*GormMessageStore, error) {
	s := &GormMessageStore{db: db, sessionID: id.String()}
	now := time.Now()
	counter := FixSessionCounterModel{
		SessionID:     s.sessionID,
		NextSenderSeq: 1,
		NextTargetSeq: 1,
		CreationTime:  now,
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GormMessageStore) counterRow(ctx context.Context) (*FixSessionCounterModel, error) {
	var row FixSessionCounterModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", s.sessionID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *GormMessageStore) GetNextSenderMsgSeqNum(ctx context.Context) (int, error) {
	row, err := s.counterRow(ctx)
	if err != nil {
		return 0, err
	}
	return row.NextSenderSeq, nil
}

func (s *GormMessageStore) SetNextSenderMsgSeqNum(ctx context.Context, seq int) error {
	return s.db.WithContext(ctx).Model(&FixSessionCounterModel{}).
		Where("session_id = ?", s.sessionID).
		Update("next_sender_seq", seq).Error
}

func (s *GormMessageStore) IncrNextSenderMsgSeqNum(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&FixSessionCounterModel{}).
		Where("session_id = ?", s.sessionID).
		UpdateColumn("next_sender_seq", gorm.Expr("next_sender_seq + 1")).Error
}

func (s *GormMessageStore) GetNextTargetMsgSeqNum(ctx context.Context) (int, error) {
	row, err := s.counterRow(ctx)
	if err != nil {
		return 0, err
	}
	return row.NextTargetSeq, nil
}

func (s *GormMessageStore) SetNextTargetMsgSeqNum(ctx context.Context, seq int) error {
	return s.db.WithContext(ctx).Model(&FixSessionCounterModel{}).
		Where("session_id = ?", s.sessionID).
		Update("next_target_seq", seq).Error
}

func (s *GormMessageStore) IncrNextTargetMsgSeqNum(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&FixSessionCounterModel{}).
		Where("session_id = ?", s.sessionID).
		UpdateColumn("next_target_seq", gorm.Expr("next_target_seq + 1")).Error
}

func (s *GormMessageStore) Get(ctx context.Context, begin, end int) ([]fixsession.StoredMessage, error) {
	var models []FixMessageModel
	q := s.db.WithContext(ctx).
		Where("session_id = ? AND seq >= ?", s.sessionID, begin).
		Order("seq asc")
	if end > 0 {
		q = q.Where("seq <= ?", end)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]fixsession.StoredMessage, 0, len(models))
	for _, m := range models {
		out = append(out, fixsession.StoredMessage{Seq: m.Seq, Raw: m.Raw})
	}
	return out, nil
}

func (s *GormMessageStore) Set(ctx context.Context, seq int, raw []byte) error {
	model := FixMessageModel{
		SessionID: s.sessionID,
		Seq:       seq,
		Direction: "out",
		Raw:       raw,
		Timestamp: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "seq"}},
		DoUpdates: clause.AssignmentColumns([]string{"raw", "timestamp"}),
	}).Create(&model).Error
}

// Refresh reloads in-memory state from the store. Since GormMessageStore
// caches nothing beyond the single round-trip per call, this is a no-op.
func (s *GormMessageStore) Refresh(ctx context.Context) error { return nil }

func (s *GormMessageStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&FixSessionCounterModel{}).
			Where("session_id = ?", s.sessionID).
			Updates(map[string]any{
				"next_sender_seq": 1,
				"next_target_seq": 1,
				"creation_time":   time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", s.sessionID).Delete(&FixMessageModel{}).Error
	})
}

func (s *GormMessageStore) CreationTime(ctx context.Context) (time.Time, error) {
	row, err := s.counterRow(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return row.CreationTime, nil
}

func (s *GormMessageStore) Close() error { return nil }

var _ fixsession.MessageStore = (*GormMessageStore)(nil)
