package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/fixsession/internal/fixgateway/domain"
	"gorm.io/gorm"
)

// GormFixRepository 实现 domain.FixRepository。
type GormFixRepository struct {
	db *gorm.DB
}

func NewGormFixRepository(db *gorm.DB) domain.FixRepository {
	return &GormFixRepository{db: db}
}

func (r *GormFixRepository) GetSession(ctx context.Context, sessionID string) (*domain.FixSession, error) {
	var model FixSessionModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainSession(&model), nil
}

func (r *GormFixRepository) SaveSession(ctx context.Context, session *domain.FixSession) error {
	model := fromDomainSession(session)

	var existing FixSessionModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", session.SessionID).First(&existing).Error; err == nil {
		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
	}

	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormFixRepository) ListActiveSessions(ctx context.Context) ([]*domain.FixSession, error) {
	var models []FixSessionModel
	if err := r.db.WithContext(ctx).Where("status = ?", string(domain.SessionStatusLoggedOn)).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.FixSession, 0, len(models))
	for i := range models {
		out = append(out, toDomainSession(&models[i]))
	}
	return out, nil
}

// GormMessageRepository 实现 domain.MessageRepository，归档收发的原始报文。
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) domain.MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) SaveMessage(ctx context.Context, rec *domain.MessageRecord) error {
	model := &FixMessageModel{
		SessionID: rec.SessionID,
		Seq:       rec.Seq,
		Direction: rec.Direction,
		MsgType:   rec.MsgType,
		Raw:       rec.Raw,
		Timestamp: rec.Timestamp,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormMessageRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]*domain.MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []FixMessageModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq desc").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.MessageRecord, 0, len(models))
	for _, m := range models {
		out = append(out, &domain.MessageRecord{
			SessionID: m.SessionID,
			Seq:       m.Seq,
			Direction: m.Direction,
			MsgType:   m.MsgType,
			Raw:       m.Raw,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}
