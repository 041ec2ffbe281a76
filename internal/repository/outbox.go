package repository

import (
	"context"
	"time"

	"academy-storefront/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository interface {
	Add(ctx context.Context, event *model.OutboxEvent) error
	Pending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

type outboxRepositoryImpl struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepositoryImpl{db: db}
}

func (r *outboxRepositoryImpl) Add(ctx context.Context, event *model.OutboxEvent) error {
	if event.Status == "" {
		event.Status = model.OutboxPending
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *outboxRepositoryImpl) Pending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepositoryImpl) MarkPublished(ctx context.Context, eventID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.OutboxPublished,
			"published_at": &now,
			"last_error":   "",
		}).Error
}

func (r *outboxRepositoryImpl) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}
