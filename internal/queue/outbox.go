package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Outbox records events locally so an order is never lost because the broker
// was down while it was placed.
type Outbox struct {
	repo repository.OutboxRepository
	now  func() time.Time
}

func NewOutbox(repo repository.OutboxRepository) *Outbox {
	return &Outbox{repo: repo, now: time.Now}
}

func (o *Outbox) OrderCreated(ctx context.Context, order *model.Order) error {
	eventID := uuid.NewString()
	payload, err := json.Marshal(NewOrderCreatedEvent(eventID, order, o.now()))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", EventOrderCreated, err)
	}

	return o.repo.Add(ctx, &model.OutboxEvent{
		EventID:   eventID,
		EventType: EventOrderCreated,
		Payload:   datatypes.JSON(payload),
		Status:    model.OutboxPending,
	})
}

// Relay moves pending outbox rows to the broker.
type Relay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	logger    Logger
	interval  time.Duration
	batch     int
}

func NewRelay(repo repository.OutboxRepository, publisher Publisher, logger Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batch:     50,
	}
}

// Flush publishes one batch and returns how many events went out. A failed
// publish is recorded on the row and retried on the next flush.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.repo.Pending(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	sent := 0
	for _, ev := range events {
		err := r.publisher.Publish(ctx, Message{
			ID:        ev.EventID,
			Type:      ev.EventType,
			Body:      []byte(ev.Payload),
			Timestamp: ev.CreatedAt,
		})
		if err != nil {
			if merr := r.repo.MarkFailed(ctx, ev.EventID, err); merr != nil {
				r.logger.Warnf("outbox: mark %s failed: %v", ev.EventID, merr)
			}
			// the broker is likely down; leave the rest for the next tick
			return sent, err
		}
		if err := r.repo.MarkPublished(ctx, ev.EventID); err != nil {
			r.logger.Warnf("outbox: mark %s published: %v", ev.EventID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Run flushes on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if n, err := r.Flush(ctx); err != nil {
			r.logger.Warnf("outbox: flush: %v", err)
		} else if n > 0 {
			r.logger.Infof("outbox: published %d events", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
