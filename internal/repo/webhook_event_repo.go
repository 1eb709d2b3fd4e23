// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the audit log of verified processor
// webhook events.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// RecordWebhookEvent inserts an audit row for eventID or, on redelivery,
// bumps the delivery counter and overwrites outcome/error with the latest
// attempt.
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, eventID, eventType string, outcome domain.WebhookOutcome, errText string, receivedAt time.Time) error {
	now := time.Now().UTC()
	ev := &domain.WebhookEvent{
		EventID:     eventID,
		Type:        eventType,
		Outcome:     outcome,
		Error:       errText,
		Deliveries:  1,
		ReceivedAt:  receivedAt.UTC(),
		ProcessedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"outcome":      outcome,
			"error":        errText,
			"processed_at": now,
			"deliveries":   gorm.Expr("webhook_events.deliveries + 1"),
		}),
	}).Create(ev).Error
}

// GetWebhookEvent loads the audit row for an event id or ErrNotFound.
func GetWebhookEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	if err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
