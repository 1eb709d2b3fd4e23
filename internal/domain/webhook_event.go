package domain

import "time"

// WebhookOutcome records what the receiver did with a verified event.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookTest      WebhookOutcome = "test"
	WebhookFailed    WebhookOutcome = "failed"
)

// WebhookEvent is an audit row for a processor event whose signature has been
// verified. Redeliveries update the same row, keyed by EventID.
//
// Rows are written only after verification, so an unsigned or tampered
// request never leaves a trace here.
type WebhookEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	EventID     string         `gorm:"size:255;not null;uniqueIndex:ux_webhook_events_event"`
	Type        string         `gorm:"size:128;not null;index"`
	Outcome     WebhookOutcome `gorm:"size:16;not null"`
	Error       string         `gorm:"type:text"`
	Deliveries  int            `gorm:"not null;default:1"`
	ReceivedAt  time.Time      `gorm:"not null"`
	ProcessedAt time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookEvent) TableName() string { return "webhook_events" }
