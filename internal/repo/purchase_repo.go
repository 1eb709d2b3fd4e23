// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the purchase ledger.
//
// The ledger is keyed by the processor's checkout session id. Writes go
// through UpsertCompletedPurchase, which is safe under duplicate and
// concurrent deliveries: the unique index on stripe_session_id arbitrates
// inserts, and status updates only ever move a row out of pending.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// CompletedPurchase carries the fields reconciled from a paid checkout session.
type CompletedPurchase struct {
	UserID          int64
	PatternID       int64
	SessionID       string
	PaymentIntentID string // empty when the processor did not report one
	Amount          int64
	At              time.Time
}

// UpsertCompletedPurchase records a completed purchase for in.SessionID.
//
// Outcomes:
//   - no row for the session: a completed row is inserted (created=true)
//   - a pending row: it is promoted to completed with amount/payment intent
//   - a completed or failed row: status and amount are left untouched; a
//     missing payment intent id is filled in
//
// The returned row reflects the stored state after the call.
func UpsertCompletedPurchase(ctx context.Context, db *gorm.DB, in CompletedPurchase) (*domain.Purchase, bool, error) {
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}
	var pi *string
	if in.PaymentIntentID != "" {
		v := in.PaymentIntentID
		pi = &v
	}

	var (
		out     domain.Purchase
		created bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &domain.Purchase{
			UserID:                in.UserID,
			PatternID:             in.PatternID,
			StripeSessionID:       in.SessionID,
			StripePaymentIntentID: pi,
			Amount:                in.Amount,
			Status:                domain.PurchaseCompleted,
			PurchasedAt:           at,
			UpdatedAt:             at,
		}
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "stripe_session_id"}},
				DoNothing: true,
			}).
			Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			out = *row
			return nil
		}

		// Row already existed: only non-terminal rows may advance.
		promote := map[string]any{
			"status":     domain.PurchaseCompleted,
			"amount":     in.Amount,
			"updated_at": time.Now().UTC(),
		}
		if pi != nil {
			promote["stripe_payment_intent_id"] = *pi
		}
		if err := tx.Model(&domain.Purchase{}).
			Where("stripe_session_id = ? AND status IN ?", in.SessionID, domain.OpenPurchaseStatuses()).
			Updates(promote).Error; err != nil {
			return err
		}
		if pi != nil {
			if err := tx.Model(&domain.Purchase{}).
				Where("stripe_session_id = ? AND stripe_payment_intent_id IS NULL", in.SessionID).
				Update("stripe_payment_intent_id", *pi).Error; err != nil {
				return err
			}
		}
		return tx.Where("stripe_session_id = ?", in.SessionID).First(&out).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// GetPurchaseBySession loads the ledger row for a checkout session or ErrNotFound.
func GetPurchaseBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// HasCompletedPurchase reports whether userID holds a completed purchase of patternID.
func HasCompletedPurchase(ctx context.Context, db *gorm.DB, userID, patternID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Purchase{}).
		Where("user_id = ? AND pattern_id = ? AND status = ?", userID, patternID, domain.PurchaseCompleted).
		Count(&n).Error
	return n > 0, err
}

// ListCompletedPurchases returns a user's completed purchases joined with
// their pattern, newest first. Pending and failed rows are never returned.
func ListCompletedPurchases(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Preload("Pattern").
		Where("user_id = ? AND status = ?", userID, domain.PurchaseCompleted).
		Order("purchased_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
