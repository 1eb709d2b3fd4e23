// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// PatternsStats returns the number of active patterns and the greatest
// UpdatedAt among them. When there are none, maxUpdatedAt is nil.
func PatternsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Pattern{}).Where("active = ?", true)
	return latest(q)
}

// PurchasesStats returns the number of a user's completed purchases and the
// greatest UpdatedAt among them and the patterns they reference, since the
// listing embeds pattern fields.
func PurchasesStats(ctx context.Context, db *gorm.DB, userID int64) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Purchase{}).
		Where("user_id = ? AND status = ?", userID, domain.PurchaseCompleted)
	count, maxUpdatedAt, err = latest(q)
	if err != nil || count == 0 {
		return count, maxUpdatedAt, err
	}

	var row struct {
		UpdatedAt time.Time
	}
	err = db.WithContext(ctx).Model(&domain.Purchase{}).
		Select("patterns.updated_at").
		Joins("JOIN patterns ON patterns.id = purchases.pattern_id").
		Where("purchases.user_id = ? AND purchases.status = ?", userID, domain.PurchaseCompleted).
		Order("patterns.updated_at DESC").Limit(1).
		Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	if row.UpdatedAt.After(*maxUpdatedAt) {
		maxUpdatedAt = &row.UpdatedAt
	}
	return count, maxUpdatedAt, nil
}

func latest(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
