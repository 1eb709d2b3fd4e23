// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the pattern
// catalog.
//
// Public reads filter on active=true; admin reads see every row. Rows are
// never hard-deleted here: deactivation is an update of the active flag.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// CreatePattern inserts a pattern; a reused slug yields ErrDuplicate.
func CreatePattern(ctx context.Context, db *gorm.DB, p *domain.Pattern) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdatePattern applies a partial column update and returns the fresh row.
// Unknown ids yield ErrNotFound; slug collisions yield ErrDuplicate.
func UpdatePattern(ctx context.Context, db *gorm.DB, id int64, fields map[string]any) (*domain.Pattern, error) {
	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
		res := db.WithContext(ctx).Model(&domain.Pattern{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			if isDuplicate(res.Error) {
				return nil, ErrDuplicate
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return GetPattern(ctx, db, id, false)
}

// SetPatternActive flips the active flag (soft deactivate / reactivate).
func SetPatternActive(ctx context.Context, db *gorm.DB, id int64, active bool) error {
	res := db.WithContext(ctx).Model(&domain.Pattern{}).Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPattern loads a pattern by id. With activeOnly, inactive rows are
// reported as ErrNotFound.
func GetPattern(ctx context.Context, db *gorm.DB, id int64, activeOnly bool) (*domain.Pattern, error) {
	var p domain.Pattern
	q := db.WithContext(ctx).Preload("Category").Where("id = ?", id)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPatternBySlug loads an active pattern by slug or ErrNotFound.
func GetPatternBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Pattern, error) {
	var p domain.Pattern
	err := db.WithContext(ctx).Preload("Category").
		Where("slug = ? AND active = ?", slug, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountActivePatterns returns the number of purchasable patterns.
func CountActivePatterns(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Pattern{}).Where("active = ?", true).Count(&n).Error
	return n, err
}

// ListActivePatternsPage returns active patterns, newest first.
func ListActivePatternsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Pattern, error) {
	var out []domain.Pattern
	q := db.WithContext(ctx).Preload("Category").
		Where("active = ?", true).
		Order("created_at DESC, id DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListFeaturedPatterns returns up to limit patterns that are both featured
// and active, newest first.
func ListFeaturedPatterns(ctx context.Context, db *gorm.DB, limit int) ([]domain.Pattern, error) {
	var out []domain.Pattern
	err := db.WithContext(ctx).Preload("Category").
		Where("featured = ? AND active = ?", true, true).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAllPatterns returns every pattern including inactive ones (admin view).
func ListAllPatterns(ctx context.Context, db *gorm.DB) ([]domain.Pattern, error) {
	var out []domain.Pattern
	err := db.WithContext(ctx).Preload("Category").
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
