package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// CreateCategory inserts a category; a reused slug yields ErrDuplicate.
func CreateCategory(ctx context.Context, db *gorm.DB, name, slug, description string) (*domain.Category, error) {
	c := &domain.Category{
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// GetCategory loads a category by id or ErrNotFound.
func GetCategory(ctx context.Context, db *gorm.DB, id int64) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
