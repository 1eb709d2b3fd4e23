// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// CreateUser inserts a user. Emails are stored lowercased; a second account
// with the same email yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, email, passwordHash, name string, role domain.Role) (*domain.User, error) {
	u := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUserByEmail loads a user by (case-insensitive) email or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID loads a user by primary key or ErrNotFound.
func GetUserByID(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastSignedIn stamps the user's last successful login.
func TouchLastSignedIn(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("last_signed_in_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing
// account with that email. The password of an existing account is left as is.
func EnsureAdmin(ctx context.Context, db *gorm.DB, email, passwordHash, name string) (*domain.User, error) {
	u, err := GetUserByEmail(ctx, db, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return CreateUser(ctx, db, email, passwordHash, name, domain.RoleAdmin)
	case err != nil:
		return nil, err
	}
	if u.Role != domain.RoleAdmin {
		if err := db.WithContext(ctx).Model(u).Update("role", domain.RoleAdmin).Error; err != nil {
			return nil, err
		}
		u.Role = domain.RoleAdmin
	}
	return u, nil
}
