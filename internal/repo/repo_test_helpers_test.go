package repo

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

// newTestDB opens a private in-memory database with every table migrated
// and foreign keys enforced.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newEmptyDB opens an in-memory database without any tables.
func newEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_empty_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id int64, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Email: email, PasswordHash: "x", Role: domain.RoleUser}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedPattern(t *testing.T, db *gorm.DB, id int64, slug string, price int64, active, featured bool) *domain.Pattern {
	t.Helper()
	p := &domain.Pattern{
		ID:          id,
		Title:       "Pattern " + slug,
		Slug:        slug,
		Description: "A pattern called " + slug,
		Price:       price,
		Difficulty:  domain.DifficultyBeginner,
		Active:      active,
		Featured:    featured,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed pattern: %v", err)
	}
	return p
}
