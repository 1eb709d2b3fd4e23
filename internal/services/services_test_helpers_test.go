package services

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/llm"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id int64, role domain.Role) *auth.Identity {
	t.Helper()
	u := &domain.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), PasswordHash: "x", Name: "Quilter", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return auth.IdentityOf(u)
}

func seedPattern(t *testing.T, db *gorm.DB, id int64, title string, price int64, active bool) *domain.Pattern {
	t.Helper()
	p := &domain.Pattern{
		ID:          id,
		Title:       title,
		Slug:        Slugify(title),
		Description: "A " + title + " quilt pattern with pieced blocks.",
		Price:       price,
		Difficulty:  domain.DifficultyIntermediate,
		Active:      active,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed pattern: %v", err)
	}
	return p
}

func countPurchases(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Purchase{}).Count(&n).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	return n
}

var (
	_ CheckoutProcessor = (*payments.Client)(nil)
	_ EventVerifier     = (*payments.Client)(nil)
	_ SessionFetcher    = (*payments.Client)(nil)
	_ Presigner         = (*storage.S3Store)(nil)
	_ ObjectPutter      = (*storage.S3Store)(nil)
	_ llm.Completer     = (*llm.OpenAI)(nil)
)

// ----- fakes -----

type fakeProcessor struct {
	got  []payments.CheckoutRequest
	sess *payments.Session
	err  error
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.Session, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

type fakeVerifier struct {
	evt *payments.Event
	err error
}

func (f *fakeVerifier) VerifyEvent([]byte, string) (*payments.Event, error) { return f.evt, f.err }

type fakeSessions struct {
	sess *payments.CheckoutSession
	err  error
}

func (f *fakeSessions) GetSession(context.Context, string) (*payments.CheckoutSession, error) {
	return f.sess, f.err
}

type fakePresigner struct {
	key string
	err error
}

func (f *fakePresigner) PresignGet(_ context.Context, key string) (string, time.Time, error) {
	f.key = key
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "https://files.example.com/" + key + "?sig=1", time.Unix(1700000600, 0), nil
}

type fakeCompleter struct {
	got   []llm.Message
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

type fakePutter struct {
	folder, ext, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) Put(_ context.Context, folder, ext string, body io.Reader, _ int64, contentType string) (*storage.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.folder, f.ext, f.contentType = folder, ext, contentType
	f.body, _ = io.ReadAll(body)
	key := folder + "/fixed" + ext
	return &storage.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func completedSession(id string, userID, patternID, amount int64) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:              id,
		PaymentIntentID: "pi_" + id,
		AmountTotal:     amount,
		Paid:            true,
		Metadata: map[string]string{
			payments.MetaUserID:    fmt.Sprint(userID),
			payments.MetaPatternID: fmt.Sprint(patternID),
		},
	}
}
