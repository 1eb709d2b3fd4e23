package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/http/middleware"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

var testTokens = auth.NewTokenIssuer("handlers-test-secret", time.Hour)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
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

// newRouter mounts the handlers the way the production router does, minus
// the observability middleware.
func newRouter(svc Services) *gin.Engine {
	h := New(svc, Options{WebhookMaxBytes: 1 << 10})
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Authenticate(testTokens, "auth_token"),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}),
	)

	r.POST("/api/stripe/webhook", h.StripeWebhook)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)

	r.GET("/patterns", h.ListPatterns)
	r.GET("/patterns/featured", h.FeaturedPatterns)
	r.GET("/patterns/slug/:slug", h.GetPatternBySlug)
	r.GET("/patterns/:id", h.GetPattern)
	r.GET("/categories", h.ListCategories)
	r.POST("/chat/messages", h.PostChatMessage)
	r.GET("/chat/sessions/:id/messages", h.ChatHistory)

	user := r.Group("", middleware.RequireAuth())
	user.POST("/checkout/sessions", h.CreateCheckoutSession)
	user.GET("/purchases", h.ListPurchases)
	user.GET("/patterns/:id/purchased", h.HasPurchased)
	user.GET("/patterns/:id/download", h.DownloadPattern)

	admin := r.Group("/admin", middleware.RequireAdmin())
	admin.GET("/patterns", h.AdminListPatterns)
	admin.POST("/patterns", h.AdminCreatePattern)
	admin.PUT("/patterns/:id", h.AdminUpdatePattern)
	admin.DELETE("/patterns/:id", h.AdminDeletePattern)
	admin.GET("/categories", h.AdminListCategories)
	admin.POST("/categories", h.AdminCreateCategory)
	admin.POST("/uploads", h.AdminUpload)
	admin.POST("/purchases/reconcile", h.AdminReconcile)
	return r
}

func tokenFor(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	tok, _, err := testTokens.Issue(&auth.Identity{UserID: userID, Email: fmt.Sprintf("user%d@example.com", userID), Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends a request with an optional JSON body and bearer token.
func do(r http.Handler, method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code || er.RequestID == "" {
		t.Fatalf("error body = %+v, want code %q", er, code)
	}
}

func seedUser(t *testing.T, db *gorm.DB, id int64, role domain.Role) {
	t.Helper()
	u := &domain.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), PasswordHash: "x", Name: "Quilter", Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func seedPattern(t *testing.T, db *gorm.DB, p domain.Pattern) *domain.Pattern {
	t.Helper()
	if p.Description == "" {
		p.Description = "Pieced blocks with a scrappy border."
	}
	if p.Difficulty == "" {
		p.Difficulty = domain.DifficultyBeginner
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed pattern: %v", err)
	}
	return &p
}

//
// Stubs
//

type stubCheckout struct {
	url    string
	err    error
	caller *auth.Identity
	id     int64
	origin string
	idem   string
}

func (s *stubCheckout) CreateSession(_ context.Context, caller *auth.Identity, patternID int64, origin, idemKey string) (string, error) {
	s.caller, s.id, s.origin, s.idem = caller, patternID, origin, idemKey
	return s.url, s.err
}

type stubWebhooks struct {
	outcome domain.WebhookOutcome
	err     error
	calls   int
	payload []byte
	sig     string
}

func (s *stubWebhooks) Handle(_ context.Context, payload []byte, sig string) (domain.WebhookOutcome, error) {
	s.calls++
	s.payload, s.sig = payload, sig
	return s.outcome, s.err
}

type stubAssistant struct {
	reply   *domain.ChatMessage
	err     error
	history []domain.ChatMessage
	caller  *auth.Identity
	limit   int
}

func (s *stubAssistant) Reply(_ context.Context, caller *auth.Identity, sessionID, message string) (*domain.ChatMessage, error) {
	s.caller = caller
	if s.err != nil {
		return nil, s.err
	}
	m := *s.reply
	m.SessionID = sessionID
	return &m, nil
}

func (s *stubAssistant) History(_ context.Context, _ string, limit int) ([]domain.ChatMessage, error) {
	s.limit = limit
	return s.history, s.err
}

type stubUploads struct {
	err         error
	filename    string
	contentType string
	size        int64
	body        []byte
}

func (s *stubUploads) Upload(_ context.Context, _ *auth.Identity, filename, contentType string, size int64, body io.Reader) (*storage.Object, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.filename, s.contentType, s.size = filename, contentType, size
	s.body, _ = io.ReadAll(body)
	return &storage.Object{Key: "pdfs/fixed.pdf", URL: "https://cdn.example.com/patterns/pdfs/fixed.pdf"}, nil
}
