package handlers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/http/middleware"
	"github.com/tbourn/quilt-shop-backend/internal/services"
	"github.com/tbourn/quilt-shop-backend/internal/storage"
	"github.com/tbourn/quilt-shop-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AccountService registers and signs in storefront users.
type AccountService interface {
	Register(ctx context.Context, email, password, name string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Me(ctx context.Context, caller *auth.Identity) (*domain.User, error)
}

// CatalogService serves the public catalog and the admin write paths.
type CatalogService interface {
	List(ctx context.Context, page, pageSize int) ([]domain.Pattern, int64, error)
	Featured(ctx context.Context) ([]domain.Pattern, error)
	Get(ctx context.Context, id int64) (*domain.Pattern, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Pattern, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	// Stats returns the active pattern count and the latest update time.
	Stats(ctx context.Context) (int64, *time.Time, error)

	AdminList(ctx context.Context, caller *auth.Identity) ([]domain.Pattern, error)
	Create(ctx context.Context, caller *auth.Identity, in services.PatternInput) (*domain.Pattern, error)
	Update(ctx context.Context, caller *auth.Identity, id int64, in services.PatternPatch) (*domain.Pattern, error)
	Deactivate(ctx context.Context, caller *auth.Identity, id int64) error
	AdminCategories(ctx context.Context, caller *auth.Identity) ([]domain.Category, error)
	CreateCategory(ctx context.Context, caller *auth.Identity, in services.CategoryInput) (*domain.Category, error)
}

// CheckoutService opens hosted checkout sessions.
type CheckoutService interface {
	CreateSession(ctx context.Context, caller *auth.Identity, patternID int64, origin, idemKey string) (string, error)
}

// PurchaseService reads the purchase ledger and delivers entitled files.
type PurchaseService interface {
	HasPurchased(ctx context.Context, caller *auth.Identity, patternID int64) (bool, error)
	ListUserPurchases(ctx context.Context, caller *auth.Identity) ([]domain.Purchase, error)
	Stats(ctx context.Context, caller *auth.Identity) (int64, *time.Time, error)
	Download(ctx context.Context, caller *auth.Identity, patternID int64) (*services.Download, error)
	ReconcileSession(ctx context.Context, caller *auth.Identity, sessionID string) (*domain.Purchase, error)
}

// AssistantService answers chat messages.
type AssistantService interface {
	Reply(ctx context.Context, caller *auth.Identity, sessionID, message string) (*domain.ChatMessage, error)
	History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}

// UploadService stores admin uploads.
type UploadService interface {
	Upload(ctx context.Context, caller *auth.Identity, filename, contentType string, size int64, body io.Reader) (*storage.Object, error)
}

// WebhookService verifies and applies payment processor events.
type WebhookService interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (domain.WebhookOutcome, error)
}

//
// Handler wiring
//

// Services bundles the collaborators the handlers call. Any field may be nil
// when the matching routes are not mounted.
type Services struct {
	Accounts  AccountService
	Catalog   CatalogService
	Checkout  CheckoutService
	Purchases PurchaseService
	Assistant AssistantService
	Uploads   UploadService
	Webhooks  WebhookService
}

// Options carries transport settings.
type Options struct {
	CookieName      string // session cookie; defaults to "auth_token"
	CookieSecure    bool
	WebhookMaxBytes int64 // defaults to 64 KiB
}

// Handlers groups the storefront endpoints.
type Handlers struct {
	svc  Services
	opts Options
}

// New constructs Handlers bound to the given services.
func New(svc Services, opts Options) *Handlers {
	if opts.CookieName == "" {
		opts.CookieName = "auth_token"
	}
	if opts.WebhookMaxBytes <= 0 {
		opts.WebhookMaxBytes = 64 << 10
	}
	return &Handlers{svc: svc, opts: opts}
}

//
// Helpers
//

// caller returns the identity attached by middleware.Authenticate, or nil.
func caller(c *gin.Context) *auth.Identity {
	return middleware.IdentityFrom(c)
}

// pathID parses a positive integer path parameter. Malformed ids are
// reported as 0 so services reject them uniformly.
func pathID(c *gin.Context, name string) int64 {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
	)
}

// notModified sets a weak ETag built from a collection's size and newest
// update and reports whether the request's If-None-Match already matches.
func notModified(c *gin.Context, kind string, count int64, maxTS *time.Time, extra ...int) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d`, kind, count, ts)
	for _, n := range extra {
		etag += ":" + strconv.Itoa(n)
	}
	etag += `"`
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}
