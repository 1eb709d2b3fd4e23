// Package httpapi wires the HTTP transport (Gin) to the storefront handlers
// and the cross-cutting middleware: tracing, correlation ids, request-scoped
// logging with redaction, panic recovery, body limits, compression, metrics,
// authentication, idempotency keys, rate limiting, CORS and security headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/quilt-shop-backend/docs"
	"github.com/tbourn/quilt-shop-backend/internal/config"
	"github.com/tbourn/quilt-shop-backend/internal/http/handlers"
	"github.com/tbourn/quilt-shop-backend/internal/http/middleware"
)

const defaultBodyLimit int64 = 1 << 20

// Deps are the collaborators the router mounts.
type Deps struct {
	Tokens   middleware.TokenParser
	Services handlers.Services
	// Ping reports storage health for /health; nil always reports ok.
	Ping func(ctx context.Context) error
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID, then the request-scoped logger
//  3. RedactingLogger: one access line per request
//  4. Recovery: after the logger so panics are logged with the request id
//  5. Body size limit (uploads get their own cap)
//  6. gzip, metrics
//  7. Authenticate: attaches the caller, never rejects
//  8. Idempotency-Key validation, then the per-user/IP rate limiter
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	apiBase := cfg.APIBasePath
	uploadPath := joinPath(apiBase, "/admin/uploads")

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID(), middleware.Logger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(defaultBodyLimit, map[string]int64{
		uploadPath: cfg.Storage.UploadMaxBytes + defaultBodyLimit,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", cfg.WebhookPath})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.Authenticate(deps.Tokens, cfg.Auth.CookieName))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}))

	// Processor retries must never be throttled into lost deliveries.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Exempt(cfg.WebhookPath)
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Services, handlers.Options{
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	r.POST(cfg.WebhookPath, h.StripeWebhook)

	api := groupWithPrefix(r, apiBase)
	{
		api.GET("/patterns", h.ListPatterns)
		api.GET("/patterns/featured", h.FeaturedPatterns)
		api.GET("/patterns/slug/:slug", h.GetPatternBySlug)
		api.GET("/patterns/:id", h.GetPattern)
		api.GET("/categories", h.ListCategories)

		api.POST("/chat/messages", h.PostChatMessage)
		api.GET("/chat/sessions/:id/messages", h.ChatHistory)
	}

	account := api.Group("/auth", middleware.NoStore())
	{
		account.POST("/register", h.Register)
		account.POST("/login", h.Login)
		account.POST("/logout", h.Logout)
		account.GET("/me", h.Me)
	}

	user := api.Group("", middleware.RequireAuth(), middleware.NoStore())
	{
		user.POST("/checkout/sessions", h.CreateCheckoutSession)
		user.GET("/purchases", h.ListPurchases)
		user.GET("/patterns/:id/purchased", h.HasPurchased)
		user.GET("/patterns/:id/download", h.DownloadPattern)
	}

	admin := api.Group("/admin", middleware.RequireAdmin(), middleware.NoStore())
	{
		admin.GET("/patterns", h.AdminListPatterns)
		admin.POST("/patterns", h.AdminCreatePattern)
		admin.PUT("/patterns/:id", h.AdminUpdatePattern)
		admin.DELETE("/patterns/:id", h.AdminDeletePattern)
		admin.GET("/categories", h.AdminListCategories)
		admin.POST("/categories", h.AdminCreateCategory)
		admin.POST("/uploads", h.AdminUpload)
		admin.POST("/purchases/reconcile", h.AdminReconcile)
	}
}

// corsConfig allows any origin without credentials when no allowlist is
// configured; with an allowlist, cookies are allowed for those origins.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// limitBody caps request bodies with http.MaxBytesReader. overrides maps an
// exact request path to its own cap.
func limitBody(maxBytes int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := overrides[c.Request.URL.Path]; ok && n > 0 {
			limit = n
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
