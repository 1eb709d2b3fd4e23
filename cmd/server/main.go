// Command server runs the quilt pattern storefront API.
//
// @title                      Quilt Shop API
// @version                    1.0
// @description                Storefront backend for digital quilt patterns: catalog, checkout, entitlements, downloads and a quilting assistant.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/cache"
	"github.com/tbourn/quilt-shop-backend/internal/config"
	httpapi "github.com/tbourn/quilt-shop-backend/internal/http"
	"github.com/tbourn/quilt-shop-backend/internal/http/handlers"
	"github.com/tbourn/quilt-shop-backend/internal/llm"
	"github.com/tbourn/quilt-shop-backend/internal/observability"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
	"github.com/tbourn/quilt-shop-backend/internal/search"
	"github.com/tbourn/quilt-shop-backend/internal/services"
	"github.com/tbourn/quilt-shop-backend/internal/storage"
	"github.com/tbourn/quilt-shop-backend/internal/sysutil"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogging(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	svc, err := buildServices(ctx, cfg, db)
	if err != nil {
		return err
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Tokens:   svc.tokens,
		Services: svc.Services,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

type wired struct {
	handlers.Services
	tokens *auth.TokenIssuer
}

// buildServices constructs the optional integrations (object storage, catalog
// cache, language model) and the services that depend on them.
func buildServices(ctx context.Context, cfg config.Config, db *gorm.DB) (*wired, error) {
	processor := payments.New(cfg.Stripe, log.Logger)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var catalogCache *cache.Catalog
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		catalogCache = cache.NewCatalog(client, cfg.Redis.TTL)
	} else {
		log.Info().Msg("catalog cache disabled")
	}

	purchases := &services.PurchaseService{DB: db, Sessions: processor}
	uploads := &services.UploadService{MaxBytes: cfg.Storage.UploadMaxBytes}
	if cfg.Storage.Enabled() {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
		store := storage.New(client, cfg.Storage)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		purchases.Files = store
		uploads.Store = store
	} else {
		log.Info().Msg("object storage disabled; downloads fall back to stored links")
	}

	var guide []search.Document
	if cfg.KnowledgePath != "" {
		docs, err := search.LoadGuide(cfg.KnowledgePath)
		if err != nil {
			return nil, err
		}
		guide = docs
	}
	live := search.NewLive(search.NewIndex(guide))
	indexer := &services.IndexBuilder{DB: db, Live: live, Guide: guide}
	if err := indexer.Rebuild(ctx); err != nil {
		log.Warn().Err(err).Msg("initial assistant index build failed")
	}

	catalog := services.NewCatalogService(db, catalogCache)
	catalog.OnChange = indexer.OnChange

	assistant := &services.AssistantService{DB: db, Index: live, HistoryLimit: cfg.LLM.HistoryLimit}
	if cfg.LLM.APIKey != "" {
		assistant.LLM = llm.NewOpenAI(cfg.LLM)
	} else {
		log.Info().Msg("no language model configured; assistant serves retrieval-only answers")
	}

	accounts := &services.AuthService{DB: db, Tokens: tokens}
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if _, err := accounts.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return nil, err
		}
	}

	return &wired{
		Services: handlers.Services{
			Accounts: accounts,
			Catalog:  catalog,
			Checkout: &services.CheckoutService{
				DB:            db,
				Processor:     processor,
				DefaultOrigin: cfg.PublicOrigin,
			},
			Purchases: purchases,
			Assistant: assistant,
			Uploads:   uploads,
			Webhooks:  &services.WebhookService{DB: db, Verifier: processor},
		},
		tokens: tokens,
	}, nil
}
