// Package services – PurchaseService
//
// PurchaseService answers entitlement questions from the ledger, lists a
// user's completed purchases, delivers download links to entitled users,
// and lets an admin replay a lost completion event by reconciling a
// checkout session fetched straight from the processor.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
)

// SessionFetcher reads a checkout session from the processor.
type SessionFetcher interface {
	GetSession(ctx context.Context, id string) (*payments.CheckoutSession, error)
}

// Presigner issues short-lived links to stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

// Download is a link to a purchased deliverable. ExpiresAt is zero for
// static links.
type Download struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PurchaseService implements the entitlement check and ledger read path.
type PurchaseService struct {
	DB       *gorm.DB
	Sessions SessionFetcher
	Files    Presigner // nil when object storage is not configured
	Now      func() time.Time
}

func (s *PurchaseService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/PurchaseService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// HasPurchased reports whether caller holds a completed purchase of
// patternID. It always reads the ledger.
func (s *PurchaseService) HasPurchased(ctx context.Context, caller *auth.Identity, patternID int64) (bool, error) {
	if err := requireAuth(caller); err != nil {
		return false, err
	}
	if patternID <= 0 {
		return false, ErrInvalidPattern
	}
	ctx, span := s.span(ctx, "HasPurchased",
		attribute.Int64("user.id", caller.UserID),
		attribute.Int64("pattern.id", patternID),
	)
	defer span.End()

	return repo.HasCompletedPurchase(ctx, s.DB, caller.UserID, patternID)
}

// ListUserPurchases returns the caller's completed purchases, newest first,
// each with its pattern.
func (s *PurchaseService) ListUserPurchases(ctx context.Context, caller *auth.Identity) ([]domain.Purchase, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "ListUserPurchases", attribute.Int64("user.id", caller.UserID))
	defer span.End()

	return repo.ListCompletedPurchases(ctx, s.DB, caller.UserID)
}

// Stats returns the caller's purchase count and latest update, for ETags.
func (s *PurchaseService) Stats(ctx context.Context, caller *auth.Identity) (int64, *time.Time, error) {
	if err := requireAuth(caller); err != nil {
		return 0, nil, err
	}
	return repo.PurchasesStats(ctx, s.DB, caller.UserID)
}

// Download returns a link to the pattern's PDF. Admins may fetch any
// pattern; everyone else needs a completed purchase. A stored file key is
// presigned when object storage is configured, otherwise the static PDF
// URL is returned.
func (s *PurchaseService) Download(ctx context.Context, caller *auth.Identity, patternID int64) (*Download, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	if patternID <= 0 {
		return nil, ErrInvalidPattern
	}
	ctx, span := s.span(ctx, "Download",
		attribute.Int64("user.id", caller.UserID),
		attribute.Int64("pattern.id", patternID),
	)
	defer span.End()

	p, err := repo.GetPattern(ctx, s.DB, patternID, false)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	if err != nil {
		return nil, err
	}

	if !caller.IsAdmin() {
		ok, err := repo.HasCompletedPurchase(ctx, s.DB, caller.UserID, patternID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotEntitled
		}
	}

	if key := strings.TrimSpace(p.PDFFileKey); key != "" && s.Files != nil {
		u, exp, err := s.Files.PresignGet(ctx, key)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("pattern_id", patternID).Msg("presign download failed")
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		log.Ctx(ctx).Info().Int64("pattern_id", patternID).Int64("user_id", caller.UserID).Msg("download link issued")
		return &Download{URL: u, ExpiresAt: &exp}, nil
	}
	if u := strings.TrimSpace(p.PDFURL); u != "" {
		return &Download{URL: u}, nil
	}
	return nil, ErrNoDeliverable
}

// ReconcileSession fetches sessionID from the processor and, when it is
// paid, applies the same idempotent ledger upsert as the webhook. It is the
// recovery path for a completion event that never arrived.
func (s *PurchaseService) ReconcileSession(ctx context.Context, caller *auth.Identity, sessionID string) (*domain.Purchase, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	ctx, span := s.span(ctx, "ReconcileSession", attribute.String("checkout.session_id", sessionID))
	defer span.End()

	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if !sess.Paid {
		return nil, ErrSessionNotPaid
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	p, created, err := applyCompletedSession(ctx, s.DB, sess, now)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Int64("purchase_id", p.ID).
		Bool("created", created).
		Int64("admin_id", caller.UserID).
		Msg("checkout session reconciled manually")
	return p, nil
}
