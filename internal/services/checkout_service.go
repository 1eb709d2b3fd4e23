// Package services – CheckoutService
//
// CheckoutService opens a hosted payment session for one pattern. The price
// and title always come from the catalog; nothing is written locally, so an
// abandoned session leaves no ledger trace. The webhook is the only writer of
// purchase state.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
)

// LineItemDescription is shown on the hosted checkout page.
const LineItemDescription = "Digital PDF Quilt Pattern"

// CheckoutProcessor creates hosted checkout sessions.
type CheckoutProcessor interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.Session, error)
}

// CheckoutService implements the payment session initiator.
type CheckoutService struct {
	DB        *gorm.DB
	Processor CheckoutProcessor

	// DefaultOrigin is used for redirect URLs when the request carried no
	// Origin header.
	DefaultOrigin string
}

// CreateSession opens a checkout session for patternID on behalf of caller
// and returns the hosted page URL. idemKey, when set, is forwarded to the
// processor so a retried request resolves to the same session.
func (s *CheckoutService) CreateSession(ctx context.Context, caller *auth.Identity, patternID int64, origin, idemKey string) (string, error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "CreateSession",
		trace.WithAttributes(attribute.Int64("pattern.id", patternID)),
	)
	defer span.End()

	if err := requireAuth(caller); err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int64("user.id", caller.UserID))
	if patternID <= 0 {
		return "", ErrInvalidPattern
	}

	p, err := repo.GetPattern(ctx, s.DB, patternID, true)
	if errors.Is(err, repo.ErrNotFound) {
		checkoutSessions.WithLabelValues("pattern_not_found").Inc()
		return "", ErrPatternNotFound
	}
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if base == "" {
		base = strings.TrimRight(s.DefaultOrigin, "/")
	}

	sess, err := s.Processor.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		UserID:         caller.UserID,
		PatternID:      p.ID,
		Title:          p.Title,
		Description:    LineItemDescription,
		UnitAmount:     p.Price,
		CustomerEmail:  caller.Email,
		CustomerName:   caller.Name,
		SuccessURL:     base + "/purchase-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      base + "/patterns",
		IdempotencyKey: idemKey,
	})
	if err != nil {
		checkoutSessions.WithLabelValues("upstream_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "processor failed")
		log.Ctx(ctx).Error().Err(err).Int64("pattern_id", p.ID).Msg("checkout session creation failed")
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	checkoutSessions.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.String("checkout.session_id", sess.ID))
	log.Ctx(ctx).Info().
		Int64("pattern_id", p.ID).
		Int64("user_id", caller.UserID).
		Str("session_id", sess.ID).
		Msg("checkout session created")
	return sess.URL, nil
}
