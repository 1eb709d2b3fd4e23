// Package services – WebhookService
//
// WebhookService is the only writer of purchase completion state. It
// verifies the processor's signature over the raw request body, dispatches
// on event type and reconciles completed checkout sessions into the ledger.
// Nothing is written before verification succeeds.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
)

// testEventPrefix marks dashboard "send test webhook" events.
const testEventPrefix = "evt_test_"

// ErrMissingSignature is returned when the signature header is absent.
var ErrMissingSignature = errors.New("no signature")

// SignatureError reports a failed signature verification. It is never
// retryable.
type SignatureError struct{ Err error }

func (e *SignatureError) Error() string { return e.Err.Error() }
func (e *SignatureError) Unwrap() error { return e.Err }

// EventVerifier authenticates and decodes webhook payloads.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*payments.Event, error)
}

// WebhookService implements the webhook receiver.
type WebhookService struct {
	DB       *gorm.DB
	Verifier EventVerifier
	Now      func() time.Time
}

// Handle verifies and applies one delivery. The returned outcome is
// meaningful whenever verification succeeded, including when err wraps
// ErrReconciliation.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, sigHeader string) (domain.WebhookOutcome, error) {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Handle", trace.WithAttributes(attribute.Int("payload.bytes", len(payload))))
	defer span.End()

	if strings.TrimSpace(sigHeader) == "" {
		return "", ErrMissingSignature
	}
	receivedAt := s.now()

	evt, err := s.Verifier.VerifyEvent(payload, sigHeader)
	switch {
	case err == nil:
	case errors.Is(err, payments.ErrNotSigned):
		return "", ErrMissingSignature
	case payments.IsSignatureError(err) || evt == nil:
		span.SetStatus(codes.Error, "signature verification failed")
		log.Ctx(ctx).Warn().Err(err).Msg("webhook signature verification failed")
		return "", &SignatureError{Err: err}
	default:
		// Authentic but undecodable: fail with 500 so the processor redelivers.
		failed := fmt.Errorf("%w: %v", ErrReconciliation, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "event decode failed")
		log.Ctx(ctx).Error().Err(err).Str("event_id", evt.ID).Str("event_type", evt.Type).Msg("verified webhook event could not be decoded")
		s.audit(ctx, evt, domain.WebhookFailed, failed, receivedAt)
		return domain.WebhookFailed, failed
	}
	span.SetAttributes(attribute.String("event.id", evt.ID), attribute.String("event.type", evt.Type))
	lg := log.Ctx(ctx).With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	if strings.HasPrefix(evt.ID, testEventPrefix) {
		lg.Info().Msg("test webhook event verified")
		s.audit(ctx, evt, domain.WebhookTest, nil, receivedAt)
		return domain.WebhookTest, nil
	}

	outcome := domain.WebhookIgnored
	var handleErr error
	switch evt.Type {
	case payments.EventCheckoutCompleted:
		p, created, err := s.reconcile(ctx, evt.Session)
		if err != nil {
			handleErr = err
			outcome = domain.WebhookFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconciliation failed")
			lg.Error().Err(err).Msg("checkout completion reconciliation failed")
			break
		}
		outcome = domain.WebhookProcessed
		lg.Info().
			Int64("purchase_id", p.ID).
			Int64("user_id", p.UserID).
			Int64("pattern_id", p.PatternID).
			Str("status", string(p.Status)).
			Bool("created", created).
			Msg("purchase reconciled")

	case payments.EventPaymentIntentSucceeded:
		lg.Info().Str("payment_intent", evt.PaymentIntentID).Msg("payment intent succeeded")
		outcome = domain.WebhookProcessed

	case payments.EventPaymentIntentFailed:
		lg.Warn().Str("payment_intent", evt.PaymentIntentID).Msg("payment intent failed")
		outcome = domain.WebhookProcessed

	default:
		lg.Info().Msg("unhandled webhook event type")
	}

	s.audit(ctx, evt, outcome, handleErr, receivedAt)
	return outcome, handleErr
}

func (s *WebhookService) reconcile(ctx context.Context, sess *payments.CheckoutSession) (*domain.Purchase, bool, error) {
	if sess == nil || sess.ID == "" {
		return nil, false, fmt.Errorf("%w: event carries no checkout session", ErrReconciliation)
	}
	return applyCompletedSession(ctx, s.DB, sess, s.now())
}

func (s *WebhookService) audit(ctx context.Context, evt *payments.Event, outcome domain.WebhookOutcome, handleErr error, receivedAt time.Time) {
	webhookEvents.WithLabelValues(evt.Type, string(outcome)).Inc()
	errText := ""
	if handleErr != nil {
		errText = handleErr.Error()
	}
	if err := repo.RecordWebhookEvent(ctx, s.DB, evt.ID, evt.Type, outcome, errText, receivedAt); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event_id", evt.ID).Msg("webhook audit write failed")
	}
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// applyCompletedSession upserts the ledger row for a paid checkout session.
// Metadata must carry positive user_id and pattern_id values.
func applyCompletedSession(ctx context.Context, db *gorm.DB, sess *payments.CheckoutSession, at time.Time) (*domain.Purchase, bool, error) {
	userID, err := metaID(sess.Metadata, payments.MetaUserID)
	if err != nil {
		return nil, false, err
	}
	patternID, err := metaID(sess.Metadata, payments.MetaPatternID)
	if err != nil {
		return nil, false, err
	}
	p, created, err := repo.UpsertCompletedPurchase(ctx, db, repo.CompletedPurchase{
		UserID:          userID,
		PatternID:       patternID,
		SessionID:       sess.ID,
		PaymentIntentID: sess.PaymentIntentID,
		Amount:          sess.AmountTotal,
		At:              at,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrReconciliation, err)
	}
	return p, created, nil
}

func metaID(md map[string]string, key string) (int64, error) {
	raw := strings.TrimSpace(md[key])
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid metadata %s=%q", ErrReconciliation, key, raw)
	}
	return id, nil
}
