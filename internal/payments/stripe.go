// Package payments wraps the Stripe API surface the storefront uses: hosted
// Checkout session creation, session lookup for reconciliation, and webhook
// signature verification. Stripe types stay inside this package; callers see
// the small value types declared here.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/tbourn/quilt-shop-backend/internal/config"
)

// Metadata keys attached to every checkout session. The webhook reads them
// back to attribute the payment to a user and pattern.
const (
	MetaUserID        = "user_id"
	MetaPatternID     = "pattern_id"
	MetaCustomerEmail = "customer_email"
	MetaCustomerName  = "customer_name"
)

// Event types the storefront reacts to.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// ErrNotSigned is returned by VerifyEvent when no signature header was sent.
var ErrNotSigned = webhook.ErrNotSigned

// CheckoutRequest describes a one-item hosted checkout for a pattern.
type CheckoutRequest struct {
	UserID        int64
	PatternID     int64
	Title         string
	Description   string
	UnitAmount    int64 // smallest currency unit
	CustomerEmail string
	CustomerName  string
	SuccessURL    string
	CancelURL     string

	// IdempotencyKey is forwarded as Stripe's Idempotency-Key so a retried
	// request returns the session created by the first attempt.
	IdempotencyKey string
}

// Session is a created hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// CheckoutSession is the subset of a Stripe checkout session needed to
// reconcile a purchase.
type CheckoutSession struct {
	ID              string
	PaymentIntentID string
	AmountTotal     int64
	Paid            bool
	Metadata        map[string]string
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type string

	// Session is set for checkout.session.* events.
	Session *CheckoutSession
	// PaymentIntentID is set for payment_intent.* events.
	PaymentIntentID string
}

// Client talks to Stripe with a dedicated backend, so tests and stripe-mock
// can point it at another base URL.
type Client struct {
	sessions      session.Client
	currency      string
	webhookSecret string
	tolerance     time.Duration
}

// New builds a Client from cfg. Stripe's own diagnostics are routed to log.
func New(cfg config.StripeConfig, log zerolog.Logger) *Client {
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		LeveledLogger:     stripeLogger{log: log.With().Str("component", "stripe").Logger()},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if cfg.APIURL != "" {
		bc.URL = stripe.String(cfg.APIURL)
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Client{
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, bc),
			Key: cfg.SecretKey,
		},
		currency:      currency,
		webhookSecret: cfg.WebhookSecret,
		tolerance:     webhook.DefaultTolerance,
	}
}

// CreateCheckoutSession creates a payment-mode session with a single line
// item priced from req.UnitAmount.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Title),
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		product.Description = stripe.String(d)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:  stripe.StringSlice([]string{"card"}),
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		ClientReferenceID:   stripe.String(strconv.FormatInt(req.UserID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(req.UnitAmount),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetaUserID, strconv.FormatInt(req.UserID, 10))
	params.AddMetadata(MetaPatternID, strconv.FormatInt(req.PatternID, 10))
	params.AddMetadata(MetaCustomerEmail, req.CustomerEmail)
	params.AddMetadata(MetaCustomerName, req.CustomerName)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// GetSession fetches a checkout session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get checkout session: %w", err)
	}
	return toCheckoutSession(s), nil
}

// VerifyEvent checks the Stripe-Signature header against the raw payload and
// decodes the event. Events pinned to a different API version are accepted;
// only the fields read below are relied on.
//
// When the signature is valid but data.object cannot be decoded, the event
// id and type are still returned together with a *DecodeError.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return out, nil
	}
	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return out, &DecodeError{Object: "checkout session", Err: err}
		}
		out.Session = toCheckoutSession(&s)
	case strings.HasPrefix(out.Type, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return out, &DecodeError{Object: "payment intent", Err: err}
		}
		out.PaymentIntentID = pi.ID
	}
	return out, nil
}

// DecodeError reports a verified event whose payload object could not be
// decoded.
type DecodeError struct {
	Object string
	Err    error
}

func (e *DecodeError) Error() string { return "decode " + e.Object + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsSignatureError reports whether err came from signature verification
// rather than from decoding.
func IsSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:          s.ID,
		AmountTotal: s.AmountTotal,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

type stripeLogger struct{ log zerolog.Logger }

func (l stripeLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l stripeLogger) Infof(format string, v ...interface{})  { l.log.Info().Msgf(format, v...) }
func (l stripeLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l stripeLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
