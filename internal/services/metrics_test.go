package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
)

func TestCheckoutSessionsCounter(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 5, domain.RoleUser)
	seedPattern(t, db, 9, "Nine Patch", 1200, true)

	created := testutil.ToFloat64(checkoutSessions.WithLabelValues("created"))
	missing := testutil.ToFloat64(checkoutSessions.WithLabelValues("pattern_not_found"))
	upstream := testutil.ToFloat64(checkoutSessions.WithLabelValues("upstream_error"))

	ok := &CheckoutService{DB: db, Processor: &fakeProcessor{sess: &payments.Session{ID: "cs_m", URL: "https://checkout.example/cs_m"}}}
	if _, err := ok.CreateSession(context.Background(), user, 9, "https://shop.example", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := ok.CreateSession(context.Background(), user, 404, "https://shop.example", ""); !errors.Is(err, ErrPatternNotFound) {
		t.Fatalf("err = %v, want ErrPatternNotFound", err)
	}
	bad := &CheckoutService{DB: db, Processor: &fakeProcessor{err: errors.New("boom")}}
	if _, err := bad.CreateSession(context.Background(), user, 9, "https://shop.example", ""); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}

	for label, before := range map[string]float64{"created": created, "pattern_not_found": missing, "upstream_error": upstream} {
		if got := testutil.ToFloat64(checkoutSessions.WithLabelValues(label)); got != before+1 {
			t.Fatalf("checkout_sessions_total{outcome=%q} = %v, want %v", label, got, before+1)
		}
	}
}
