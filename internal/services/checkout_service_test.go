package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/payments"
)

func TestCreateSession_UsesCatalogPriceAndRedirects(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 42, domain.RoleUser)
	seedPattern(t, db, 7, "Log Cabin", 1999, true)

	proc := &fakeProcessor{sess: &payments.Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}}
	s := &CheckoutService{DB: db, Processor: proc, DefaultOrigin: "https://shop.example"}

	url, err := s.CreateSession(context.Background(), user, 7, "https://quilts.example/", "idem-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if url != "https://checkout.example/cs_1" {
		t.Fatalf("url = %q", url)
	}
	if len(proc.got) != 1 {
		t.Fatalf("processor calls = %d", len(proc.got))
	}
	req := proc.got[0]
	if req.UnitAmount != 1999 || req.Title != "Log Cabin" || req.Description != LineItemDescription {
		t.Fatalf("line item = %+v", req)
	}
	if req.UserID != 42 || req.PatternID != 7 || req.CustomerEmail != "user42@example.com" {
		t.Fatalf("attribution = %+v", req)
	}
	if req.SuccessURL != "https://quilts.example/purchase-success?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("success url = %q", req.SuccessURL)
	}
	if req.CancelURL != "https://quilts.example/patterns" {
		t.Fatalf("cancel url = %q", req.CancelURL)
	}
	if req.IdempotencyKey != "idem-1" {
		t.Fatalf("idempotency key = %q", req.IdempotencyKey)
	}
	if n := countPurchases(t, db); n != 0 {
		t.Fatalf("checkout wrote %d ledger rows", n)
	}
}

func TestCreateSession_FallsBackToDefaultOrigin(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 1, domain.RoleUser)
	seedPattern(t, db, 3, "Star", 500, true)
	proc := &fakeProcessor{sess: &payments.Session{ID: "cs", URL: "u"}}
	s := &CheckoutService{DB: db, Processor: proc, DefaultOrigin: "https://shop.example/"}

	if _, err := s.CreateSession(context.Background(), user, 3, "", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got := proc.got[0].CancelURL; got != "https://shop.example/patterns" {
		t.Fatalf("cancel url = %q", got)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 1, domain.RoleUser)
	seedPattern(t, db, 3, "Retired", 500, false)

	cases := []struct {
		name    string
		proc    *fakeProcessor
		pattern int64
		anon    bool
		want    error
	}{
		{"anonymous", &fakeProcessor{}, 3, true, ErrUnauthenticated},
		{"bad id", &fakeProcessor{}, 0, false, ErrInvalidPattern},
		{"missing pattern", &fakeProcessor{}, 99, false, ErrPatternNotFound},
		{"inactive pattern", &fakeProcessor{}, 3, false, ErrPatternNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &CheckoutService{DB: db, Processor: tc.proc}
			caller := user
			if tc.anon {
				caller = nil
			}
			_, err := s.CreateSession(context.Background(), caller, tc.pattern, "", "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(tc.proc.got) != 0 {
				t.Fatal("processor must not be called")
			}
		})
	}
}

func TestCreateSession_ProcessorFailureIsUpstream(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 1, domain.RoleUser)
	seedPattern(t, db, 3, "Star", 500, true)
	s := &CheckoutService{DB: db, Processor: &fakeProcessor{err: errors.New("card_declined")}}

	_, err := s.CreateSession(context.Background(), user, 3, "", "")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
