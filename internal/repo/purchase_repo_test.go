package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

func TestUpsertCompletedPurchase_InsertsCompletedRow(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 42, "u42@example.com")
	seedPattern(t, db, 7, "seven", 1999, true, false)

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	p, created, err := UpsertCompletedPurchase(context.Background(), db, CompletedPurchase{
		UserID: 42, PatternID: 7, SessionID: "cs_A", PaymentIntentID: "pi_1", Amount: 1999, At: at,
	})
	if err != nil {
		t.Fatalf("UpsertCompletedPurchase: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first delivery")
	}
	if p.Status != domain.PurchaseCompleted || p.Amount != 1999 || p.UserID != 42 || p.PatternID != 7 {
		t.Fatalf("unexpected row: %+v", p)
	}
	if p.StripePaymentIntentID == nil || *p.StripePaymentIntentID != "pi_1" {
		t.Fatalf("payment intent not stored: %+v", p.StripePaymentIntentID)
	}
	if !p.PurchasedAt.Equal(at) {
		t.Fatalf("purchased_at = %v, want %v", p.PurchasedAt, at)
	}
}

func TestUpsertCompletedPurchase_RedeliveryIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 42, "u42@example.com")
	seedPattern(t, db, 7, "seven", 1999, true, false)

	in := CompletedPurchase{UserID: 42, PatternID: 7, SessionID: "cs_A", PaymentIntentID: "pi_1", Amount: 1999}
	if _, _, err := UpsertCompletedPurchase(ctx, db, in); err != nil {
		t.Fatalf("first: %v", err)
	}
	p, created, err := UpsertCompletedPurchase(ctx, db, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if created {
		t.Fatalf("redelivery must not create a second row")
	}
	if p.Status != domain.PurchaseCompleted {
		t.Fatalf("status = %s", p.Status)
	}

	var n int64
	db.Model(&domain.Purchase{}).Where("stripe_session_id = ?", "cs_A").Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, got %d", n)
	}
}

func TestUpsertCompletedPurchase_PromotesPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "a@example.com")
	seedPattern(t, db, 2, "two", 500, true, false)

	pending := &domain.Purchase{UserID: 1, PatternID: 2, StripeSessionID: "cs_P", Amount: 500, Status: domain.PurchasePending, PurchasedAt: time.Now()}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	p, created, err := UpsertCompletedPurchase(ctx, db, CompletedPurchase{UserID: 1, PatternID: 2, SessionID: "cs_P", PaymentIntentID: "pi_P", Amount: 450})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created || p.ID != pending.ID {
		t.Fatalf("expected the pending row to be reused, got created=%v id=%d", created, p.ID)
	}
	if p.Status != domain.PurchaseCompleted || p.Amount != 450 {
		t.Fatalf("pending row not promoted: %+v", p)
	}
	if p.StripePaymentIntentID == nil || *p.StripePaymentIntentID != "pi_P" {
		t.Fatalf("payment intent not attached")
	}
}

func TestUpsertCompletedPurchase_FailedIsTerminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "a@example.com")
	seedPattern(t, db, 2, "two", 500, true, false)

	failed := &domain.Purchase{UserID: 1, PatternID: 2, StripeSessionID: "cs_F", Amount: 500, Status: domain.PurchaseFailed, PurchasedAt: time.Now()}
	if err := db.Create(failed).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	p, _, err := UpsertCompletedPurchase(ctx, db, CompletedPurchase{UserID: 1, PatternID: 2, SessionID: "cs_F", Amount: 500})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.Status != domain.PurchaseFailed {
		t.Fatalf("failed row must stay failed, got %s", p.Status)
	}
}

func TestUpsertCompletedPurchase_TerminalRowsKeepStatusAndAmount(t *testing.T) {
	for i, st := range domain.PurchaseStatuses {
		if !st.Terminal() {
			continue
		}
		t.Run(string(st), func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			seedUser(t, db, 1, "a@example.com")
			seedPattern(t, db, 2, "two", 500, true, false)

			session := fmt.Sprintf("cs_T%d", i)
			row := &domain.Purchase{UserID: 1, PatternID: 2, StripeSessionID: session, Amount: 500, Status: st, PurchasedAt: time.Now()}
			if err := db.Create(row).Error; err != nil {
				t.Fatalf("seed: %v", err)
			}
			p, created, err := UpsertCompletedPurchase(ctx, db, CompletedPurchase{UserID: 1, PatternID: 2, SessionID: session, Amount: 1})
			if err != nil || created {
				t.Fatalf("upsert = created %v, %v", created, err)
			}
			if p.Status != st || p.Amount != 500 {
				t.Fatalf("terminal row changed: status=%s amount=%d", p.Status, p.Amount)
			}
		})
	}
}

func TestUpsertCompletedPurchase_FillsMissingPaymentIntent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "a@example.com")
	seedPattern(t, db, 2, "two", 500, true, false)

	if _, _, err := UpsertCompletedPurchase(ctx, db, CompletedPurchase{UserID: 1, PatternID: 2, SessionID: "cs_N", Amount: 500}); err != nil {
		t.Fatalf("first: %v", err)
	}
	p, _, err := UpsertCompletedPurchase(ctx, db, CompletedPurchase{UserID: 1, PatternID: 2, SessionID: "cs_N", PaymentIntentID: "pi_late", Amount: 500})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if p.StripePaymentIntentID == nil || *p.StripePaymentIntentID != "pi_late" {
		t.Fatalf("expected payment intent to be filled in, got %v", p.StripePaymentIntentID)
	}
}

func TestUpsertCompletedPurchase_UnknownPatternFails(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 1, "a@example.com")
	_, _, err := UpsertCompletedPurchase(context.Background(), db, CompletedPurchase{UserID: 1, PatternID: 999, SessionID: "cs_X", Amount: 1})
	if err == nil {
		t.Fatalf("expected FK error for unknown pattern")
	}
}

func TestUpsertCompletedPurchase_ConcurrentDeliveries(t *testing.T) {
	db := newTestDB(t)
	// One connection serializes statements the way a single sqlite writer would.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	seedUser(t, db, 42, "u42@example.com")
	seedPattern(t, db, 7, "seven", 1999, true, false)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := UpsertCompletedPurchase(context.Background(), db, CompletedPurchase{
				UserID: 42, PatternID: 7, SessionID: "cs_C", PaymentIntentID: "pi_C", Amount: 1999,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if c {
				created++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if created != 1 {
		t.Fatalf("exactly one delivery should create the row, got %d", created)
	}
	var rows int64
	db.Model(&domain.Purchase{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one ledger row, got %d", rows)
	}
}

func TestHasCompletedPurchase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "a@example.com")
	seedUser(t, db, 2, "b@example.com")
	seedPattern(t, db, 10, "ten", 100, true, false)
	seedPattern(t, db, 11, "eleven", 100, true, false)

	db.Create(&domain.Purchase{UserID: 1, PatternID: 10, StripeSessionID: "cs_1", Amount: 100, Status: domain.PurchaseCompleted, PurchasedAt: time.Now()})
	db.Create(&domain.Purchase{UserID: 1, PatternID: 11, StripeSessionID: "cs_2", Amount: 100, Status: domain.PurchasePending, PurchasedAt: time.Now()})

	cases := []struct {
		user, pattern int64
		want          bool
	}{
		{1, 10, true},
		{1, 11, false}, // pending does not entitle
		{2, 10, false}, // other user
	}
	for _, c := range cases {
		got, err := HasCompletedPurchase(ctx, db, c.user, c.pattern)
		if err != nil {
			t.Fatalf("HasCompletedPurchase: %v", err)
		}
		if got != c.want {
			t.Fatalf("HasCompletedPurchase(%d,%d) = %v, want %v", c.user, c.pattern, got, c.want)
		}
	}
}

func TestListCompletedPurchases_NewestFirstWithPattern(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "a@example.com")
	seedPattern(t, db, 10, "ten", 100, true, false)
	seedPattern(t, db, 11, "eleven", 200, false, false) // inactive patterns still resolve
	seedPattern(t, db, 12, "twelve", 300, true, false)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db.Create(&domain.Purchase{UserID: 1, PatternID: 10, StripeSessionID: "cs_old", Amount: 100, Status: domain.PurchaseCompleted, PurchasedAt: t0})
	db.Create(&domain.Purchase{UserID: 1, PatternID: 11, StripeSessionID: "cs_new", Amount: 200, Status: domain.PurchaseCompleted, PurchasedAt: t0.Add(time.Hour)})
	db.Create(&domain.Purchase{UserID: 1, PatternID: 12, StripeSessionID: "cs_fail", Amount: 300, Status: domain.PurchaseFailed, PurchasedAt: t0.Add(2 * time.Hour)})

	got, err := ListCompletedPurchases(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListCompletedPurchases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 completed purchases, got %d", len(got))
	}
	if got[0].StripeSessionID != "cs_new" || got[1].StripeSessionID != "cs_old" {
		t.Fatalf("wrong order: %s, %s", got[0].StripeSessionID, got[1].StripeSessionID)
	}
	if got[0].Pattern == nil || got[0].Pattern.Slug != "eleven" {
		t.Fatalf("pattern not joined: %+v", got[0].Pattern)
	}
}

func TestGetPurchaseBySession_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetPurchaseBySession(context.Background(), db, "cs_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
