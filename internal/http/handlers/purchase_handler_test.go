package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/services"
)

func seedPurchase(t *testing.T, db *gorm.DB, id, userID, patternID int64, status domain.PurchaseStatus) {
	t.Helper()
	p := &domain.Purchase{
		ID:              id,
		UserID:          userID,
		PatternID:       patternID,
		StripeSessionID: fmt.Sprintf("cs_test_%d", id),
		Amount:          1999,
		Status:          status,
		PurchasedAt:     time.Date(2025, 3, int(id), 12, 0, 0, 0, time.UTC),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
}

func purchaseFixture(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()
	db := newTestDB(t)
	seedUser(t, db, 42, domain.RoleUser)
	seedUser(t, db, 43, domain.RoleUser)
	seedPattern(t, db, domain.Pattern{ID: 7, Title: "Log Cabin Throw", Slug: "log-cabin-throw", Price: 1999, Active: true,
		PDFURL: "https://files.example.com/log-cabin.pdf"})
	seedPattern(t, db, domain.Pattern{ID: 8, Title: "Ohio Star", Slug: "ohio-star", Price: 1500, Active: true})
	seedPurchase(t, db, 1, 42, 7, domain.PurchaseCompleted)
	seedPurchase(t, db, 2, 42, 8, domain.PurchasePending)
	return db, newRouter(Services{Purchases: &services.PurchaseService{DB: db}})
}

func TestListPurchases_CompletedOnlyWithoutDeliverables(t *testing.T) {
	_, r := purchaseFixture(t)

	w := do(r, http.MethodGet, "/purchases", nil, tokenFor(t, 42, domain.RoleUser))
	resp := decode[PurchasesResponse](t, w)
	if len(resp.Purchases) != 1 || resp.Purchases[0].PatternID != 7 || resp.Purchases[0].Pattern == nil {
		t.Fatalf("purchases = %+v", resp)
	}
	if strings.Contains(w.Body.String(), "pdf_url") {
		t.Fatalf("listing leaked deliverable: %s", w.Body.String())
	}

	resp = decode[PurchasesResponse](t, do(r, http.MethodGet, "/purchases", nil, tokenFor(t, 43, domain.RoleUser)))
	if resp.Purchases == nil || len(resp.Purchases) != 0 {
		t.Fatalf("other user purchases = %#v", resp.Purchases)
	}

	expectError(t, do(r, http.MethodGet, "/purchases", nil, ""), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestListPurchases_ConditionalGet(t *testing.T) {
	_, r := purchaseFixture(t)
	tok := tokenFor(t, 42, domain.RoleUser)

	w := do(r, http.MethodGet, "/purchases", nil, tok)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || !strings.HasPrefix(etag, `W/"purchases:1:`) {
		t.Fatalf("first GET = %d etag=%q", w.Code, etag)
	}
	if w = do(r, http.MethodGet, "/purchases", nil, tok, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET = %d", w.Code)
	}
	// Tags are per user.
	if w = do(r, http.MethodGet, "/purchases", nil, tokenFor(t, 43, domain.RoleUser), "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("other user conditional GET = %d", w.Code)
	}
}

func TestHasPurchased(t *testing.T) {
	_, r := purchaseFixture(t)
	tok := tokenFor(t, 42, domain.RoleUser)

	cases := []struct {
		path string
		want bool
	}{
		{"/patterns/7/purchased", true},
		{"/patterns/8/purchased", false}, // pending does not entitle
	}
	for _, tc := range cases {
		w := do(r, http.MethodGet, tc.path, nil, tok)
		if got := decode[PurchasedResponse](t, w); w.Code != http.StatusOK || got.Purchased != tc.want {
			t.Fatalf("%s = %d %+v", tc.path, w.Code, got)
		}
	}
	expectError(t, do(r, http.MethodGet, "/patterns/0/purchased", nil, tok), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestDownloadPattern(t *testing.T) {
	_, r := purchaseFixture(t)

	w := do(r, http.MethodGet, "/patterns/7/download", nil, tokenFor(t, 42, domain.RoleUser))
	if got := decode[services.Download](t, w); w.Code != http.StatusOK || got.URL != "https://files.example.com/log-cabin.pdf" {
		t.Fatalf("download = %d %+v", w.Code, got)
	}

	expectError(t, do(r, http.MethodGet, "/patterns/7/download", nil, tokenFor(t, 43, domain.RoleUser)), http.StatusForbidden, ErrCodeNotEntitled)
	expectError(t, do(r, http.MethodGet, "/patterns/8/download", nil, tokenFor(t, 42, domain.RoleUser)), http.StatusForbidden, ErrCodeNotEntitled)
	expectError(t, do(r, http.MethodGet, "/patterns/404/download", nil, tokenFor(t, 42, domain.RoleUser)), http.StatusNotFound, ErrCodeNotFound)
	// Admins may fetch any file; pattern 8 has none.
	expectError(t, do(r, http.MethodGet, "/patterns/8/download", nil, tokenFor(t, 1, domain.RoleAdmin)), http.StatusNotFound, ErrCodeNotFound)
}
