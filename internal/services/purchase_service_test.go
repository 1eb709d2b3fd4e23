package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
)

func seedPurchase(t *testing.T, s *PurchaseService, sessionID string, userID, patternID int64, status domain.PurchaseStatus, at time.Time) {
	t.Helper()
	if err := s.DB.Create(&domain.Purchase{
		UserID: userID, PatternID: patternID, StripeSessionID: sessionID,
		Amount: 100, Status: status, PurchasedAt: at,
	}).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
}

func TestHasPurchased_OnlyCompletedCounts(t *testing.T) {
	s := &PurchaseService{DB: newTestDB(t)}
	user := seedUser(t, s.DB, 42, domain.RoleUser)
	other := seedUser(t, s.DB, 43, domain.RoleUser)
	seedPattern(t, s.DB, 7, "Log Cabin", 1999, true)
	seedPattern(t, s.DB, 8, "Bear Paw", 1500, true)
	seedPurchase(t, s, "cs_pending", 42, 8, domain.PurchasePending, time.Now())

	ok, err := s.HasPurchased(context.Background(), user, 8)
	if err != nil || ok {
		t.Fatalf("pending purchase entitles: %v, %v", ok, err)
	}

	seedPurchase(t, s, "cs_done", 42, 7, domain.PurchaseCompleted, time.Now())
	if ok, _ := s.HasPurchased(context.Background(), user, 7); !ok {
		t.Fatal("completed purchase should entitle")
	}
	if ok, _ := s.HasPurchased(context.Background(), other, 7); ok {
		t.Fatal("entitlement leaked to another user")
	}

	if _, err := s.HasPurchased(context.Background(), nil, 7); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v", err)
	}
	if _, err := s.HasPurchased(context.Background(), user, -1); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("bad id err = %v", err)
	}
}

func TestListUserPurchases_NewestFirstWithPattern(t *testing.T) {
	s := &PurchaseService{DB: newTestDB(t)}
	user := seedUser(t, s.DB, 42, domain.RoleUser)
	seedPattern(t, s.DB, 7, "Log Cabin", 1999, true)
	seedPattern(t, s.DB, 8, "Bear Paw", 1500, false)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedPurchase(t, s, "cs_a", 42, 7, domain.PurchaseCompleted, base)
	seedPurchase(t, s, "cs_b", 42, 8, domain.PurchaseCompleted, base.Add(time.Hour))
	seedPurchase(t, s, "cs_c", 42, 7, domain.PurchaseFailed, base.Add(2*time.Hour))

	got, err := s.ListUserPurchases(context.Background(), user)
	if err != nil {
		t.Fatalf("ListUserPurchases: %v", err)
	}
	if len(got) != 2 || got[0].StripeSessionID != "cs_b" || got[1].StripeSessionID != "cs_a" {
		t.Fatalf("unexpected purchases: %+v", got)
	}
	if got[0].Pattern == nil || got[0].Pattern.Title != "Bear Paw" {
		t.Fatalf("deactivated pattern not resolved: %+v", got[0].Pattern)
	}
}

func TestDownload(t *testing.T) {
	s := &PurchaseService{DB: newTestDB(t)}
	buyer := seedUser(t, s.DB, 42, domain.RoleUser)
	stranger := seedUser(t, s.DB, 43, domain.RoleUser)
	admin := seedUser(t, s.DB, 1, domain.RoleAdmin)

	keyed := seedPattern(t, s.DB, 7, "Log Cabin", 1999, true)
	s.DB.Model(keyed).Update("pdf_file_key", "pdfs/log-cabin.pdf")
	linked := seedPattern(t, s.DB, 8, "Bear Paw", 1500, true)
	s.DB.Model(linked).Update("pdf_url", "https://static.example/bear-paw.pdf")
	seedPattern(t, s.DB, 9, "Empty", 100, true)
	for _, id := range []int64{7, 8, 9} {
		seedPurchase(t, s, fmt.Sprintf("cs_%d", id), 42, id, domain.PurchaseCompleted, time.Now())
	}

	t.Run("presigned file key", func(t *testing.T) {
		files := &fakePresigner{}
		s.Files = files
		d, err := s.Download(context.Background(), buyer, 7)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if files.key != "pdfs/log-cabin.pdf" || d.ExpiresAt == nil {
			t.Fatalf("unexpected download %+v (key %q)", d, files.key)
		}
	})

	t.Run("file key without storage", func(t *testing.T) {
		s.Files = nil
		if _, err := s.Download(context.Background(), buyer, 7); !errors.Is(err, ErrNoDeliverable) {
			t.Fatalf("err = %v, want ErrNoDeliverable", err)
		}
	})

	t.Run("static url", func(t *testing.T) {
		d, err := s.Download(context.Background(), buyer, 8)
		if err != nil || d.URL != "https://static.example/bear-paw.pdf" || d.ExpiresAt != nil {
			t.Fatalf("Download = %+v, %v", d, err)
		}
	})

	t.Run("not entitled", func(t *testing.T) {
		if _, err := s.Download(context.Background(), stranger, 8); !errors.Is(err, ErrNotEntitled) {
			t.Fatalf("err = %v, want ErrNotEntitled", err)
		}
	})

	t.Run("admin bypasses entitlement", func(t *testing.T) {
		if _, err := s.Download(context.Background(), admin, 8); err != nil {
			t.Fatalf("admin download: %v", err)
		}
	})

	t.Run("nothing to deliver", func(t *testing.T) {
		if _, err := s.Download(context.Background(), buyer, 9); !errors.Is(err, ErrNoDeliverable) {
			t.Fatalf("err = %v, want ErrNoDeliverable", err)
		}
	})

	t.Run("presign failure", func(t *testing.T) {
		s.Files = &fakePresigner{err: errors.New("boom")}
		if _, err := s.Download(context.Background(), buyer, 7); !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v, want ErrUpstream", err)
		}
	})
}

func TestReconcileSession(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, 1, domain.RoleAdmin)
	buyer := seedUser(t, db, 42, domain.RoleUser)
	seedPattern(t, db, 7, "Log Cabin", 1999, true)

	t.Run("requires admin", func(t *testing.T) {
		s := &PurchaseService{DB: db, Sessions: &fakeSessions{}}
		if _, err := s.ReconcileSession(context.Background(), buyer, "cs_1"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unpaid", func(t *testing.T) {
		sess := completedSession("cs_unpaid", 42, 7, 1999)
		sess.Paid = false
		s := &PurchaseService{DB: db, Sessions: &fakeSessions{sess: sess}}
		if _, err := s.ReconcileSession(context.Background(), admin, "cs_unpaid"); !errors.Is(err, ErrSessionNotPaid) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("processor error", func(t *testing.T) {
		s := &PurchaseService{DB: db, Sessions: &fakeSessions{err: errors.New("down")}}
		if _, err := s.ReconcileSession(context.Background(), admin, "cs_x"); !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("paid session is applied once", func(t *testing.T) {
		s := &PurchaseService{DB: db, Sessions: &fakeSessions{sess: completedSession("cs_lost", 42, 7, 1999)}}
		for i := 0; i < 2; i++ {
			p, err := s.ReconcileSession(context.Background(), admin, "cs_lost")
			if err != nil {
				t.Fatalf("ReconcileSession: %v", err)
			}
			if p.Status != domain.PurchaseCompleted || p.Amount != 1999 {
				t.Fatalf("unexpected purchase: %+v", p)
			}
		}
		var n int64
		db.Model(&domain.Purchase{}).Where("stripe_session_id = ?", "cs_lost").Count(&n)
		if n != 1 {
			t.Fatalf("rows = %d", n)
		}
		ok, _ := repo.HasCompletedPurchase(context.Background(), db, 42, 7)
		if !ok {
			t.Fatal("reconciled purchase should entitle")
		}
	})

	t.Run("blank session id", func(t *testing.T) {
		s := &PurchaseService{DB: db, Sessions: &fakeSessions{}}
		if _, err := s.ReconcileSession(context.Background(), admin, " "); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err = %v", err)
		}
	})
}
