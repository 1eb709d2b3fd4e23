package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

func TestUpload(t *testing.T) {
	admin := &auth.Identity{UserID: 1, Role: domain.RoleAdmin}
	user := &auth.Identity{UserID: 2, Role: domain.RoleUser}

	t.Run("pdf goes to pdfs folder", func(t *testing.T) {
		put := &fakePutter{}
		s := &UploadService{Store: put, MaxBytes: 1 << 20}
		obj, err := s.Upload(context.Background(), admin, "Log Cabin.PDF", "application/pdf", 4, strings.NewReader("%PDF"))
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if put.folder != "pdfs" || put.ext != ".pdf" || string(put.body) != "%PDF" {
			t.Fatalf("put = %+v", put)
		}
		if obj.Key != "pdfs/fixed.pdf" || obj.URL == "" {
			t.Fatalf("object = %+v", obj)
		}
	})

	t.Run("type from extension when generic", func(t *testing.T) {
		put := &fakePutter{}
		s := &UploadService{Store: put}
		if _, err := s.Upload(context.Background(), admin, "cover.png", "application/octet-stream", 3, strings.NewReader("png")); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if put.folder != "images" || put.contentType != "image/png" {
			t.Fatalf("put = %+v", put)
		}
	})

	cases := []struct {
		name   string
		s      *UploadService
		caller *auth.Identity
		ct     string
		size   int64
		want   error
	}{
		{"not admin", &UploadService{Store: &fakePutter{}}, user, "image/png", 3, ErrForbidden},
		{"anonymous", &UploadService{Store: &fakePutter{}}, nil, "image/png", 3, ErrUnauthenticated},
		{"storage disabled", &UploadService{}, admin, "image/png", 3, ErrStorageDisabled},
		{"too large", &UploadService{Store: &fakePutter{}, MaxBytes: 2}, admin, "image/png", 3, ErrTooLarge},
		{"empty", &UploadService{Store: &fakePutter{}}, admin, "image/png", 0, ErrInvalidInput},
		{"unsupported", &UploadService{Store: &fakePutter{}}, admin, "text/html", 3, ErrUnsupportedMedia},
		{"store failure", &UploadService{Store: &fakePutter{err: errors.New("s3 down")}}, admin, "image/png", 3, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.s.Upload(context.Background(), tc.caller, "f", tc.ct, tc.size, strings.NewReader("abc"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
