// Package services – UploadService
//
// UploadService stores admin-uploaded pattern images and PDFs in object
// storage under generated keys.
package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/storage"
)

// ObjectPutter writes an object under a generated key.
type ObjectPutter interface {
	Put(ctx context.Context, folder, ext string, body io.Reader, size int64, contentType string) (*storage.Object, error)
}

// allowedUploads maps accepted content types to their folder and extension.
var allowedUploads = map[string]struct{ folder, ext string }{
	"image/jpeg":      {"images", ".jpg"},
	"image/png":       {"images", ".png"},
	"image/webp":      {"images", ".webp"},
	"image/gif":       {"images", ".gif"},
	"application/pdf": {"pdfs", ".pdf"},
}

// UploadService implements admin file uploads.
type UploadService struct {
	Store    ObjectPutter // nil when object storage is not configured
	MaxBytes int64
}

// Upload stores body and returns its key and public URL. contentType may
// carry parameters; filename is only used when the type is missing.
func (s *UploadService) Upload(ctx context.Context, caller *auth.Identity, filename, contentType string, size int64, body io.Reader) (*storage.Object, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := otel.Tracer("services/UploadService").Start(ctx, "Upload",
		trace.WithAttributes(attribute.Int64("size", size), attribute.String("content_type", contentType)),
	)
	defer span.End()

	if s.Store == nil {
		return nil, ErrStorageDisabled
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if s.MaxBytes > 0 && size > s.MaxBytes {
		return nil, ErrTooLarge
	}

	ct := mediaType(contentType, filename)
	kind, ok := allowedUploads[ct]
	if !ok {
		return nil, ErrUnsupportedMedia
	}

	obj, err := s.Store.Put(ctx, kind.folder, kind.ext, body, size, ct)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("content_type", ct).Msg("upload failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	log.Ctx(ctx).Info().Str("key", obj.Key).Int64("size", size).Int64("admin_id", caller.UserID).Msg("file uploaded")
	return obj, nil
}

func mediaType(contentType, filename string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		mt, _, _ := mime.ParseMediaType(byExt)
		return strings.ToLower(mt)
	}
	return ""
}
