// Package handlers: stable error codes and the mapping from service errors
// to HTTP statuses.
//
// Codes are lowercase snake_case. Clients branch on the code, never on the
// message text.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNotEntitled     = "not_entitled"
	ErrCodeTooLarge        = "payload_too_large"
	ErrCodeUnsupportedType = "unsupported_media_type"
	ErrCodeUnavailable     = "service_unavailable"
	ErrCodeUpstream        = "upstream_error"
)

// statusFor maps a service error onto an HTTP status and error code. Unknown
// errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, services.ErrNotEntitled):
		return http.StatusForbidden, ErrCodeNotEntitled
	case errors.Is(err, services.ErrPatternNotFound),
		errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrNoDeliverable):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrSlugTaken),
		errors.Is(err, services.ErrSessionNotPaid):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrInvalidPattern),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidSession):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, ErrCodeTooLarge
	case errors.Is(err, services.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, ErrCodeUnsupportedType
	case errors.Is(err, services.ErrStorageDisabled):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, ErrCodeUpstream
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// failErr renders a service error. Client errors carry the service message;
// server errors are logged in full and answered with a generic message.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status < http.StatusInternalServerError {
		fail(c, status, code, err.Error())
		return
	}
	_ = c.Error(err)
	msg := "internal server error"
	switch status {
	case http.StatusBadGateway:
		msg = "upstream service unavailable"
	case http.StatusServiceUnavailable:
		msg = err.Error()
	}
	fail(c, status, code, msg)
}
