// Package services holds the storefront's business logic: catalog reads and
// admin writes, checkout, webhook reconciliation, entitlements, accounts,
// uploads, downloads, and the chat assistant.
//
// This file centralizes the service-level error values. Handlers translate
// them into HTTP status codes and stable error codes; services never speak
// HTTP.
package services

import "errors"

// Caller errors.
var (
	// ErrUnauthenticated is returned when an operation requires a signed-in
	// caller and none was supplied.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the caller lacks the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned by Register when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
)

// Catalog errors.
var (
	// ErrInvalidPattern is returned for a non-positive pattern id.
	ErrInvalidPattern = errors.New("invalid pattern id")

	// ErrPatternNotFound is returned when the pattern does not exist or, on
	// public paths, is inactive.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrCategoryNotFound is returned when a referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrSlugTaken is returned when a pattern or category slug is already used.
	ErrSlugTaken = errors.New("slug already in use")

	// ErrInvalidInput wraps field-level validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// Purchase errors.
var (
	// ErrNotEntitled is returned when the caller has no completed purchase of
	// the pattern they are trying to download.
	ErrNotEntitled = errors.New("pattern not purchased")

	// ErrNoDeliverable is returned when an entitled pattern has no file attached.
	ErrNoDeliverable = errors.New("pattern has no downloadable file")

	// ErrSessionNotPaid is returned by reconciliation when the processor
	// reports the session as unpaid.
	ErrSessionNotPaid = errors.New("checkout session is not paid")

	// ErrReconciliation is returned when a verified completion event cannot be
	// applied to the ledger (bad metadata, storage failure). The processor
	// should retry.
	ErrReconciliation = errors.New("purchase reconciliation failed")
)

// Chat errors.
var (
	// ErrEmptyPrompt is returned when a chat message is blank.
	ErrEmptyPrompt = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the configured limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidSession is returned for a missing or malformed chat session id.
	ErrInvalidSession = errors.New("invalid chat session id")
)

// Upload errors.
var (
	// ErrUnsupportedMedia is returned for an upload whose content type is not allowed.
	ErrUnsupportedMedia = errors.New("unsupported file type")

	// ErrTooLarge is returned for an upload above the configured size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrStorageDisabled is returned when uploads are attempted without object storage.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

// ErrUpstream wraps failures of external services (payment processor, LLM,
// object storage).
var ErrUpstream = errors.New("upstream service failed")
