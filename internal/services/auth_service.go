// Package services – AuthService
//
// AuthService owns account registration, password login and the bootstrap
// admin account. It issues signed session tokens; the HTTP layer decides
// how they travel (cookie or Authorization header).
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/repo"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
	maxNameRunes   = 255
)

// Session is a signed-in user with their token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService implements accounts and sign-in.
type AuthService struct {
	DB     *gorm.DB
	Tokens *auth.TokenIssuer
	Now    func() time.Time
}

func (s *AuthService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/AuthService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*Session, error) {
	ctx, span := s.span(ctx, "Register")
	defer span.End()

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameRunes {
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxNameRunes)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := repo.CreateUser(ctx, s.DB, email, hash, name, domain.RoleUser)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("user_id", u.ID).Msg("user registered")
	return s.issue(u)
}

// Login verifies credentials and signs the user in. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := s.span(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := repo.TouchLastSignedIn(ctx, s.DB, u.ID, now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("user_id", u.ID).Msg("failed to record sign-in time")
	} else {
		at := now.UTC()
		u.LastSignedInAt = &at
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return s.issue(u)
}

// Me returns the stored account for caller, or nil for an anonymous caller
// or a token whose user no longer exists.
func (s *AuthService) Me(ctx context.Context, caller *auth.Identity) (*domain.User, error) {
	if caller == nil || caller.UserID <= 0 {
		return nil, nil
	}
	u, err := repo.GetUserByID(ctx, s.DB, caller.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// EnsureAdmin creates or promotes the bootstrap admin account.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := repo.EnsureAdmin(ctx, s.DB, email, hash, "Administrator")
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("user_id", u.ID).Msg("admin account ready")
	return u, nil
}

func (s *AuthService) issue(u *domain.User) (*Session, error) {
	token, exp, err := s.Tokens.Issue(auth.IdentityOf(u))
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 320 {
		return "", fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen || len(p) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d bytes", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	return nil
}
