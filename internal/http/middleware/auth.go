// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity from a session token carried in
// the Authorization header (Bearer) or the auth cookie. Authenticate never
// rejects a request; RequireAuth and RequireAdmin guard route groups.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
)

const (
	identityKey = "identity"
	// userIDKey holds the caller's id as a string for the rate limiter.
	userIDKey = "userID"
)

// TokenParser verifies session tokens.
type TokenParser interface {
	Parse(token string) (*auth.Identity, error)
}

// Authenticate attaches the identity carried by a valid token. Missing or
// invalid tokens leave the request anonymous.
func Authenticate(tokens TokenParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && cookieName != "" {
			raw, _ = c.Cookie(cookieName)
		}
		if raw == "" {
			c.Next()
			return
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("ignoring invalid session token")
			c.Next()
			return
		}
		uid := strconv.FormatInt(id.UserID, 10)
		c.Set(identityKey, id)
		c.Set(userIDKey, uid)
		setLogger(c, LoggerFrom(c).With().Str("user_id", uid).Logger())
		c.Next()
	}
}

// IdentityFrom returns the caller attached by Authenticate, or nil.
func IdentityFrom(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		switch {
		case id == nil:
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
		case !id.IsAdmin():
			abortJSON(c, http.StatusForbidden, "forbidden", "admin access required")
		default:
			c.Next()
		}
	}
}

func bearerToken(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
