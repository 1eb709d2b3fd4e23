// Account HTTP handlers.
//
//   - POST /auth/register
//   - POST /auth/login
//   - POST /auth/logout
//   - GET  /auth/me
//
// Register and login set the session cookie and also return the token for
// clients that prefer the Authorization header.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/services"
)

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required" example:"maker@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
	Name     string `json:"name" example:"Ada Maker"`
}

// LoginRequest is the JSON payload for signing in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"maker@example.com"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse is returned after register and login.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// MeResponse wraps the current user; User is null for anonymous callers.
type MeResponse struct {
	User *domain.User `json:"user"`
}

// Register godoc
// @ID          register
// @Summary     Create an account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}
	sess, err := h.svc.Accounts.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	h.setSession(c, sess)
	ok(c, http.StatusCreated, SessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.User})
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid email or password"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}
	sess, err := h.svc.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	h.setSession(c, sess)
	ok(c, http.StatusOK, SessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.User})
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Clears the session cookie. Tokens are stateless and stay valid until they expire.
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	noContent(c)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.MeResponse
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.svc.Accounts.Me(c.Request.Context(), caller(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MeResponse{User: u})
}

func (h *Handlers) setSession(c *gin.Context, sess *services.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, sess.Token, maxAge, "/", "", h.opts.CookieSecure, true)
}
