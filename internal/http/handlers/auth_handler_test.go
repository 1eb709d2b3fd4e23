package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/quilt-shop-backend/internal/services"
)

func authCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" {
			return c
		}
	}
	return nil
}

func TestAuth_RegisterLoginMeLogout(t *testing.T) {
	db := newTestDB(t)
	r := newRouter(Services{Accounts: &services.AuthService{DB: db, Tokens: testTokens}})

	w := do(r, http.MethodPost, "/auth/register", RegisterRequest{Email: "Maker@Example.com", Password: "long enough pw", Name: "Ada"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	reg := decode[SessionResponse](t, w)
	if reg.Token == "" || reg.User == nil || reg.User.Email != "maker@example.com" {
		t.Fatalf("register body = %+v", reg)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("password hash serialized")
	}
	ck := authCookie(w)
	if ck == nil || ck.Value != reg.Token || !ck.HttpOnly || ck.MaxAge <= 0 {
		t.Fatalf("session cookie = %+v", ck)
	}

	expectError(t, do(r, http.MethodPost, "/auth/register", RegisterRequest{Email: "maker@example.com", Password: "another password"}, ""),
		http.StatusConflict, ErrCodeConflict)
	expectError(t, do(r, http.MethodPost, "/auth/register", map[string]string{"email": "x@example.com"}, ""),
		http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, do(r, http.MethodPost, "/auth/login", LoginRequest{Email: "maker@example.com", Password: "wrong password"}, ""),
		http.StatusUnauthorized, ErrCodeUnauthorized)

	w = do(r, http.MethodPost, "/auth/login", LoginRequest{Email: "maker@example.com", Password: "long enough pw"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	login := decode[SessionResponse](t, w)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: login.Token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	me := decode[MeResponse](t, w)
	if me.User == nil || me.User.ID != reg.User.ID {
		t.Fatalf("me = %+v", me)
	}

	w = do(r, http.MethodGet, "/auth/me", nil, "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"user":null}` {
		t.Fatalf("anonymous me = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/auth/logout", nil, login.Token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}
	if ck := authCookie(w); ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("logout cookie = %+v", ck)
	}
}
