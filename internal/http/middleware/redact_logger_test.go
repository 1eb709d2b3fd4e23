package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestScrub(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"q=log+cabin", "q=log+cabin"},
		{"email=jane.doe@example.com", "email=[REDACTED:email]"},
		{"sid=123e4567-e89b-12d3-a456-426614174000", "sid=[REDACTED:id]"},
		{"call 555-123-4567", "call [REDACTED:phone]"},
	}
	for _, tc := range cases {
		if got := scrub(tc.in); got != tc.want {
			t.Errorf("scrub(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_MasksCredentialsAndLevels(t *testing.T) {
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.POST("/api/stripe/webhook", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/patterns", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook?email=a@b.io", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Api-Key", "k-123")
	req.Header.Set("X-Note", "owner jane@example.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/patterns", nil))

	out := buf.String()
	for _, secret := range []string{"deadbeef", "secret-token", "k-123", "jane@example.com", "a@b.io"} {
		if strings.Contains(out, secret) {
			t.Fatalf("log leaked %q: %s", secret, out)
		}
	}

	lines := logLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0]["level"] != "warn" || lines[0]["status"] != float64(400) {
		t.Fatalf("webhook line = %v", lines[0])
	}
	headers, _ := lines[0]["headers"].(map[string]any)
	if headers["Stripe-Signature"] != "[REDACTED]" {
		t.Fatalf("stripe signature header = %v", headers["Stripe-Signature"])
	}
	if headers["X-Note"] != "owner [REDACTED:email]" {
		t.Fatalf("x-note = %v", headers["X-Note"])
	}
	if lines[1]["level"] != "info" || lines[1]["message"] != "http_request" {
		t.Fatalf("patterns line = %v", lines[1])
	}
}
