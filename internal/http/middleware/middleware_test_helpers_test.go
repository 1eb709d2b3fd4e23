package middleware

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/quilt-shop-backend/internal/auth"
	"github.com/tbourn/quilt-shop-backend/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

// captureLogger redirects the global logger to a buffer for the test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes JSON log lines.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// stubTokens accepts "user-<n>" style tokens from a fixed table.
type stubTokens map[string]*auth.Identity

func (s stubTokens) Parse(token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

var testTokens = stubTokens{
	"user-token":  {UserID: 42, Email: "buyer@example.com", Role: domain.RoleUser},
	"admin-token": {UserID: 1, Email: "owner@example.com", Role: domain.RoleAdmin},
}
