package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wanderfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type resolverFunc func(ctx context.Context, subject string) (uuid.UUID, error)

func (f resolverFunc) UserIDForSubject(ctx context.Context, subject string) (uuid.UUID, error) {
	return f(ctx, subject)
}

func newAuthApp(t *testing.T, known map[string]uuid.UUID) *fiber.App {
	t.Helper()
	auth := NewAuthenticator(testSecret, "", "", resolverFunc(func(_ context.Context, subject string) (uuid.UUID, error) {
		if id, ok := known[subject]; ok {
			return id, nil
		}
		return uuid.Nil, models.NewNotFoundError("User", subject)
	}))

	app := fiber.New()
	app.Get("/private", auth.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalUserID).(uuid.UUID).String())
	})
	app.Get("/token-only", auth.RequireToken(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalSubject).(string))
	})
	app.Get("/optional", auth.OptionalAuth(), func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalUserID).(uuid.UUID); ok {
			return c.SendString("known")
		}
		return c.SendString("anonymous")
	})
	return app
}

func bearer(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(testSecret, subject, ttl, IdentityClaims{Email: subject + "@example.com"})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	app := newAuthApp(t, map[string]uuid.UUID{"user_abc": userID})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired token", bearer(t, "user_abc", -time.Minute), http.StatusUnauthorized},
		{"unknown subject", bearer(t, "user_zzz", time.Hour), http.StatusUnauthorized},
		{"valid token", bearer(t, "user_abc", time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequireToken_AllowsUnprovisionedSubject(t *testing.T) {
	app := newAuthApp(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/token-only", nil)
	req.Header.Set("Authorization", bearer(t, "user_new", time.Hour))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	app := newAuthApp(t, map[string]uuid.UUID{"user_abc": uuid.New()})

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "invalid optional tokens are ignored")
}

func TestAuthenticator_IssuerMismatch(t *testing.T) {
	auth := NewAuthenticator(testSecret, "https://issuer.example", "", resolverFunc(func(context.Context, string) (uuid.UUID, error) {
		return uuid.New(), nil
	}))
	app := fiber.New()
	app.Get("/", auth.AuthRequired(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "user_abc", time.Hour))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
