package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func newTestApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	store := memory.NewStore()
	for _, identity := range []domain.Identity{
		{ID: "agent-1", Email: "agent@example.com", Role: domain.RoleAgent},
		{ID: "user-1", Email: "user@example.com", Role: domain.RoleUser},
	} {
		identity := identity
		require.NoError(t, store.Identities().Upsert(context.Background(), &identity))
	}

	tokens := NewTokenManager("test-secret", 5)
	mw := NewAuthMiddleware(tokens, store.Identities())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/whoami", mw.Handle, func(c *fiber.Ctx) error {
		identity, _ := IdentityFromContext(c)
		return c.SendString(identity.Email)
	})
	app.Get("/staff", mw.Handle, RequireStaff(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens := newTestApp(t)

	agentToken, _, err := tokens.GenerateToken(domain.Identity{ID: "agent-1", Email: "agent@example.com", Role: domain.RoleAgent})
	require.NoError(t, err)
	userToken, _, err := tokens.GenerateToken(domain.Identity{ID: "user-1", Email: "user@example.com", Role: domain.RoleUser})
	require.NoError(t, err)
	ghostToken, _, err := tokens.GenerateToken(domain.Identity{ID: "ghost", Role: domain.RoleAdmin})
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/whoami", "", http.StatusUnauthorized},
		{"malformed header", "/whoami", "Token abc", http.StatusUnauthorized},
		{"bad signature", "/whoami", "Bearer " + agentToken + "x", http.StatusUnauthorized},
		{"unknown identity", "/whoami", "Bearer " + ghostToken, http.StatusUnauthorized},
		{"agent ok", "/whoami", "Bearer " + agentToken, http.StatusOK},
		{"user blocked from staff route", "/staff", "Bearer " + userToken, http.StatusForbidden},
		{"agent on staff route", "/staff", "Bearer " + agentToken, http.StatusNoContent},
		{"query token", "/whoami?access_token=" + userToken, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", 0)
	raw, expires, err := tokens.GenerateToken(domain.Identity{ID: "id-1", Email: "a@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.False(t, expires.IsZero())

	claims, err := tokens.ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(raw)
	assert.Error(t, err)
}
