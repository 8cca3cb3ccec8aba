package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "sla-engine", time.Hour)

	token, expiresAt, err := tm.GenerateToken("tenant-1", "user-1", RoleAgent)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, RoleAgent, claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", "sla-engine", time.Hour)
	token, _, err := tm.GenerateToken("tenant-1", "user-1", RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("other", "sla-engine", time.Hour).ParseToken(token)
	assert.Error(t, err, "wrong secret")

	_, err = NewTokenManager("secret", "someone-else", time.Hour).ParseToken(token)
	assert.Error(t, err, "wrong issuer")

	fallback, _, err := NewTokenManager("secret", "sla-engine", 0).GenerateToken("tenant-1", "user-1", RoleAdmin)
	require.NoError(t, err)
	_, err = tm.ParseToken(fallback)
	assert.NoError(t, err, "zero ttl falls back to an hour")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		TenantID: "tenant-1",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "sla-engine",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err, "expired")

	noTenant, _, err := tm.GenerateToken("", "user-1", RoleAdmin)
	require.NoError(t, err)
	_, err = tm.ParseToken(noTenant)
	assert.Error(t, err)
}

func newTestApp(tm *TokenManager, guard fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Get("/whoami", NewAuthMiddleware(tm).Handle, guard, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no principal")
		}
		return c.SendString(principal.TenantID + "/" + principal.UserID)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "sla-engine", time.Hour)
	admin, _, err := tm.GenerateToken("tenant-1", "root", RoleAdmin)
	require.NoError(t, err)
	viewer, _, err := tm.GenerateToken("tenant-1", "guest", RoleViewer)
	require.NoError(t, err)
	app := newTestApp(tm, RequireAdmin())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + admin, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"viewer on admin route", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("OWNER").Valid())
}
