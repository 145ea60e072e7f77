package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, expiresAt, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = NewTokenManager("other", time.Minute).ParseToken(token)
	assert.Error(t, err)

	_, _, err = tm.GenerateToken("")
	assert.Error(t, err)
}

func testApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
	}})
	mw := NewAuthMiddleware(tm, workflow.StaticRoleProvider{
		"alice": domain.NewRoleSet("agent"),
		"root":  domain.NewRoleSet("admin"),
	})
	app.Get("/me", mw.Handle, RequireAnyRole(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"actor": p.ActorID, "roles": p.Roles.Slice()})
	})
	app.Post("/admin", mw.Handle, RequireRole("admin"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func request(t *testing.T, app *fiber.App, method, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	app := testApp(tm)
	alice, _, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	root, _, err := tm.GenerateToken("root")
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "GET", "/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "GET", "/me", "garbage"))
	assert.Equal(t, fiber.StatusOK, request(t, app, "GET", "/me", alice))
	assert.Equal(t, fiber.StatusForbidden, request(t, app, "POST", "/admin", alice))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, "POST", "/admin", root))
}
