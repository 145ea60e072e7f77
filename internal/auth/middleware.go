package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	ActorID string
	Roles   domain.RoleSet
}

// AuthMiddleware validates bearer tokens and resolves the caller's roles.
type AuthMiddleware struct {
	tokens *TokenManager
	roles  workflow.RoleProvider
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, roles workflow.RoleProvider) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, roles: roles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	roles, err := m.roles.ActorRoles(c.UserContext(), claims.Subject)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{ActorID: claims.Subject, Roles: roles})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
