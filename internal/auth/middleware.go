package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	tokenIDKey   = "auth_token_id"
)

// AuthMiddleware validates bearer tokens and resolves principals.
type AuthMiddleware struct {
	tokens *TokenManager
	store  TokenStore
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, store TokenStore, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, store: store, logger: logger}
}

// Handle enforces authentication for protected routes. The Principal is
// built entirely from verified claims; the role travels in the token.
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

	if m.store != nil {
		denied, err := m.store.IsDenied(c.UserContext(), claims.ID)
		if err != nil {
			// Fail open: the denylist store being down must not lock
			// everyone out, but the skipped check has to be visible.
			m.logger.Warn("token revocation check unavailable",
				zap.String("token_id", claims.ID),
				zap.Error(err))
		} else if denied {
			return apperrors.NewUnauthorized("token revoked")
		}
	}

	c.Locals(principalKey, domain.Principal{ID: claims.Subject, Role: claims.Role})
	c.Locals(tokenIDKey, claims.ID)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}

// TokenIDFromContext retrieves the current token id, used for logout.
func TokenIDFromContext(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(tokenIDKey).(string)
	return id, ok
}
