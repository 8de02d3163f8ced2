package middleware

import (
	"errors"
	"strings"

	"apply-codes/internal/pkg/auth"

	"github.com/gofiber/fiber/v3"
)

const CtxIdentityKey = "identity"

type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
		}
		if m == nil || m.verifier == nil {
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, nil)
		}

		id, err := m.verifier.Verify(c.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return NewAppError(fiber.StatusUnauthorized, "Token expired", nil, err)
			}
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, err)
		}
		if strings.TrimSpace(id.UID) == "" {
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, nil)
		}

		c.Locals(CtxIdentityKey, id)
		return c.Next()
	}
}

// Identity returns the caller stored by the auth middleware.
func Identity(c fiber.Ctx) (auth.Identity, bool) {
	id, ok := c.Locals(CtxIdentityKey).(auth.Identity)
	return id, ok && id.UID != ""
}

func BearerToken(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
