package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// CORS answers preflights and sets the same headers on every route.
func CORS(allowOrigins []string) fiber.Handler {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions},
		AllowHeaders:     []string{fiber.HeaderAuthorization, fiber.HeaderContentType, HeaderIdempotencyKey},
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: !slices.Contains(allowOrigins, "*"),
		MaxAge:           3600,
	})
}
