package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type CronAuthMiddleware struct {
	secret string
}

func NewCronAuthMiddleware(secret string) *CronAuthMiddleware {
	return &CronAuthMiddleware{secret: secret}
}

// AuthMiddleware guards the cron trigger with a Bearer shared secret. The
// comparison is constant-time and a mismatch rejects before any store access.
// An empty configured secret rejects everything.
func (m *CronAuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if m.secret == "" || !ok ||
			subtle.ConstantTimeCompare([]byte(token), []byte(m.secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}
