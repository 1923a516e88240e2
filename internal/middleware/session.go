package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vtu_client/internal/session"
)

// SessionSource reports the current client session.
type SessionSource interface {
	State() session.State
}

// RequireSession rejects requests unless the client is logged in.
func RequireSession(src SessionSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := src.State()
		if !st.IsAuthenticated {
			return fiber.NewError(http.StatusUnauthorized, "You are not logged in")
		}
		c.Locals("session_phase", string(st.Phase))
		return c.Next()
	}
}
