package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/vtu_client/internal/gateway"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures each request has a stable request identifier and hands
// it to backend calls made while serving the request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		c.SetUserContext(gateway.WithRequestID(c.UserContext(), reqID))

		return c.Next()
	}
}
