package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vtu_client/internal/session"
)

// RegisterSessionRoutes wires the session lifecycle endpoints.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler, guard, rateLimiter fiber.Handler) {
	group := r.Group("/session")
	group.Get("", h.State)
	group.Post("/register", h.Register)
	group.Post("/verify-otp", h.VerifyOtp)
	group.Post("/resend-otp", h.ResendOtp)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/logout", h.Logout)
	group.Post("/reset", h.Reset)
	group.Delete("/error", h.ClearError)

	group.Post("/transaction-pin", guard, h.SetPin)
	group.Post("/lock", guard, h.Lock)
	group.Post("/unlock", guard, h.Unlock)
}
