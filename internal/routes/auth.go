package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
)

// RegisterAuthRoutes wires PIN and session endpoints.
func RegisterAuthRoutes(r fiber.Router, h *identity.Handler, rateLimiter, requireSession fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/pin", h.CreatePIN)
	if rateLimiter != nil {
		group.Post("/verify", rateLimiter, h.Verify)
	} else {
		group.Post("/verify", h.Verify)
	}
	group.Post("/logout", h.Logout)
	group.Get("/me", requireSession, h.Me)
}
