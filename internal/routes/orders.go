package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/addresses"
	"github.com/yeraldo2021/app-delivery-2025/internal/dispatch"
)

// RegisterOrderRoutes wires order endpoints. Only placing an order needs a
// session; driver and restaurant views are open.
func RegisterOrderRoutes(r fiber.Router, h *dispatch.Handler, requireSession, idempotency fiber.Handler) {
	group := r.Group("/orders")
	group.Get("/", h.ListOpen)
	group.Get("/all", h.ListAll)
	group.Post("/", requireSession, idempotency, h.Create)
	group.Get("/:id", h.Get)
	group.Post("/:id/assign", h.Assign)
	group.Post("/:id/deliver", h.Deliver)
}

// RegisterDriverRoutes wires driver endpoints.
func RegisterDriverRoutes(r fiber.Router, h *dispatch.Handler) {
	group := r.Group("/drivers")
	group.Get("/", h.ListDrivers)
	group.Put("/", h.UpdateDriver)
	group.Get("/:phone", h.GetDriver)
}

// RegisterAddressRoutes wires the session-scoped address book.
func RegisterAddressRoutes(r fiber.Router, h *addresses.Handler, requireSession fiber.Handler) {
	group := r.Group("/addresses", requireSession)
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Put("/", h.Update)
	group.Delete("/", h.Delete)
}
