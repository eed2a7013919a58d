package addresses

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/session"
)

// Handler exposes the address book of the logged-in client.
type Handler struct {
	service *Service
}

// NewHandler constructs an address HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addressRequest struct {
	ID      int64    `json:"id"`
	Alias   string   `json:"alias"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// List returns the client's addresses.
func (h *Handler) List(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	list, err := h.service.List(c.UserContext(), p.ClientID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "list": list})
}

// Create saves a new address.
func (h *Handler) Create(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	addr, err := h.service.Create(c.UserContext(), p.ClientID, req.Alias, req.Address, req.Lat, req.Lon)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true, "id": addr.ID})
}

// Update edits an address.
func (h *Handler) Update(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	upd := Update{ID: req.ID, Alias: req.Alias, Address: req.Address, Lat: req.Lat, Lon: req.Lon}
	if err := h.service.Update(c.UserContext(), p.ClientID, upd); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Delete removes an address.
func (h *Handler) Delete(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Delete(c.UserContext(), p.ClientID, req.ID); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrLimitReached):
		return fiber.NewError(http.StatusBadRequest, "maximum of 3 addresses")
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "not found")
	default:
		return err
	}
}
