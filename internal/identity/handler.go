package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/session"
)

// Handler exposes PIN and session endpoints.
type Handler struct {
	service  *Service
	sessions session.Store
	cookie   session.Cookie
	logger   *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, sessions session.Store, cookie session.Cookie, logger *slog.Logger) *Handler {
	return &Handler{service: service, sessions: sessions, cookie: cookie, logger: logger}
}

// looseText accepts a JSON string or number. Numbers keep their literal
// text, so {"pin": 4321} reads as "4321".
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = looseText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = looseText(n.String())
	return nil
}

type pinRequest struct {
	Phone looseText `json:"phone"`
	PIN   looseText `json:"pin"`
}

// CreatePIN creates or replaces the PIN for a phone number.
func (h *Handler) CreatePIN(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("pin request rejected", slog.Any("error", err))
		return fiber.NewError(http.StatusBadRequest, "invalid phone or pin")
	}
	if _, err := h.service.CreateOrReplacePIN(c.UserContext(), string(req.Phone), string(req.PIN)); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			return fiber.NewError(http.StatusBadRequest, "invalid phone or pin")
		}
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Verify checks a PIN and opens a session on success.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidCredentials(c)
	}
	client, err := h.service.Verify(c.UserContext(), string(req.Phone), string(req.PIN))
	if errors.Is(err, apperr.ErrUnauthorized) {
		return invalidCredentials(c)
	}
	if err != nil {
		return err
	}

	id, err := h.sessions.Create(c.UserContext(), session.Principal{ClientID: client.ID, Phone: client.Phone})
	if err != nil {
		return err
	}
	h.cookie.Set(c, id)
	h.logger.Info("session opened", slog.Int64("client_id", client.ID))
	return c.JSON(fiber.Map{"ok": true})
}

// Me returns the profile of the session's client.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	client, err := h.service.Profile(c.UserContext(), p.ClientID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return err
	}
	if client.Blocked {
		return fiber.NewError(http.StatusForbidden, "account blocked")
	}
	return c.JSON(fiber.Map{"ok": true, "client": fiber.Map{
		"phone":           client.Phone,
		"default_address": client.DefaultAddress,
		"lat":             client.LastLat,
		"lon":             client.LastLon,
		"order_count":     client.OrderCount,
		"lifetime_value":  client.LifetimeValue,
		"last_order_at":   client.LastOrderAt,
	}})
}

// Logout drops the current session, if any, and clears the cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if id := h.cookie.Read(c); id != "" {
		if err := h.sessions.Delete(c.UserContext(), id); err != nil {
			h.logger.Warn("session delete failed", slog.Any("error", err))
		}
	}
	h.cookie.Clear(c)
	return c.JSON(fiber.Map{"ok": true})
}

func invalidCredentials(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "invalid credentials"})
}
