package dispatch

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/session"
)

// Handler exposes order and driver endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a dispatch HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openOrderView struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Total     float64   `json:"total"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	CreatedAt time.Time `json:"created_at"`
}

type orderView struct {
	ID             int64       `json:"id"`
	Status         string      `json:"status"`
	Address        string      `json:"address"`
	Total          float64     `json:"total"`
	AssignedDriver *string     `json:"assigned_driver"`
	ETAMinutes     *int        `json:"eta_min"`
	CreatedAt      time.Time   `json:"created_at"`
	Items          []OrderItem `json:"items,omitempty"`
}

type driverView struct {
	Phone        string    `json:"phone"`
	Lat          *float64  `json:"lat"`
	Lon          *float64  `json:"lon"`
	Status       string    `json:"status"`
	ActiveOrders int       `json:"active_orders"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOrderView(o Order) orderView {
	return orderView{
		ID:             o.ID,
		Status:         o.Status,
		Address:        o.Address,
		Total:          o.Total,
		AssignedDriver: o.AssignedDriver,
		ETAMinutes:     o.ETAMinutes,
		CreatedAt:      o.CreatedAt,
		Items:          o.Items,
	}
}

// ListOpen returns unassigned orders for drivers.
func (h *Handler) ListOpen(c *fiber.Ctx) error {
	orders, err := h.service.ListOpenOrders(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]openOrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, openOrderView{ID: o.ID, Address: o.Address, Total: o.Total, Lat: o.Lat, Lon: o.Lon, CreatedAt: o.CreatedAt})
	}
	return c.JSON(fiber.Map{"ok": true, "orders": out})
}

// ListAll returns every order for the restaurant dashboard.
func (h *Handler) ListAll(c *fiber.Ctx) error {
	orders, err := h.service.ListAllOrders(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return c.JSON(fiber.Map{"ok": true, "orders": out})
}

// Get returns one order with its items.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	order, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true, "order": toOrderView(order)})
}

type createOrderRequest struct {
	Address string      `json:"address"`
	Lat     *float64    `json:"lat"`
	Lon     *float64    `json:"lon"`
	Items   []OrderItem `json:"items"`
}

// Create places an order for the session's client.
func (h *Handler) Create(c *fiber.Ctx) error {
	p, ok := session.PrincipalFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	order, err := h.service.CreateOrder(c.UserContext(), NewOrder{
		ClientID: p.ClientID,
		Address:  req.Address,
		Lat:      req.Lat,
		Lon:      req.Lon,
		Items:    req.Items,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true, "order": fiber.Map{"id": order.ID, "total": order.Total}})
}

type assignRequest struct {
	DriverPhone string `json:"driver_phone"`
}

// Assign hands an order to a driver.
func (h *Handler) Assign(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	assignment, err := h.service.Assign(c.UserContext(), id, req.DriverPhone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true, "order_id": assignment.OrderID, "eta_min": assignment.ETAMinutes})
}

// Deliver marks an order delivered.
func (h *Handler) Deliver(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	if err := h.service.Deliver(c.UserContext(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ListDrivers returns all known drivers.
func (h *Handler) ListDrivers(c *fiber.Ctx) error {
	drivers, err := h.service.ListDrivers(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]driverView, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, toDriverView(d))
	}
	return c.JSON(fiber.Map{"ok": true, "list": out})
}

// GetDriver returns one driver's position and workload.
func (h *Handler) GetDriver(c *fiber.Ctx) error {
	driver, err := h.service.GetDriver(c.UserContext(), c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true, "driver": toDriverView(driver)})
}

func toDriverView(d Driver) driverView {
	return driverView{Phone: d.Phone, Lat: d.Lat, Lon: d.Lon, Status: d.Status, ActiveOrders: d.ActiveOrders, UpdatedAt: d.UpdatedAt}
}

type locationRequest struct {
	Phone string   `json:"phone"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// UpdateDriver records a driver location report.
func (h *Handler) UpdateDriver(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.service.ReportLocation(c.UserContext(), req.Phone, req.Lat, req.Lon); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func orderID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid order id")
	}
	return int64(id), nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return fiber.NewError(http.StatusConflict, "order already taken")
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
