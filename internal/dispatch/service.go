// Package dispatch owns the order lifecycle: placement, assignment to a
// driver with an arrival estimate, and delivery.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/events"
	"github.com/yeraldo2021/app-delivery-2025/internal/geo"
	"github.com/yeraldo2021/app-delivery-2025/internal/phone"
)

// AverageSpeedKmh is the assumed courier speed used for arrival estimates.
const AverageSpeedKmh = 25.0

// Service coordinates orders and drivers.
type Service struct {
	repo   Repository
	events events.Publisher
	logger *slog.Logger
}

// NewService builds a dispatch service. pub may be nil.
func NewService(repo Repository, pub events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, events: pub, logger: logger}
}

// CreateOrder validates and stores a new order. Items with zero quantity are
// dropped; the total is rounded to cents.
func (s *Service) CreateOrder(ctx context.Context, in NewOrder) (Order, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return Order{}, fmt.Errorf("address is required: %w", apperr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(address) > MaxAddressLen {
		return Order{}, fmt.Errorf("address exceeds %d characters: %w", MaxAddressLen, apperr.ErrInvalidInput)
	}
	if in.Lat == nil || in.Lon == nil || !finite(*in.Lat) || !finite(*in.Lon) {
		return Order{}, fmt.Errorf("lat and lon are required: %w", apperr.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return Order{}, fmt.Errorf("items are required: %w", apperr.ErrInvalidInput)
	}

	items := make([]OrderItem, 0, len(in.Items))
	var sum float64
	for _, item := range in.Items {
		if item.Qty < 0 || item.Price < 0 || !finite(item.Price) {
			return Order{}, fmt.Errorf("item %q: quantity and price must not be negative: %w", item.Name, apperr.ErrInvalidInput)
		}
		if item.Qty == 0 {
			continue
		}
		name := strings.TrimSpace(item.Name)
		if utf8.RuneCountInString(name) > MaxItemNameLen || item.Qty > MaxItemQty {
			return Order{}, fmt.Errorf("item %q: name or quantity out of range: %w", truncate(name, 24), apperr.ErrInvalidInput)
		}
		sum += item.Price * float64(item.Qty)
		items = append(items, OrderItem{Name: name, Qty: item.Qty, Price: item.Price})
	}

	order := Order{
		Address: address,
		Lat:     *in.Lat,
		Lon:     *in.Lon,
		Items:   items,
		Total:   RoundCents(sum),
	}
	if in.ClientID != 0 {
		id := in.ClientID
		order.ClientID = &id
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order created", slog.Int64("order_id", created.ID), slog.Float64("total", created.Total))
	events.Emit(ctx, s.events, s.logger, events.Event{
		Kind:     events.KindOrderCreated,
		OrderID:  created.ID,
		ClientID: in.ClientID,
		Total:    created.Total,
		At:       created.CreatedAt,
	})
	return created, nil
}

// Assign hands a new order to the driver identified by rawDriverPhone.
func (s *Service) Assign(ctx context.Context, orderID int64, rawDriverPhone string) (Assignment, error) {
	driverPhone := phone.Normalize(rawDriverPhone)
	if driverPhone == "" {
		return Assignment{}, fmt.Errorf("driver phone is required: %w", apperr.ErrInvalidInput)
	}

	assignment, err := s.repo.Assign(ctx, orderID, driverPhone, EstimateETA)
	if err != nil {
		return Assignment{}, err
	}
	s.logger.Info("order assigned", slog.Int64("order_id", orderID), slog.String("driver", driverPhone))
	events.Emit(ctx, s.events, s.logger, events.Event{
		Kind:        events.KindOrderAssigned,
		OrderID:     orderID,
		DriverPhone: driverPhone,
		ETAMinutes:  assignment.ETAMinutes,
	})
	return assignment, nil
}

// Deliver marks the order delivered. Repeated calls succeed without
// releasing the driver twice.
func (s *Service) Deliver(ctx context.Context, orderID int64) error {
	delivery, err := s.repo.Deliver(ctx, orderID)
	if err != nil {
		return err
	}
	if delivery.PreviousStatus == StatusDelivered {
		return nil
	}
	s.logger.Info("order delivered", slog.Int64("order_id", orderID),
		slog.String("previous_status", delivery.PreviousStatus), slog.Bool("driver_released", delivery.Released))
	events.Emit(ctx, s.events, s.logger, events.Event{
		Kind:        events.KindOrderDelivered,
		OrderID:     orderID,
		DriverPhone: delivery.DriverPhone,
	})
	return nil
}

// ReportLocation records a driver position, creating the driver on first
// report. Nil coordinates keep their previous value.
func (s *Service) ReportLocation(ctx context.Context, rawPhone string, lat, lon *float64) (Driver, error) {
	driverPhone := phone.Normalize(rawPhone)
	if driverPhone == "" {
		return Driver{}, fmt.Errorf("phone is required: %w", apperr.ErrInvalidInput)
	}
	if (lat != nil && !finite(*lat)) || (lon != nil && !finite(*lon)) {
		return Driver{}, fmt.Errorf("coordinates must be finite: %w", apperr.ErrInvalidInput)
	}
	driver, err := s.repo.UpsertDriverLocation(ctx, driverPhone, lat, lon)
	if err != nil {
		return Driver{}, err
	}
	events.Emit(ctx, s.events, s.logger, events.Event{
		Kind:        events.KindDriverLocation,
		DriverPhone: driverPhone,
		Lat:         driver.Lat,
		Lon:         driver.Lon,
		At:          driver.UpdatedAt,
	})
	return driver, nil
}

// GetOrder returns one order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOpenOrders returns unassigned orders, newest first.
func (s *Service) ListOpenOrders(ctx context.Context) ([]Order, error) {
	return s.repo.ListOrders(ctx, StatusNew)
}

// ListAllOrders returns every order, newest first.
func (s *Service) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.repo.ListOrders(ctx, "")
}

// GetDriver returns the driver registered under rawPhone.
func (s *Service) GetDriver(ctx context.Context, rawPhone string) (Driver, error) {
	driverPhone := phone.Normalize(rawPhone)
	if driverPhone == "" {
		return Driver{}, fmt.Errorf("phone is required: %w", apperr.ErrInvalidInput)
	}
	return s.repo.GetDriver(ctx, driverPhone)
}

// ListDrivers returns drivers, most recently updated first.
func (s *Service) ListDrivers(ctx context.Context) ([]Driver, error) {
	return s.repo.ListDrivers(ctx)
}

// EstimateETA converts the great-circle distance between driver and order
// into whole minutes at AverageSpeedKmh. It returns nil while the driver has
// no known position.
func EstimateETA(driver Driver, order Order) *int {
	if driver.Lat == nil || driver.Lon == nil {
		return nil
	}
	km := geo.HaversineKm(*driver.Lat, *driver.Lon, order.Lat, order.Lon)
	minutes := int(math.RoundToEven(km / AverageSpeedKmh * 60))
	return &minutes
}

// RoundCents rounds an amount to two decimals, ties to even.
func RoundCents(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

