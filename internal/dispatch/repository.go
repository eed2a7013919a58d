package dispatch

import (
	"context"

	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
)

// ETAFunc estimates minutes to arrival for driver picking up order. It runs
// inside the assign transaction with the locked rows.
type ETAFunc func(driver Driver, order Order) *int

// Repository persists orders and drivers. Every method is atomic.
type Repository interface {
	// CreateOrder stores order with its items and, when it belongs to a
	// client, folds it into the client's aggregates.
	CreateOrder(ctx context.Context, order Order) (Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	// ListOrders returns orders newest first; an empty status lists all.
	ListOrders(ctx context.Context, status string) ([]Order, error)
	// Assign moves a new order to driverPhone, creating the driver when
	// unknown. It reports apperr.ErrNotFound or apperr.ErrConflict and then
	// leaves no trace.
	Assign(ctx context.Context, orderID int64, driverPhone string, eta ETAFunc) (Assignment, error)
	Deliver(ctx context.Context, orderID int64) (Delivery, error)
	// UpsertDriverLocation overwrites only the coordinates that are non-nil.
	UpsertDriverLocation(ctx context.Context, phone string, lat, lon *float64) (Driver, error)
	GetDriver(ctx context.Context, phone string) (Driver, error)
	ListDrivers(ctx context.Context) ([]Driver, error)
}

// ClientRecorder applies order aggregates to a client. Implemented by
// identity.MemoryRepository.
type ClientRecorder interface {
	RecordOrder(ctx context.Context, clientID int64, activity identity.OrderActivity) error
}
