package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
)

// MemoryRepository keeps orders and drivers in process behind one mutex.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]Order
	drivers map[string]Driver
	clients ClientRecorder
	now     func() time.Time
}

// NewMemoryRepository builds an in-memory dispatch store. clients may be nil,
// in which case client aggregates are not tracked.
func NewMemoryRepository(clients ClientRecorder) *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[int64]Order),
		drivers: make(map[string]Driver),
		clients: clients,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateOrder(ctx context.Context, order Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	if order.ClientID != nil && r.clients != nil {
		activity := identity.OrderActivity{Address: order.Address, Lat: order.Lat, Lon: order.Lon, Total: order.Total, At: now}
		if err := r.clients.RecordOrder(ctx, *order.ClientID, activity); err != nil {
			return Order{}, err
		}
	}

	r.nextID++
	order.ID = r.nextID
	order.Status = StatusNew
	order.CreatedAt = now
	order.Items = append([]OrderItem(nil), order.Items...)
	r.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %d: %w", id, apperr.ErrNotFound)
	}
	return cloneOrder(order), nil
}

func (r *MemoryRepository) ListOrders(_ context.Context, status string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := []Order{}
	for _, order := range r.orders {
		if status != "" && order.Status != status {
			continue
		}
		order = cloneOrder(order)
		order.Items = nil
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (r *MemoryRepository) Assign(_ context.Context, orderID int64, driverPhone string, eta ETAFunc) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return Assignment{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if order.Status != StatusNew {
		return Assignment{}, fmt.Errorf("order %d is %s: %w", orderID, order.Status, apperr.ErrConflict)
	}

	now := r.now()
	driver, ok := r.drivers[driverPhone]
	if !ok {
		driver = Driver{Phone: driverPhone, Status: DriverAvailable, UpdatedAt: now}
	}

	minutes := eta(driver, order)
	phone := driverPhone
	order.Status = StatusAssigned
	order.AssignedDriver = &phone
	order.ETAMinutes = minutes
	r.orders[orderID] = order

	driver.ActiveOrders++
	driver.Status = DriverBusy
	driver.UpdatedAt = now
	r.drivers[driverPhone] = driver

	return Assignment{OrderID: orderID, DriverPhone: driverPhone, ETAMinutes: minutes}, nil
}

func (r *MemoryRepository) Deliver(_ context.Context, orderID int64) (Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return Delivery{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	out := Delivery{OrderID: orderID, PreviousStatus: order.Status}
	if order.AssignedDriver != nil {
		out.DriverPhone = *order.AssignedDriver
	}

	if order.Status == StatusAssigned && order.AssignedDriver != nil {
		if driver, ok := r.drivers[*order.AssignedDriver]; ok {
			driver.ActiveOrders = max(driver.ActiveOrders-1, 0)
			driver.Status = DriverBusy
			if driver.ActiveOrders == 0 {
				driver.Status = DriverAvailable
			}
			driver.UpdatedAt = r.now()
			r.drivers[driver.Phone] = driver
			out.Released = true
		}
	}

	order.Status = StatusDelivered
	r.orders[orderID] = order
	return out, nil
}

func (r *MemoryRepository) UpsertDriverLocation(_ context.Context, phone string, lat, lon *float64) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, ok := r.drivers[phone]
	if !ok {
		driver = Driver{Phone: phone, Status: DriverAvailable}
	}
	if lat != nil {
		v := *lat
		driver.Lat = &v
	}
	if lon != nil {
		v := *lon
		driver.Lon = &v
	}
	driver.UpdatedAt = r.now()
	r.drivers[phone] = driver
	return driver, nil
}

func (r *MemoryRepository) GetDriver(_ context.Context, phone string) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[phone]
	if !ok {
		return Driver{}, fmt.Errorf("driver %s: %w", phone, apperr.ErrNotFound)
	}
	return driver, nil
}

func (r *MemoryRepository) ListDrivers(_ context.Context) ([]Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drivers := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool {
		if !drivers[i].UpdatedAt.Equal(drivers[j].UpdatedAt) {
			return drivers[i].UpdatedAt.After(drivers[j].UpdatedAt)
		}
		return drivers[i].Phone < drivers[j].Phone
	})
	return drivers, nil
}

func cloneOrder(o Order) Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

var _ Repository = (*MemoryRepository)(nil)
