package dispatch

import "time"

// Order statuses. Orders move new -> assigned -> delivered; cancelled is
// reserved and never entered by this service.
const (
	StatusNew       = "new"
	StatusAssigned  = "assigned"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Column limits for order text fields, in characters.
const (
	MaxAddressLen  = 255
	MaxItemNameLen = 120
	MaxItemQty     = 1<<31 - 1
)

// Driver statuses.
const (
	DriverAvailable = "available"
	DriverBusy      = "busy"
	DriverOffline   = "offline"
)

// OrderItem is an immutable line snapshot taken when the order is placed.
type OrderItem struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// Order is a customer request for delivery.
type Order struct {
	ID             int64
	ClientID       *int64
	Address        string
	Lat            float64
	Lon            float64
	Items          []OrderItem
	Total          float64
	Status         string
	AssignedDriver *string
	ETAMinutes     *int
	CreatedAt      time.Time
}

// Driver is a courier identified by normalized phone.
type Driver struct {
	Phone        string
	Lat          *float64
	Lon          *float64
	Status       string
	ActiveOrders int
	UpdatedAt    time.Time
}

// NewOrder is the input to CreateOrder. ClientID zero means anonymous.
type NewOrder struct {
	ClientID int64
	Address  string
	Lat      *float64
	Lon      *float64
	Items    []OrderItem
}

// Assignment is the outcome of a successful assign.
type Assignment struct {
	OrderID     int64
	DriverPhone string
	ETAMinutes  *int
}

// Delivery reports what a deliver call changed.
type Delivery struct {
	OrderID        int64
	PreviousStatus string
	DriverPhone    string
	Released       bool
}
