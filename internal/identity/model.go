package identity

import "time"

// Client is a customer account keyed by its normalized phone number.
type Client struct {
	ID             int64
	Phone          string
	DisplayName    string
	DefaultAddress string
	LastLat        *float64
	LastLon        *float64
	CreatedAt      time.Time
	LastOrderAt    *time.Time
	OrderCount     int
	LifetimeValue  float64
	Blocked        bool
}

// Credential holds the keyed digest of a client's PIN. One per client.
type Credential struct {
	ClientID  int64
	PINHash   string
	CreatedAt time.Time
}

// OrderActivity carries the aggregates an accepted order applies to its client.
type OrderActivity struct {
	Address string
	Lat     float64
	Lon     float64
	Total   float64
	At      time.Time
}
