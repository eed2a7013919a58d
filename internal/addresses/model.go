package addresses

import "time"

// MaxPerClient caps the saved addresses of one client.
const MaxPerClient = 3

// Column limits, in characters.
const (
	maxAliasLen   = 80
	maxAddressLen = 255
)

// Address is a saved delivery location of a client.
type Address struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"-"`
	Alias     string    `json:"alias"`
	Address   string    `json:"address"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Update carries a partial edit. Alias is always replaced; nil fields and an
// empty Address keep their stored value.
type Update struct {
	ID      int64
	Alias   string
	Address string
	Lat     *float64
	Lon     *float64
}
