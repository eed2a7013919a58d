// Package menu serves the restaurant's fixed dish list.
package menu

import "github.com/gofiber/fiber/v2"

// Item is one dish with its unit price in soles.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

var items = []Item{
	{Name: "Chaufa", Price: 18.0},
	{Name: "Tallarín saltado", Price: 20.0},
	{Name: "Wantán frito (10u)", Price: 12.0},
	{Name: "Pollo a la brasa (1/4)", Price: 19.0},
	{Name: "Inka Kola 500ml", Price: 5.0},
}

// Items returns a copy of the menu in display order.
func Items() []Item {
	return append([]Item(nil), items...)
}

// Handler serves GET /api/menu.
func Handler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "menu": Items()})
}
