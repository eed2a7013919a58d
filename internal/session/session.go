// Package session keeps server-side login sessions keyed by an opaque id
// carried in an HTTP-only cookie.
package session

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Principal identifies the logged-in client for one request.
type Principal struct {
	ClientID int64  `json:"client_id"`
	Phone    string `json:"phone"`
}

// Store persists sessions. Get reports apperr.ErrUnauthorized for unknown or
// expired ids.
type Store interface {
	Create(ctx context.Context, p Principal) (string, error)
	Get(ctx context.Context, id string) (Principal, error)
	Delete(ctx context.Context, id string) error
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Set writes the session cookie carrying id.
func (ck Cookie) Set(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     ck.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ck.TTL.Seconds()),
		Expires:  time.Now().Add(ck.TTL),
		HTTPOnly: true,
		Secure:   ck.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear expires the session cookie on the client.
func (ck Cookie) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     ck.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   ck.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Read returns the session id sent by the client, if any.
func (ck Cookie) Read(c *fiber.Ctx) string {
	return c.Cookies(ck.Name)
}
