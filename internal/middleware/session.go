package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/session"
)

const principalLocal = "principal"

// RequireSession rejects requests without a live session and exposes the
// principal through c.Locals and the request context.
func RequireSession(store session.Store, cookie session.Cookie) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := store.Get(c.UserContext(), cookie.Read(c))
		if errors.Is(err, apperr.ErrUnauthorized) {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		if err != nil {
			return err
		}
		c.Locals(principalLocal, p)
		c.SetUserContext(session.WithPrincipal(c.UserContext(), p))
		return c.Next()
	}
}

// Principal returns the principal stored by RequireSession.
func Principal(c *fiber.Ctx) (session.Principal, bool) {
	p, ok := c.Locals(principalLocal).(session.Principal)
	return p, ok
}
