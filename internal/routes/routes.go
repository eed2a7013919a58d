package routes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/yeraldo2021/app-delivery-2025/internal/addresses"
	"github.com/yeraldo2021/app-delivery-2025/internal/config"
	"github.com/yeraldo2021/app-delivery-2025/internal/dispatch"
	"github.com/yeraldo2021/app-delivery-2025/internal/events"
	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
	"github.com/yeraldo2021/app-delivery-2025/internal/menu"
	"github.com/yeraldo2021/app-delivery-2025/internal/middleware"
	"github.com/yeraldo2021/app-delivery-2025/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	Events events.Publisher
}

// Setup configures middlewares and all application routes. Without a
// database or Redis (development only) in-memory backends are used.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = events.NewLoggerPublisher(d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cfg.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{AllowOrigins: d.Cfg.CORSOrigins, AllowCredentials: true}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).SendString("pong")
	})

	// Storage backends
	var (
		identityRepo identity.Repository
		dispatchRepo dispatch.Repository
		addressRepo  addresses.Repository
		sessions     session.Store
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		dispatchRepo = dispatch.NewPostgresRepository(d.DB)
		addressRepo = addresses.NewPostgresRepository(d.DB)
	} else {
		clients := identity.NewMemoryRepository()
		identityRepo = clients
		dispatchRepo = dispatch.NewMemoryRepository(clients)
		addressRepo = addresses.NewMemoryRepository()
	}
	if d.Cache != nil {
		sessions = session.NewRedisStore(d.Cache, d.Cfg.SessionTTL)
	} else {
		sessions = session.NewMemoryStore(d.Cfg.SessionTTL)
	}
	cookie := session.Cookie{Name: d.Cfg.SessionCookie, TTL: d.Cfg.SessionTTL, Secure: !d.Cfg.IsDev()}

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, d.Cfg.PINSecret, d.Logger)
	identityHandler := identity.NewHandler(identitySvc, sessions, cookie, d.Logger)
	dispatchHandler := dispatch.NewHandler(dispatch.NewService(dispatchRepo, d.Events, d.Logger))
	addressHandler := addresses.NewHandler(addresses.NewService(addressRepo))

	requireSession := middleware.RequireSession(sessions, cookie)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttempts)
	idempotency := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	app.Get("/logout", identityHandler.Logout)

	api := app.Group("/api")
	api.Get("/menu", menu.Handler)
	RegisterAuthRoutes(api, identityHandler, rateLimiter, requireSession)
	RegisterAddressRoutes(api, addressHandler, requireSession)
	RegisterOrderRoutes(api, dispatchHandler, requireSession, idempotency)
	RegisterDriverRoutes(api, dispatchHandler)

	return nil
}
