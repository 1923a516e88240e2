package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/vtu_client/internal/config"
	"github.com/congo-pay/vtu_client/internal/middleware"
	"github.com/congo-pay/vtu_client/internal/session"
	"github.com/congo-pay/vtu_client/internal/storage"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Store    storage.Store
	Sessions *session.Manager
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Sessions == nil {
		return fmt.Errorf("session manager is required")
	}
	if d.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger, d.Sessions))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var rateLimiter fiber.Handler
	if d.Cache != nil {
		rateLimiter = middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit)
	}
	RegisterSessionRoutes(api, session.NewHandler(d.Sessions), middleware.RequireSession(d.Sessions), rateLimiter)

	return nil
}
