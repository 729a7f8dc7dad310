// Package app assembles the HTTP application from its repositories,
// services and handlers.
package app

import (
	"time"

	"orderdesk/internal/handlers"
	"orderdesk/internal/metrics"
	"orderdesk/internal/middleware"
	"orderdesk/internal/repositories"
	"orderdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Options carries the settings NewApp needs beyond the store handle.
type Options struct {
	Name            string
	JWTSecret       string
	TokenTTL        time.Duration
	OrderPrefix     string
	Exchange        string
	StoreTimeout    time.Duration
	PublicRateLimit float64
	PublicRateBurst int
}

// App is the assembled HTTP application plus the services main needs at startup.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService
}

// NewApp wires repositories, services and handlers onto a Fiber app.
// publisher may be nil to disable order events.
func NewApp(db *gorm.DB, publisher services.EventPublisher, opts Options) *App {
	if opts.OrderPrefix == "" {
		opts.OrderPrefix = services.DefaultOrderPrefix
	}
	if opts.PublicRateLimit <= 0 {
		opts.PublicRateLimit = 1
	}
	if opts.PublicRateBurst <= 0 {
		opts.PublicRateBurst = 5
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, opts.JWTSecret, opts.TokenTTL)
	orderService := services.NewOrderService(orderRepo, services.NewOrderNumberGenerator(opts.OrderPrefix), publisher, opts.Exchange)
	provisioningService := services.NewProvisioningService(userRepo, authService, orderService)
	reconciliationService := services.NewReconciliationService(orderService)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService, opts.StoreTimeout)
	orderHandler := handlers.NewOrderHandler(orderService, provisioningService, reconciliationService, opts.StoreTimeout)

	// --- Initialize Fiber App ---
	app := fiber.New(fiber.Config{
		AppName: opts.Name,
	})

	// --- Middleware ---
	metrics.Register()
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${ip} ${method} ${path} ${status} ${latency}\n",
		Output: log.Logger,
	}))
	app.Use(metrics.Middleware())

	// --- API Routes ---
	authRequired := middleware.AuthRequired(authService)
	publicLimiter := middleware.RateLimit(opts.PublicRateLimit, opts.PublicRateBurst)
	authHandler.RegisterRoutes(app, authRequired)
	orderHandler.RegisterRoutes(app, authRequired, publicLimiter)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	return &App{Fiber: app, Auth: authService}
}
