// Package app assembles the HTTP application from its repositories, services
// and handlers.
package app

import (
	"context"
	"time"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the process-level resources the application is built from.
// Redis, Publisher and Notifier are optional.
type Deps struct {
	Config    config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher services.EventPublisher
	Notifier  services.PasswordResetNotifier
	Clock     func() time.Time

	// DisableRequestLog silences the per-request access log.
	DisableRequestLog bool
}

// App is the assembled HTTP application.
type App struct {
	Fiber    *fiber.App
	Products *services.ProductService
}

// New wires repositories, services and handlers into a Fiber app.
func New(d Deps) *App {
	cfg := d.Config

	userRepo := repositories.NewGORMUserRepository(d.DB)
	resetRepo := repositories.NewGORMResetTokenRepository(d.DB)
	productRepo := repositories.NewGORMProductRepository(d.DB)
	cartRepo := repositories.NewGORMCartRepository(d.DB)
	orderRepo := repositories.NewGORMOrderRepository(d.DB)

	tokens := services.NewTokenService(cfg.JWT, d.Clock)
	authenticator := services.NewAuthenticator(tokens, userRepo)
	authService := services.NewAuthService(userRepo, resetRepo, services.NewBcryptHasher(cfg.BcryptCost), tokens, d.Notifier, services.AuthOptions{
		ResetTokenTTL:         cfg.ResetTokenTTL,
		UniformForgotPassword: cfg.UniformForgotPassword,
		Clock:                 d.Clock,
	})
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	orderService := services.NewOrderService(orderRepo, d.Publisher, d.Clock)

	authHandler := handlers.NewAuthHandler(authService, authenticator)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)

	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	if !d.DisableRequestLog {
		app.Use(logger.New())
	}
	app.Use(metrics.HTTPMiddleware())

	app.Get("/health", healthHandler(d.DB, d.Publisher != nil))
	app.Get("/metrics", metrics.Handler())

	limiter := middleware.RateLimit(d.Redis, cfg.RateLimitRequests, cfg.RateLimitWindow)
	for _, path := range []string{"/auth/signin", "/auth/forgot-password", "/auth/reset-password"} {
		app.Use(path, limiter)
	}

	userOnly := middleware.RequireRole(authenticator, models.RoleUser)
	adminOnly := middleware.RequireRole(authenticator, models.RoleAdmin)

	authHandler.RegisterRoutes(app)
	productHandler.RegisterRoutes(app, adminOnly)
	cartHandler.RegisterRoutes(app, userOnly)
	orderHandler.RegisterRoutes(app, userOnly)

	return &App{Fiber: app, Products: productService}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"message": message})
}

func healthHandler(db *gorm.DB, broker bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "connected",
			"rabbitmq": "disabled",
		}
		if broker {
			status["rabbitmq"] = "connected"
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		return c.JSON(status)
	}
}
