package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"muebles/internal/handlers"
	"muebles/internal/middleware"
	"muebles/internal/repositories"
	"muebles/internal/services"
)

// appDeps is everything the HTTP layer needs, already constructed.
type appDeps struct {
	Orders        repositories.OrderRepository
	Drafts        repositories.DraftRepository
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Notifier      services.Notifier
	Identity      services.IdentityProvider
	JWTSecret     string
	Backend       string
	Logger        *zap.Logger
}

// newApp wires services and handlers into a Fiber app.
func newApp(deps appDeps) *fiber.App {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	authService := services.NewAuthService(deps.Users, deps.Identity, deps.JWTSecret, log)
	orderService := services.NewOrderService(deps.Orders, deps.Drafts, deps.Notifier, log)
	notificationService := services.NewNotificationService(deps.Notifications)

	authHandler := handlers.NewAuthHandler(authService, log)
	orderHandler := handlers.NewOrderHandler(orderService, log)
	notificationHandler := handlers.NewNotificationHandler(notificationService, log)

	app := fiber.New(fiber.Config{
		AppName: "muebles",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"message": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"time":    time.Now().Format(time.RFC3339),
			"backend": deps.Backend,
		})
	})

	apiV1 := app.Group("/api/v1")
	authRequired := middleware.AuthRequired(authService, log)
	authHandler.RegisterRoutes(apiV1, authRequired)

	protected := apiV1.Group("", authRequired)
	orderHandler.RegisterRoutes(protected)
	notificationHandler.RegisterRoutes(protected)

	return app
}
