package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"muebles/internal/services"
)

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	service *services.NotificationService
	logger  *zap.Logger
}

func NewNotificationHandler(service *services.NotificationService, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{service: service, logger: logger.Named("http")}
}

func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/notifications", h.HandleList)
}

func (h *NotificationHandler) HandleList(c *fiber.Ctx) error {
	list, err := h.service.ForActor(c.UserContext(), actorOf(c), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve notifications", err)
	}
	return c.JSON(fiber.Map{"notifications": list})
}
