package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"muebles/internal/middleware"
	"muebles/internal/models"
	"muebles/internal/services"
)

// OrderHandler handles HTTP requests for drafts and orders.
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{
		service: service,
		logger:  logger.Named("http"),
	}
}

// RegisterRoutes registers the order routes. The router must already run
// middleware.AuthRequired. Literal segments are registered before /:id.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Post("/draft/lines", h.HandleAddDraftLine)
	orderRoutes.Get("/draft", h.HandleGetDraft)
	orderRoutes.Delete("/draft", h.HandleDiscardDraft)
	orderRoutes.Get("/stats", middleware.AdminRequired(), h.HandleStats)
	orderRoutes.Get("/user/:userId", h.HandleListUserOrders)
	orderRoutes.Get("/", middleware.AdminRequired(), h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Post("/:id/request-quote", h.HandleRequestQuote)
	orderRoutes.Patch("/:id/status", middleware.AdminRequired(), h.HandleUpdateStatus)
	orderRoutes.Put("/:id/quote", middleware.AdminRequired(), h.HandleRecordQuote)
}

// draftView is the detail projection of a draft served under its key.
type draftView struct {
	models.OrderSummary
	Lines   []models.LineItem `json:"lines"`
	IsDraft bool              `json:"is_draft"`
}

func newDraftView(d *models.Draft) draftView {
	return draftView{OrderSummary: d.Summarize(), Lines: d.Lines, IsDraft: true}
}

func actorOf(c *fiber.Ctx) models.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

func orderIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id", "order id must be a positive integer")
	}
	return id, nil
}

// HandleCreateOrder creates an order from explicit lines.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var in models.CreateOrderInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	order, err := h.service.CreateOrder(c.UserContext(), actorOf(c), in)
	if err != nil {
		return respondError(c, h.logger, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleAddDraftLine appends a line to the caller's draft.
func (h *OrderHandler) HandleAddDraftLine(c *fiber.Ctx) error {
	var in models.LineInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	draft, line, err := h.service.AddDraftLine(c.UserContext(), actorOf(c), in)
	if err != nil {
		return respondError(c, h.logger, "Could not add line to draft", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Line added to draft",
		"line":    line,
		"draft":   draft.Summarize(),
	})
}

// HandleGetDraft returns the caller's draft.
func (h *OrderHandler) HandleGetDraft(c *fiber.Ctx) error {
	draft, err := h.service.GetDraft(c.UserContext(), actorOf(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve draft", err)
	}
	return c.JSON(newDraftView(draft))
}

// HandleDiscardDraft drops the caller's draft.
func (h *OrderHandler) HandleDiscardDraft(c *fiber.Ctx) error {
	if err := h.service.DiscardDraft(c.UserContext(), actorOf(c)); err != nil {
		return respondError(c, h.logger, "Could not discard draft", err)
	}
	return c.JSON(fiber.Map{"message": "Draft discarded"})
}

// HandleStats returns per-status order counts and totals.
func (h *OrderHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), actorOf(c))
	if err != nil {
		return respondError(c, h.logger, "Could not compute order statistics", err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// HandleListUserOrders lists one user's orders, draft first.
func (h *OrderHandler) HandleListUserOrders(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return respondError(c, h.logger, "Could not retrieve orders", models.NewValidationError("userId", "user id must be a positive integer"))
	}
	page, err := h.service.ListUserOrders(c.UserContext(), actorOf(c), userID, c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(page)
}

// HandleListOrders lists every order, filtered by status and owner.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	filter := models.OrderFilter{
		Status: models.Status(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}
	if raw := c.Query("owner_id"); raw != "" {
		owner, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || owner <= 0 {
			return respondError(c, h.logger, "Could not retrieve orders", models.NewValidationError("owner_id", "owner id must be a positive integer"))
		}
		filter.OwnerID = &owner
	}
	page, err := h.service.ListOrders(c.UserContext(), actorOf(c), filter)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(page)
}

// HandleGetOrder returns an order with lines and history, or the caller's
// draft when the id is a draft key.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	view, err := h.service.GetOrder(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	if view.Draft != nil {
		return c.JSON(newDraftView(view.Draft))
	}
	return c.JSON(view.Order)
}

// HandleRequestQuote submits an order, or materializes a draft, for quoting.
func (h *OrderHandler) HandleRequestQuote(c *fiber.Ctx) error {
	var in models.RequestQuoteInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
	}
	order, err := h.service.RequestQuote(c.UserContext(), actorOf(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.logger, "Could not request quote", err)
	}
	return c.JSON(fiber.Map{
		"message": "Quote requested",
		"order":   order,
	})
}

// HandleUpdateStatus moves an order to a new status.
func (h *OrderHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, "Could not update order status", err)
	}
	var in models.StatusUpdateInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	order, err := h.service.UpdateStatus(c.UserContext(), actorOf(c), id, in)
	if err != nil {
		return respondError(c, h.logger, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{
		"message": "Order status updated to " + string(order.Status),
		"order":   order,
	})
}

// HandleRecordQuote prices an order's lines.
func (h *OrderHandler) HandleRecordQuote(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, "Could not record quote", err)
	}
	var in models.QuoteInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c, err)
	}
	result, err := h.service.RecordQuote(c.UserContext(), actorOf(c), id, in)
	if err != nil {
		return respondError(c, h.logger, "Could not record quote", err)
	}
	return c.JSON(result)
}
