package handlers

import (
	"strings"

	"restaurante/internal/models"
	"restaurante/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the customer-facing order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Get("/:id/tracking", h.HandleTrackOrder)
}

// RegisterAdminRoutes registers the operator routes. router is expected to
// be behind the JWT middleware.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	adminRoutes := router.Group("/orders")
	adminRoutes.Get("/", h.HandleListOrders)
	adminRoutes.Get("/:id", h.HandleGetOrderByID)
	adminRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
	adminRoutes.Post("/:id/advance", h.HandleAdvanceOrder)
	adminRoutes.Post("/:id/confirm-payment", h.HandleConfirmPayment)
	adminRoutes.Post("/:id/reject-payment", h.HandleRejectPayment)
}

// HandleCreateOrder creates a new order from a checkout submission.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.service.CreateOrder(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Could not create order")
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve order")
	}
	return c.JSON(order)
}

// HandleTrackOrder returns the progress view shown to the customer.
func (h *OrderHandler) HandleTrackOrder(c *fiber.Ctx) error {
	view, err := h.service.TrackOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve order tracking")
	}
	return c.JSON(view)
}

// HandleListOrders lists orders in queue order, optionally filtered.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	filter := models.OrderFilter{
		Status:       models.OrderStatus(c.Query("status")),
		DeliveryType: models.DeliveryType(c.Query("delivery_type")),
		ActiveOnly:   c.QueryBool("active", false),
		Limit:        c.QueryInt("limit", 0),
		Offset:       c.QueryInt("offset", 0),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid status filter: " + string(filter.Status),
		})
	}
	if filter.DeliveryType != "" && !filter.DeliveryType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid delivery_type filter: " + string(filter.DeliveryType),
		})
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "limit and offset must not be negative",
		})
	}

	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// UpdateStatusRequest is the body of PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status     models.OrderStatus `json:"status" validate:"required"`
	AdminNotes *string            `json:"admin_notes" validate:"omitempty,max=1000"`
}

// HandleUpdateOrderStatus moves an order forward or cancels it.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body for status update", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	if !req.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid order status: " + string(req.Status),
		})
	}
	if req.AdminNotes != nil && strings.TrimSpace(*req.AdminNotes) == "" {
		req.AdminNotes = nil
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), c.Params("id"), req.Status, req.AdminNotes)
	if err != nil {
		return respondError(c, err, "Could not update order status")
	}
	return c.JSON(order)
}

// HandleAdvanceOrder moves an order to its next status.
func (h *OrderHandler) HandleAdvanceOrder(c *fiber.Ctx) error {
	order, err := h.service.AdvanceOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not advance order")
	}
	return c.JSON(order)
}

// HandleConfirmPayment confirms a pending payment.
func (h *OrderHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	order, err := h.service.ConfirmPayment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not confirm payment")
	}
	return c.JSON(order)
}

// HandleRejectPayment rejects a pending payment, cancelling the order.
func (h *OrderHandler) HandleRejectPayment(c *fiber.Ctx) error {
	order, err := h.service.RejectPayment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not reject payment")
	}
	return c.JSON(order)
}
