package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles checkout and order history requests.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the checkout and order routes behind guard.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	router.Group("/checkout", guard).Post("/", h.HandleCheckout)

	orderRoutes := router.Group("/orders", guard)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleCheckout turns the caller's cart into a paid order.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	order, err := h.service.Checkout(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return writeError(c, err, "Internal server error during checkout.")
	}
	return c.JSON(fiber.Map{
		"message":  "Payment successful and order placed.",
		"order_id": order.ID,
		"total":    order.TotalAmount,
	})
}

// HandleGetOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return writeError(c, err, "Failed to retrieve order history")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves one of the caller's orders with its items.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, err, "Failed to retrieve order details")
	}
	order, err := h.service.GetOrder(c.UserContext(), middleware.CurrentUser(c), id)
	if err != nil {
		return writeError(c, err, "Failed to retrieve order details")
	}
	return c.JSON(order)
}
