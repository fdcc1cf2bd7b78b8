package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service, validate: newValidator()}
}

// RegisterRoutes registers the cart routes behind guard.
func (h *CartHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	cartRoutes := router.Group("/cart", guard)
	cartRoutes.Post("/", h.HandleAddItem)
	cartRoutes.Get("/", h.HandleListItems)
	cartRoutes.Put("/:product_id", h.HandleUpdateItem)
	cartRoutes.Delete("/:product_id", h.HandleRemoveItem)
}

// AddCartItemRequest is the body for adding a product to the cart.
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest is the body for changing a line's quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// HandleAddItem adds a product or increases its quantity.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddCartItemRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}
	item, err := h.service.AddItem(c.UserContext(), middleware.CurrentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, err, "Error adding item to cart")
	}
	return c.JSON(item)
}

// HandleListItems returns the caller's cart lines.
func (h *CartHandler) HandleListItems(c *fiber.Ctx) error {
	items, err := h.service.ListItems(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return writeError(c, err, "Error retrieving cart items")
	}
	return c.JSON(items)
}

// HandleUpdateItem sets a line's quantity.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	productID, err := uintParam(c, "product_id")
	if err != nil {
		return writeError(c, err, "Error updating cart item")
	}
	var req UpdateCartItemRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}
	item, err := h.service.UpdateItem(c.UserContext(), middleware.CurrentUser(c), productID, req.Quantity)
	if err != nil {
		return writeError(c, err, "Error updating cart item")
	}
	return c.JSON(item)
}

// HandleRemoveItem deletes a line from the cart.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	productID, err := uintParam(c, "product_id")
	if err != nil {
		return writeError(c, err, "Error removing cart item")
	}
	if err := h.service.RemoveItem(c.UserContext(), middleware.CurrentUser(c), productID); err != nil {
		return writeError(c, err, "Error removing cart item")
	}
	return c.JSON(fiber.Map{"message": "Item removed from cart"})
}
