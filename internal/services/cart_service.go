package services

import (
	"context"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// CartService manages the caller's cart lines.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// AddItem puts quantity units of a product in the user's cart.
func (s *CartService) AddItem(ctx context.Context, user *models.User, productID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperrors.Validation("Quantity must be greater than zero")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.carts.Add(ctx, user.ID, productID, quantity)
}

// ListItems returns the user's cart lines.
func (s *CartService) ListItems(ctx context.Context, user *models.User) ([]models.CartItem, error) {
	return s.carts.List(ctx, user.ID)
}

// UpdateItem sets the quantity of an existing line.
func (s *CartService) UpdateItem(ctx context.Context, user *models.User, productID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperrors.Validation("Quantity must be greater than zero")
	}
	return s.carts.UpdateQuantity(ctx, user.ID, productID, quantity)
}

// RemoveItem deletes a line from the user's cart.
func (s *CartService) RemoveItem(ctx context.Context, user *models.User, productID uint) error {
	return s.carts.Remove(ctx, user.ID, productID)
}
