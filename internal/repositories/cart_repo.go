package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository defines the interface for cart line access.
type CartRepository interface {
	// Add creates the (user, product) line or increases its quantity.
	Add(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error)
	List(ctx context.Context, userID uint) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID uint) error
}
