package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// PlaceFromCart turns the user's cart into a paid order and empties the
	// cart, all-or-nothing.
	PlaceFromCart(ctx context.Context, userID uint, placedAt time.Time) (*models.Order, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Order, error)
	GetByIDForUser(ctx context.Context, id, userID uint) (*models.Order, error)
}
