package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductFilter narrows a catalog listing. Nil bounds are ignored.
type ProductFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	SortBy   string // "", "price_asc" or "price_desc"
	Page     int
	PageSize int
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
	Filter(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	Search(ctx context.Context, keyword string) ([]models.Product, error)
}
