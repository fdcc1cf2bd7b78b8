package services

import (
	"context"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ProductPage is one page of a filtered catalog listing.
type ProductPage struct {
	Items    []models.Product `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

// FilterProducts lists the catalog page selected by filter.
func (s *ProductService) FilterProducts(ctx context.Context, filter repositories.ProductFilter) (*ProductPage, error) {
	switch filter.SortBy {
	case "", "price_asc", "price_desc":
	default:
		return nil, apperrors.Validation("sort_by must be price_asc or price_desc")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, apperrors.Validation("min_price cannot exceed max_price")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	items, total, err := s.repo.Filter(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// SearchProducts matches keyword against name, description and category.
func (s *ProductService) SearchProducts(ctx context.Context, keyword string) ([]models.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperrors.Validation("keyword is required")
	}
	return s.repo.Search(ctx, keyword)
}

func checkProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.Validation("Product name is required")
	}
	if !p.Price.IsPositive() {
		return apperrors.Validation("Price must be greater than zero")
	}
	if p.Stock < 0 {
		return apperrors.Validation("Stock cannot be negative")
	}
	return nil
}
