package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, apperrors.Storage("get all products", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.Storage("get product by id", err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return apperrors.Storage("create product", err)
	}
	return nil
}

// Update overwrites the editable fields of an existing product.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("name", "description", "price", "stock", "category", "image_url", "updated_at").
		Updates(product)
	if res.Error != nil {
		return apperrors.Storage("update product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrProductNotFound
	}
	return nil
}

// Delete removes a product and any cart lines still pointing at it. Order
// items keep their snapshot.
func (r *GORMProductRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return apperrors.Storage("delete cart lines for product", err)
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return apperrors.Storage("delete product", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrProductNotFound
		}
		return nil
	})
}

// Filter returns one page of products matching filter and the total match count.
func (r *GORMProductRepository) Filter(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Storage("count products", err)
	}

	switch filter.SortBy {
	case "price_asc":
		q = q.Order("price ASC")
	case "price_desc":
		q = q.Order("price DESC")
	default:
		q = q.Order("id")
	}

	var products []models.Product
	offset := (filter.Page - 1) * filter.PageSize
	if err := q.Offset(offset).Limit(filter.PageSize).Find(&products).Error; err != nil {
		return nil, 0, apperrors.Storage("filter products", err)
	}
	return products, total, nil
}

// Search matches keyword case-insensitively against name, description and category.
func (r *GORMProductRepository) Search(ctx context.Context, keyword string) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?", pattern, pattern, pattern).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, apperrors.Storage("search products", err)
	}
	return products, nil
}
