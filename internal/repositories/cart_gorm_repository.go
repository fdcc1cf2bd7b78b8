package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) Add(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
			if err := tx.Create(&item).Error; err != nil {
				return apperrors.Storage("create cart item", err)
			}
			return nil
		case err != nil:
			return apperrors.Storage("find cart item", err)
		}
		if err := tx.Model(&item).Update("quantity", gorm.Expr("quantity + ?", quantity)).Error; err != nil {
			return apperrors.Storage("increase cart quantity", err)
		}
		item.Quantity += quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GORMCartRepository) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&items).Error; err != nil {
		return nil, apperrors.Storage("list cart", err)
	}
	return items, nil
}

func (r *GORMCartRepository) UpdateQuantity(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	if res.Error != nil {
		return nil, apperrors.Storage("update cart quantity", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrCartItemNotFound
	}
	var item models.CartItem
	if err := r.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		return nil, apperrors.Storage("reload cart item", err)
	}
	return &item, nil
}

func (r *GORMCartRepository) Remove(ctx context.Context, userID, productID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return apperrors.Storage("remove cart item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCartItemNotFound
	}
	return nil
}
