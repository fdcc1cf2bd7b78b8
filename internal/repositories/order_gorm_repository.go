package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// cartLine is a cart row joined with the product's current price.
type cartLine struct {
	CartItemID uint
	ProductID  uint
	Quantity   int
	UnitPrice  decimal.Decimal
}

// PlaceFromCart runs the checkout transaction. Cart and product rows are
// locked on PostgreSQL; on every dialect the cart delete must remove exactly
// the rows that were priced, otherwise a concurrent checkout won and this
// one rolls back as an empty cart.
func (r *GORMOrderRepository) PlaceFromCart(ctx context.Context, userID uint, placedAt time.Time) (*models.Order, error) {
	var order *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, err := lockCartLines(tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperrors.ErrEmptyCart
		}

		placed := &models.Order{
			UserID:    userID,
			Status:    models.OrderPaid,
			CreatedAt: placedAt,
			Items:     make([]models.OrderItem, 0, len(lines)),
		}
		cartIDs := make([]uint, 0, len(lines))
		for _, line := range lines {
			placed.Items = append(placed.Items, models.OrderItem{
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				PriceAtPurchase: line.UnitPrice,
			})
			cartIDs = append(cartIDs, line.CartItemID)
		}
		placed.TotalAmount = placed.Total()

		if err := tx.Create(placed).Error; err != nil {
			return apperrors.Storage("create order", err)
		}

		res := tx.Where("id IN ? AND user_id = ?", cartIDs, userID).Delete(&models.CartItem{})
		if res.Error != nil {
			return apperrors.Storage("clear cart", res.Error)
		}
		if res.RowsAffected != int64(len(cartIDs)) {
			return apperrors.ErrEmptyCart
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func lockCartLines(tx *gorm.DB, userID uint) ([]cartLine, error) {
	q := tx.Table("cart_items").
		Select("cart_items.id AS cart_item_id, cart_items.product_id, cart_items.quantity, products.price AS unit_price").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id")
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var lines []cartLine
	if err := q.Scan(&lines).Error; err != nil {
		return nil, apperrors.Storage("read cart", err)
	}
	return lines, nil
}

// ListByUser returns the user's orders, newest first, without items.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, apperrors.Storage("list orders", err)
	}
	return orders, nil
}

// GetByIDForUser returns the order with its items only if the user owns it.
func (r *GORMOrderRepository) GetByIDForUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Storage("get order", err)
	}
	return &order, nil
}
