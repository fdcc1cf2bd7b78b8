package models

// CartItem is one product line in a user's cart. There is at most one row
// per (user, product).
type CartItem struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	UserID    uint `json:"user_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductID uint `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int  `json:"quantity" gorm:"not null"`
}
