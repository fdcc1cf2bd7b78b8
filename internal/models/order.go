package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID              uint            `json:"-" gorm:"primaryKey"`
	OrderID         uint            `json:"-" gorm:"not null;index"`
	ProductID       uint            `json:"product_id" gorm:"not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" gorm:"type:numeric(12,2);not null"` // frozen at checkout
}

// Order is the immutable record of a completed purchase.
type Order struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"-" gorm:"not null;index"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Status      OrderStatus     `json:"status" gorm:"type:varchar(16);not null;default:pending"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// Total returns the sum of quantity times price over the items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
