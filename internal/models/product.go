package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(50);not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null"`
	Category    string          `json:"category" gorm:"index"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
