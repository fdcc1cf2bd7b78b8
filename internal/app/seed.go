package app

import (
	"context"
	"log"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
)

// SeedCatalog populates an empty catalog with a few demo products.
func SeedCatalog(ctx context.Context, products *services.ProductService) error {
	existing, err := products.GetAllProducts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	demo := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), Stock: 10, Category: "electronics"},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), Stock: 25, Category: "electronics"},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), Stock: 50, Category: "electronics"},
	}
	for i := range demo {
		if err := products.CreateProduct(ctx, &demo[i]); err != nil {
			log.Printf("Error seeding product %s: %v", demo[i].Name, err)
			continue
		}
		log.Printf("Seeded product: %s (ID: %d)", demo[i].Name, demo[i].ID)
	}
	return nil
}
