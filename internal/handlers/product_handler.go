package handlers

import (
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the public catalog routes and the admin product
// management routes guarded by admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, admin fiber.Handler) {
	adminRoutes := router.Group("/admin/products", admin)
	adminRoutes.Post("/", h.HandleCreateProduct)
	adminRoutes.Get("/", h.HandleGetAllProducts)
	adminRoutes.Get("/:id", h.HandleGetProductByID)
	adminRoutes.Put("/:id", h.HandleUpdateProduct)
	adminRoutes.Delete("/:id", h.HandleDeleteProduct)

	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleFilterProducts)
	productRoutes.Get("/search", h.HandleSearchProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
}

// ProductRequest is the body for creating or replacing a product.
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=50"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
}

func (r ProductRequest) toModel(id uint) *models.Product {
	return &models.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Price:       decimal.NewFromFloat(r.Price).Round(2),
		Stock:       r.Stock,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
	}
}

// HandleGetAllProducts retrieves all products.
func (h *ProductHandler) HandleGetAllProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return writeError(c, err, "Failed to fetch products")
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, err, "Failed to fetch product")
	}
	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, "Failed to fetch product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	product := req.toModel(0)
	if err := h.service.CreateProduct(c.UserContext(), product); err != nil {
		return writeError(c, err, "Failed to create product")
	}
	log.Printf("Product created: %s", product.Name)
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces an existing product's fields.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, err, "Failed to update product")
	}
	var req ProductRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	if err := h.service.UpdateProduct(c.UserContext(), req.toModel(id)); err != nil {
		return writeError(c, err, "Failed to update product")
	}
	updated, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, "Failed to update product")
	}
	return c.JSON(updated)
}

// HandleDeleteProduct deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return writeError(c, err, "Failed to delete product")
	}
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return writeError(c, err, "Failed to delete product")
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// HandleFilterProducts lists the catalog with optional filters and paging.
func (h *ProductHandler) HandleFilterProducts(c *fiber.Ctx) error {
	minPrice, err := floatQuery(c, "min_price")
	if err != nil {
		return writeError(c, err, "Failed to fetch products")
	}
	maxPrice, err := floatQuery(c, "max_price")
	if err != nil {
		return writeError(c, err, "Failed to fetch products")
	}

	page, err := h.service.FilterProducts(c.UserContext(), repositories.ProductFilter{
		Category: c.Query("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		SortBy:   c.Query("sort_by"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 10),
	})
	if err != nil {
		return writeError(c, err, "Failed to fetch products")
	}
	return c.JSON(page)
}

// HandleSearchProducts matches a keyword against the catalog.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	products, err := h.service.SearchProducts(c.UserContext(), c.Query("keyword"))
	if err != nil {
		return writeError(c, err, "Failed to search products")
	}
	return c.JSON(products)
}
