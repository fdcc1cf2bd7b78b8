package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// OrderEventsQueue receives an order.placed message per committed checkout.
const OrderEventsQueue = "order_events"

// OrderPlacedEvent is the body published to OrderEventsQueue.
type OrderPlacedEvent struct {
	Event    string             `json:"event"`
	OrderID  uint               `json:"order_id"`
	UserID   uint               `json:"user_id"`
	Total    string             `json:"total"`
	Status   models.OrderStatus `json:"status"`
	PlacedAt time.Time          `json:"placed_at"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders    repositories.OrderRepository
	publisher EventPublisher
	now       func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil; a nil
// clock means time.Now.
func NewOrderService(orders repositories.OrderRepository, publisher EventPublisher, clock func() time.Time) *OrderService {
	if clock == nil {
		clock = time.Now
	}
	return &OrderService{
		orders:    orders,
		publisher: publisher,
		now:       clock,
	}
}

// Checkout converts the user's cart into a paid order.
func (s *OrderService) Checkout(ctx context.Context, user *models.User) (*models.Order, error) {
	order, err := s.orders.PlaceFromCart(ctx, user.ID, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmptyCart):
			metrics.Checkouts.WithLabelValues("empty_cart").Inc()
		default:
			metrics.Checkouts.WithLabelValues("error").Inc()
			log.Printf("Checkout failed for user %d: %v", user.ID, err)
		}
		return nil, err
	}
	metrics.Checkouts.WithLabelValues("placed").Inc()
	log.Printf("Order %d placed by user %d, total %s", order.ID, user.ID, order.TotalAmount.StringFixed(2))

	s.publishOrderPlaced(ctx, order)
	return order, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, user *models.User) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, user.ID)
}

// GetOrder returns one of the caller's orders with its items.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, id uint) (*models.Order, error) {
	return s.orders.GetByIDForUser(ctx, id, user.ID)
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(OrderPlacedEvent{
		Event:    "order.placed",
		OrderID:  order.ID,
		UserID:   order.UserID,
		Total:    order.TotalAmount.StringFixed(2),
		Status:   order.Status,
		PlacedAt: order.CreatedAt,
	})
	if err != nil {
		log.Printf("Failed to marshal order event for order %d: %v", order.ID, err)
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), OrderEventsQueue, body); err != nil {
		log.Printf("Warning: failed to publish order.placed for order %d: %v", order.ID, err)
	}
}
