package services_test

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == 0 {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockResetTokenRepository is a mock implementation of repositories.ResetTokenRepository
type MockResetTokenRepository struct {
	mock.Mock
}

func (m *MockResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockResetTokenRepository) Redeem(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (uint, error) {
	args := m.Called(ctx, tokenHash, now, newPasswordHash)
	return args.Get(0).(uint), args.Error(1)
}

// MockOrderRepository is a mock implementation of repositories.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) PlaceFromCart(ctx context.Context, userID uint, placedAt time.Time) (*models.Order, error) {
	args := m.Called(ctx, userID, placedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIDForUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) Filter(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) Search(ctx context.Context, keyword string) ([]models.Product, error) {
	args := m.Called(ctx, keyword)
	return args.Get(0).([]models.Product), args.Error(1)
}

// MockCartRepository is a mock implementation of repositories.CartRepository
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Add(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *MockCartRepository) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.CartItem), args.Error(1)
}

func (m *MockCartRepository) UpdateQuantity(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *MockCartRepository) Remove(ctx context.Context, userID, productID uint) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

// MockNotifier records reset notifications.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyPasswordReset(email, token string) {
	m.Called(email, token)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	args := m.Called(ctx, queue, body)
	return args.Error(0)
}
