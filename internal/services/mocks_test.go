package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"muebles/internal/models"
)

// MockOrderRepository is a mock implementation of repositories.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, token string, order *models.Order) (*models.Order, error) {
	args := m.Called(ctx, token, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, token string, id int64) (*models.Order, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(context.Context, string, int64) *models.Order); ok {
		return fn(ctx, token, id), args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, token string, filter models.OrderFilter) (*models.OrderPage, error) {
	args := m.Called(ctx, token, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderPage), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, token string, id int64, change models.StatusChange, adminNotes string, deliveryDate *time.Time) (*models.Order, error) {
	args := m.Called(ctx, token, id, change, adminNotes, deliveryDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateQuote(ctx context.Context, token string, id int64, quote models.Quote) (*models.Order, error) {
	args := m.Called(ctx, token, id, quote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) CreateLine(ctx context.Context, token string, orderID int64, line models.LineItem) (*models.LineItem, error) {
	args := m.Called(ctx, token, orderID, line)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LineItem), args.Error(1)
}

// MockNotifier records delivered notifications.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockIdentity is a mock implementation of services.IdentityProvider
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) Login(ctx context.Context, role models.Role, email, password string) (*models.Actor, error) {
	args := m.Called(ctx, role, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}

func (m *MockIdentity) Me(ctx context.Context, role models.Role, token string) (*models.Actor, error) {
	args := m.Called(ctx, role, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Actor), args.Error(1)
}
