package repositories

import (
	"context"
	"time"

	"muebles/internal/models"
)

// OrderRepository defines the persistence contract for orders. The token is
// the caller's bearer credential; implementations that own their storage
// may ignore it.
type OrderRepository interface {
	Create(ctx context.Context, token string, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, token string, id int64) (*models.Order, error)
	List(ctx context.Context, token string, filter models.OrderFilter) (*models.OrderPage, error)
	UpdateStatus(ctx context.Context, token string, id int64, change models.StatusChange, adminNotes string, deliveryDate *time.Time) (*models.Order, error)
	UpdateQuote(ctx context.Context, token string, id int64, quote models.Quote) (*models.Order, error)
	CreateLine(ctx context.Context, token string, orderID int64, line models.LineItem) (*models.LineItem, error)
}
