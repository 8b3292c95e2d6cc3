package repositories

import (
	"context"

	"muebles/internal/models"
)

// UserRepository defines the interface for local account access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
