package repository

import (
	"context"

	"account-service/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Implementations own email uniqueness: Create must fail with domain.ErrConflict
// through an atomic constraint, never a read-then-write check.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	Delete(ctx context.Context, id string) (*domain.User, error)
}
