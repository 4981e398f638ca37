package repository

import (
	"context"

	"property-registry/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Implementations translate their own I/O failures into errors wrapping
// domain.ErrStorageUnavailable.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Save persists the mutable account fields: balance, cooldown state
	// and the action counters.
	Save(ctx context.Context, user *domain.User) error
}
