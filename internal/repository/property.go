package repository

import (
	"context"

	"property-registry/internal/domain"
)

// PropertyRepository exposes persistence operations for Property records.
type PropertyRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, property *domain.Property) error
	GetByID(ctx context.Context, id string) (*domain.Property, error)
	// Save persists owner, metadata, sale state, timestamps and history.
	Save(ctx context.Context, property *domain.Property) error
	// ListByOwner returns the owner's properties ordered by acquisition
	// time, oldest first.
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Property, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	ListForSale(ctx context.Context) ([]domain.Property, error)
}
