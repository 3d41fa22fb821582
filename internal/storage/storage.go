// Package storage declares the repository shape shared by every aggregate.
// Adapters live in the memory and postgres subpackages.
package storage

import (
	"context"

	"github.com/google/uuid"

	"libraryflow/internal/apperr"
)

var (
	// ErrDuplicate is returned when a write breaks a uniqueness constraint
	// the services did not catch first, such as two concurrent registrations.
	ErrDuplicate = apperr.Conflict("duplicate key")
	// ErrStaleWrite is returned when a newer version of the entity is stored.
	ErrStaleWrite = apperr.Conflict("stale write")
)

// Repository is the uniform port of one aggregate.
//
// GetByID returns nil, nil when the entity does not exist. Save assigns an
// identifier when the entity has none and is idempotent afterwards.
type Repository[T any] interface {
	FindAll(ctx context.Context) ([]*T, error)
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	Save(ctx context.Context, entity *T) (*T, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
