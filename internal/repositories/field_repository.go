package repositories

import (
	"context"

	"github.com/robuust/reverserelations/internal/entities"
)

// FieldRepository defines the interface for field definition access
type FieldRepository interface {
	// Create stores a new field and assigns its ID (and UID when empty)
	Create(ctx context.Context, field *entities.FieldConfig) error

	// GetByUID retrieves a field by its stable identifier.
	// Returns ErrNotFound when no field has the uid.
	GetByUID(ctx context.Context, uid string) (*entities.FieldConfig, error)

	// GetByID retrieves a field by its numeric id
	GetByID(ctx context.Context, id int64) (*entities.FieldConfig, error)

	// List returns every field ordered by id
	List(ctx context.Context) ([]*entities.FieldConfig, error)
}
