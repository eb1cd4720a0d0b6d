package repositories

import (
	"context"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/query"
)

// ElementRepository defines the interface for element access
type ElementRepository interface {
	// GetByID retrieves an element as seen from a site, regardless of its status.
	// Returns ErrNotFound when the element does not exist in that site.
	GetByID(ctx context.Context, id int64, siteID int64) (*entities.Element, error)

	// GetByIDs retrieves a batch of elements from one site, in the order of ids.
	// Returns ErrNotFound when any of them does not exist in that site.
	GetByIDs(ctx context.Context, ids []int64, siteID int64) ([]*entities.Element, error)

	// GetCanonical returns the canonical form of an element in the element's site.
	// Canonical elements are returned unchanged.
	GetCanonical(ctx context.Context, element *entities.Element) (*entities.Element, error)

	// Find executes an element query
	Find(ctx context.Context, q *query.ElementQuery) ([]*entities.Element, error)

	// IDs executes an element query and returns only the ids, in query order
	IDs(ctx context.Context, q *query.ElementQuery) ([]int64, error)
}
