package repositories

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/robuust/reverserelations/internal/entities"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// RelationFilter defines filter criteria for querying relation edges
type RelationFilter struct {
	FieldID   int64   // Filter by field ID (optional)
	SourceIDs []int64 // Filter by source IDs (optional)
	TargetIDs []int64 // Filter by target IDs (optional)
	SiteID    *int64  // Only edges visible from this site (optional)
}

// RelationRepository defines the interface for relation edge data access.
// Edges are owned by the host's save pipeline; this service only reads them
// apart from fixtures and imports.
type RelationRepository interface {
	// BatchWrite creates multiple relation edges in a single transaction
	BatchWrite(ctx context.Context, edges []*entities.RelationEdge) error

	// Read retrieves relation edges matching the filter ordered by sort order
	Read(ctx context.Context, filter *RelationFilter) ([]*entities.RelationEdge, error)

	// ReadPairs runs a query selecting (source, target) id pairs and returns them in row order
	ReadPairs(ctx context.Context, q sq.SelectBuilder) ([]entities.EagerLoadPair, error)
}
