package repositories

import (
	"context"

	"github.com/robuust/reverserelations/internal/entities"
)

// Group is a user group or section that candidate sources can belong to
type Group struct {
	ID     int64
	UID    string
	Handle string
	Name   string
}

// GroupRepository defines the interface for source group access
type GroupRepository interface {
	// Create stores a new group of the given kind and assigns its ID (and UID when empty)
	Create(ctx context.Context, kind entities.SourceKind, group *Group) error

	// IDsByUIDs resolves group uids to ids in one query.
	// Unknown uids are skipped, so the result may be shorter than the input.
	IDsByUIDs(ctx context.Context, kind entities.SourceKind, uids []string) ([]int64, error)

	// AddMember puts a source element into a group
	AddMember(ctx context.Context, kind entities.SourceKind, groupID, sourceID int64) error
}
