package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/repositories"
)

// GroupRepository implements repositories.GroupRepository
type GroupRepository struct {
	stbl sq.StatementBuilderType
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB, driver string) repositories.GroupRepository {
	return &GroupRepository{stbl: statementBuilder(db, driver)}
}

// Create stores a new group of the given kind
func (r *GroupRepository) Create(ctx context.Context, kind entities.SourceKind, group *repositories.Group) error {
	if group.Handle == "" {
		return fmt.Errorf("group handle is required")
	}

	uid := group.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	name := group.Name
	if name == "" {
		name = group.Handle
	}

	var id int64
	err := r.stbl.Insert(kind.GroupTable).
		Columns("uid", "handle", "name").
		Values(uid, group.Handle, name).
		Suffix("RETURNING id").
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create %s %s: %w", kind.GroupPrefix, group.Handle, err)
	}

	group.ID = id
	group.UID = uid
	group.Name = name
	return nil
}

// IDsByUIDs resolves group uids to ids in one query. Unknown uids are skipped.
func (r *GroupRepository) IDsByUIDs(ctx context.Context, kind entities.SourceKind, uids []string) ([]int64, error) {
	if len(uids) == 0 {
		return []int64{}, nil
	}

	ctx, span := tracer.Start(ctx, "sqlstore.GroupIDsByUIDs", trace.WithAttributes(
		attribute.String("table", kind.GroupTable),
		attribute.Int("uids", len(uids)),
	))
	defer span.End()

	rows, err := r.stbl.Select("id").
		From(kind.GroupTable).
		Where(sq.Eq{"uid": uids}).
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s uids: %w", kind.GroupPrefix, err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(uids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", kind.GroupPrefix, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s ids: %w", kind.GroupPrefix, err)
	}

	return ids, nil
}

// AddMember puts a source element into a group.
// Kinds whose membership lives on the content row (entries.section_id) are moved instead.
func (r *GroupRepository) AddMember(ctx context.Context, kind entities.SourceKind, groupID, sourceID int64) error {
	var err error
	if kind.MembershipTable == kind.Table {
		_, err = r.stbl.Update(kind.Table).
			Set(kind.MembershipGroupColumn, groupID).
			Where(sq.Eq{kind.MembershipSourceColumn: sourceID}).
			ExecContext(ctx)
	} else {
		_, err = r.stbl.Insert(kind.MembershipTable).
			Columns(kind.MembershipGroupColumn, kind.MembershipSourceColumn).
			Values(groupID, sourceID).
			Suffix("ON CONFLICT DO NOTHING").
			ExecContext(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to add %d to %s %d: %w", sourceID, kind.GroupPrefix, groupID, err)
	}
	return nil
}
