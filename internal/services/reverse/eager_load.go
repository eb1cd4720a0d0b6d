package reverse

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/services/relations"
)

// GetEagerLoadingMap returns, for a batch of target elements, the sources whose
// target field points at each of them, in one query ordered by sort order.
//
// Pairs are read backwards: Source is the edge's target (the owning element of
// the reverse value) and Target is the edge's source. Edges are matched against
// the canonical id of each element, while pairs are keyed by the id the caller
// passed, so a draft gets the sources of its canonical element. Edges are
// matched against the site of the first element only; batches spanning sites
// are not split. An empty batch still runs the query and yields no pairs.
func (r *Resolver) GetEagerLoadingMap(ctx context.Context, field *entities.FieldConfig, targets []*entities.Element) (*entities.EagerLoadMap, error) {
	ft, err := fieldType(field)
	if err != nil {
		return nil, err
	}

	targetField, err := r.TargetField(ctx, field)
	if err != nil {
		return nil, err
	}

	var first *entities.Element
	if len(targets) > 0 {
		first = targets[0]
	}

	batch := relations.NewBatch(targets)

	restriction, err := r.ResolveInputSourceIDs(ctx, ft.Kind, field.InputSources)
	if err != nil {
		return nil, err
	}

	table := ft.Kind.Table
	q := sq.Select("relations.target_id AS source", "relations.source_id AS target").
		From(relations.RelationsTable).
		InnerJoin(fmt.Sprintf("%s ON relations.source_id = %s.id", table, table))
	if !restriction.All {
		q = q.JoinClause(membershipJoin(ft.Kind, restriction))
	}
	q = q.Where(sq.Eq{
		"relations.field_id":  targetField.ID,
		"relations.target_id": batch.IDs,
	}).
		Where(relations.BatchSiteVisibility(first)).
		GroupBy("relations.target_id", "relations.source_id").
		OrderBy("MIN(relations.sort_order) ASC")

	rows, err := r.relations.ReadPairs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load reverse relations of %s: %w", field.Handle, err)
	}

	pairs := batch.Expand(rows)

	r.recorder.RecordEagerLoad(ft.Kind.Name, len(targets), len(pairs))
	r.logger.DebugWithContext(ctx, "built eager-loading map",
		zap.String("field", field.Handle),
		zap.Int("batch", len(targets)),
		zap.Int("pairs", len(pairs)),
	)

	return &entities.EagerLoadMap{
		ElementType: ft.Kind.Name,
		Pairs:       pairs,
		Criteria: entities.EagerLoadCriteria{
			SiteID: relations.TargetSiteID(field, first),
		},
	}, nil
}
