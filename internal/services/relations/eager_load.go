package relations

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/repositories"
)

// Service loads forward relation values in batches
type Service struct {
	relations repositories.RelationRepository
}

// NewService creates a new forward relation service
func NewService(relations repositories.RelationRepository) *Service {
	return &Service{
		relations: relations,
	}
}

// EagerLoadingMap returns the (source, target) pairs of a forward field for a
// batch of owning elements, in sort order. Edges are matched against the site
// of the first element only.
func (s *Service) EagerLoadingMap(ctx context.Context, field *entities.FieldConfig, sources []*entities.Element) (*entities.EagerLoadMap, error) {
	kind, err := Kind(field)
	if err != nil {
		return nil, err
	}

	var first *entities.Element
	if len(sources) > 0 {
		first = sources[0]
	}
	batch := NewBatch(sources)

	q := sq.Select("relations.source_id AS source", "relations.target_id AS target").
		From(RelationsTable).
		InnerJoin(fmt.Sprintf("%s ON relations.target_id = %s.id", kind.Table, kind.Table)).
		Where(sq.Eq{
			"relations.field_id":  field.ID,
			"relations.source_id": batch.IDs,
		}).
		Where(BatchSiteVisibility(first)).
		GroupBy("relations.source_id", "relations.target_id").
		OrderBy("MIN(relations.sort_order) ASC")

	rows, err := s.relations.ReadPairs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s relations: %w", field.Handle, err)
	}

	return &entities.EagerLoadMap{
		ElementType: kind.Name,
		Pairs:       batch.Expand(rows),
		Criteria: entities.EagerLoadCriteria{
			SiteID: TargetSiteID(field, first),
		},
	}, nil
}

// Batch maps the elements of an eager-loading batch to the canonical ids
// their relations are recorded against.
type Batch struct {
	IDs    []int64           // Distinct canonical ids, in batch order
	owners map[int64][]int64 // canonical id -> ids as passed, in batch order
}

// NewBatch builds the batch of elements. Derivatives are matched through
// their canonical element.
func NewBatch(elements []*entities.Element) *Batch {
	b := &Batch{
		IDs:    make([]int64, 0, len(elements)),
		owners: make(map[int64][]int64, len(elements)),
	}
	for _, el := range elements {
		id := el.CanonicalIDOrSelf()
		if _, seen := b.owners[id]; !seen {
			b.IDs = append(b.IDs, id)
		}
		b.owners[id] = append(b.owners[id], el.ID)
	}
	return b
}

// Expand rekeys pairs read for canonical ids to the ids that were requested.
// A canonical id requested through several elements yields one pair each.
func (b *Batch) Expand(rows []entities.EagerLoadPair) []entities.EagerLoadPair {
	pairs := make([]entities.EagerLoadPair, 0, len(rows))
	for _, p := range rows {
		for _, owner := range b.owners[p.Source] {
			pairs = append(pairs, entities.EagerLoadPair{Source: owner, Target: p.Target})
		}
	}
	return pairs
}

// BatchSiteVisibility matches edges visible from the site of the first element
// of a batch. Without a first element only edges saved for every site match.
func BatchSiteVisibility(first *entities.Element) sq.Sqlizer {
	if first == nil {
		return sq.Eq{"relations.source_site_id": nil}
	}
	return SiteVisibility(first.SiteID)
}
