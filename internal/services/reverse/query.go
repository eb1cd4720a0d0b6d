package reverse

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/query"
	"github.com/robuust/reverserelations/internal/services/relations"
)

// membershipAlias names the derived table of allowed sources
const membershipAlias = "memberships"

// BuildReverseQuery returns the query for the elements whose target field
// points at target, i.e. the edges of the target field read backwards.
//
// The query keeps the site, status and ordering of the forward value
// (relations.sort_order, the position of target within each source's value)
// but its joins are replaced: relations are matched on source_id, restricted
// to edges targeting the canonical element and visible from its site.
// When the field restricts its input sources only members of the allowed
// groups are returned.
//
// A source holding both a global and a site edge to target is returned once,
// at the lower of the two sort orders.
func (r *Resolver) BuildReverseQuery(ctx context.Context, target *entities.Element, field *entities.FieldConfig) (*query.ElementQuery, error) {
	ft, err := fieldType(field)
	if err != nil {
		return nil, err
	}

	targetField, err := r.TargetField(ctx, field)
	if err != nil {
		return nil, err
	}

	canonical, err := r.canonical(ctx, target)
	if err != nil {
		return nil, err
	}
	if canonical == nil || canonical.IsNew() {
		return nil, fmt.Errorf("cannot build reverse query for field %s: element is not saved", field.Handle)
	}

	q, err := relations.NormalizeValue(field, entities.LazyValue{}, canonical)
	if err != nil {
		return nil, err
	}

	restriction, err := r.ResolveInputSourceIDs(ctx, ft.Kind, field.InputSources)
	if err != nil {
		return nil, err
	}

	joins := []query.Join{{
		Table: relations.RelationsTable,
		On: sq.And{
			sq.Expr("relations.source_id = elements.id"),
			sq.Eq{
				"relations.target_id": canonical.ID,
				"relations.field_id":  targetField.ID,
			},
			relations.SiteVisibility(canonical.SiteID),
		},
	}}
	if !restriction.All {
		joins = append(joins, membershipJoin(ft.Kind, restriction))
	}
	q.ReplaceJoins(joins...)
	q.GroupBy = []string{"elements.id"}
	q.OrderBy = []string{"MIN(relations.sort_order)"}

	r.recorder.RecordReverseQuery(ft.Kind.Name)
	r.logger.DebugWithContext(ctx, "built reverse query",
		zap.String("field", field.Handle),
		zap.Int64("target_field_id", targetField.ID),
		zap.Int64("element_id", canonical.ID),
		zap.Bool("restricted", !restriction.All),
	)

	return q, nil
}

// NormalizeValue resolves a raw reverse field value. Explicit and cleared
// values behave like a forward field; a lazy value on a saved element is
// derived from the inverted edges of the target field.
func (r *Resolver) NormalizeValue(ctx context.Context, field *entities.FieldConfig, raw entities.RawValue, element *entities.Element) (*query.ElementQuery, error) {
	if _, err := fieldType(field); err != nil {
		return nil, err
	}

	canonical, err := r.canonical(ctx, element)
	if err != nil {
		return nil, err
	}

	switch raw.(type) {
	case entities.LazyValue, nil:
		if canonical != nil && !canonical.IsNew() {
			return r.BuildReverseQuery(ctx, canonical, field)
		}
	}

	return relations.NormalizeValue(field, raw, canonical)
}

// SourceIDs resolves a raw value and returns the ids of the live elements it selects
func (r *Resolver) SourceIDs(ctx context.Context, field *entities.FieldConfig, raw entities.RawValue, element *entities.Element) ([]int64, error) {
	q, err := r.NormalizeValue(ctx, field, raw, element)
	if err != nil {
		return nil, err
	}
	return r.elements.IDs(ctx, q)
}

// membershipJoin joins the distinct members of the allowed groups on the edge source.
// An empty group list joins nothing, so no source is returned.
func membershipJoin(kind entities.SourceKind, restriction entities.SourceRestriction) query.Join {
	members := sq.Select(kind.MembershipSourceColumn + " AS source_id").
		Distinct().
		From(kind.MembershipTable).
		Where(sq.Eq{kind.MembershipGroupColumn: restriction.GroupIDs})

	return query.Join{
		Subquery: members,
		Alias:    membershipAlias,
		On:       sq.Expr(membershipAlias + ".source_id = relations.source_id"),
	}
}
