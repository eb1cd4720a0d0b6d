// Package relations implements the native forward relation field: the query a
// relation field value resolves to and its eager-loading map.
package relations

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/query"
)

// ErrUnknownFieldType is returned for fields whose type is not registered
var ErrUnknownFieldType = errors.New("unknown field type")

// RelationsTable is the edge table joined by relation field queries
const RelationsTable = "relations"

// TargetSiteID returns the site related elements are materialized in:
// the field's fixed site, else the element's site, else nil.
func TargetSiteID(field *entities.FieldConfig, element *entities.Element) *int64 {
	if field.TargetSiteID != nil {
		site := *field.TargetSiteID
		return &site
	}
	if element != nil && element.SiteID != 0 {
		site := element.SiteID
		return &site
	}
	return nil
}

// Kind returns the source kind of a relation field
func Kind(field *entities.FieldConfig) (entities.SourceKind, error) {
	ft, ok := field.FieldType()
	if !ok {
		return entities.SourceKind{}, fmt.Errorf("%w: %q (field %s)", ErrUnknownFieldType, field.Type, field.Handle)
	}
	return ft.Kind, nil
}

// NormalizeValue turns a raw field value into the element query it stands for.
//
// An explicit id list selects those ids in the given order. A cleared value,
// or any value on an element that has not been saved yet, selects nothing.
// Otherwise the stored relations of the element are followed.
func NormalizeValue(field *entities.FieldConfig, raw entities.RawValue, element *entities.Element) (*query.ElementQuery, error) {
	kind, err := Kind(field)
	if err != nil {
		return nil, err
	}

	q := query.New(kind)
	q.SiteID = TargetSiteID(field, element)

	switch v := raw.(type) {
	case entities.IDListValue:
		q.IDs = append([]int64{}, v...)
		q.FixedOrder = true
		return q, nil
	case entities.EmptyValue:
		q.IDs = []int64{}
		return q, nil
	case entities.LazyValue, nil:
	default:
		return nil, fmt.Errorf("unsupported value %T for field %s", raw, field.Handle)
	}

	if element == nil || element.IsNew() {
		q.IDs = []int64{}
		return q, nil
	}

	q.InnerJoin(query.Join{
		Table: RelationsTable,
		On: sq.And{
			sq.Expr("relations.target_id = elements.id"),
			sq.Eq{
				"relations.source_id": element.ID,
				"relations.field_id":  field.ID,
			},
			SiteVisibility(element.SiteID),
		},
	})
	q.OrderBy = []string{"relations.sort_order"}

	return q, nil
}

// SiteVisibility matches edges saved from siteID or saved for every site
func SiteVisibility(siteID int64) sq.Sqlizer {
	return sq.Or{
		sq.Eq{"relations.source_site_id": nil},
		sq.Eq{"relations.source_site_id": siteID},
	}
}
