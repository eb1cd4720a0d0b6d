package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/infrastructure/database"
	"github.com/robuust/reverserelations/internal/query"
	"github.com/robuust/reverserelations/internal/repositories"
)

// ElementRepository implements repositories.ElementRepository
type ElementRepository struct {
	db          *sql.DB
	stbl        sq.StatementBuilderType
	placeholder sq.PlaceholderFormat
}

// NewElementRepository creates a new element repository
func NewElementRepository(db *sql.DB, driver string) repositories.ElementRepository {
	return &ElementRepository{
		db:          db,
		stbl:        statementBuilder(db, driver),
		placeholder: database.PlaceholderFor(driver),
	}
}

// GetByID retrieves an element as seen from a site, regardless of its status
func (r *ElementRepository) GetByID(ctx context.Context, id int64, siteID int64) (*entities.Element, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.GetElement", trace.WithAttributes(
		attribute.Int64("element_id", id),
		attribute.Int64("site_id", siteID),
	))
	defer span.End()

	row := r.stbl.Select(query.Columns...).
		From("elements").
		InnerJoin("elements_sites ON elements_sites.element_id = elements.id AND elements_sites.site_id = ?", siteID).
		Where(sq.Eq{"elements.id": id}).
		QueryRowContext(ctx)

	el, err := scanElement(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("failed to get element %d in site %d", id, siteID))
	}
	el.SiteID = siteID

	return el, nil
}

// GetByIDs retrieves a batch of elements from one site in a single query
func (r *ElementRepository) GetByIDs(ctx context.Context, ids []int64, siteID int64) ([]*entities.Element, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.GetElements", trace.WithAttributes(
		attribute.Int("count", len(ids)),
		attribute.Int64("site_id", siteID),
	))
	defer span.End()

	if len(ids) == 0 {
		return []*entities.Element{}, nil
	}

	rows, err := r.stbl.Select(query.Columns...).
		From("elements").
		InnerJoin("elements_sites ON elements_sites.element_id = elements.id AND elements_sites.site_id = ?", siteID).
		Where(sq.Eq{"elements.id": ids}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get elements in site %d: %w", siteID, err)
	}
	defer rows.Close()

	found := make(map[int64]*entities.Element, len(ids))
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		el.SiteID = siteID
		found[el.ID] = el
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	elements := make([]*entities.Element, 0, len(ids))
	for _, id := range ids {
		el, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("failed to get element %d in site %d: %w", id, siteID, repositories.ErrNotFound)
		}
		c := *el
		elements = append(elements, &c)
	}
	return elements, nil
}

// GetCanonical returns the canonical form of an element in the element's site
func (r *ElementRepository) GetCanonical(ctx context.Context, element *entities.Element) (*entities.Element, error) {
	if !element.IsDerivative() {
		return element, nil
	}
	return r.GetByID(ctx, element.CanonicalID, element.SiteID)
}

// Find executes an element query
func (r *ElementRepository) Find(ctx context.Context, q *query.ElementQuery) ([]*entities.Element, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.FindElements", trace.WithAttributes(
		attribute.String("kind", q.Kind.Name),
	))
	defer span.End()

	stmt, args, err := q.ToSQL(r.placeholder)
	if err != nil {
		return nil, fmt.Errorf("failed to build element query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find elements: %w", err)
	}
	defer rows.Close()

	var elements []*entities.Element
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		if q.SiteID != nil {
			el.SiteID = *q.SiteID
		}
		elements = append(elements, el)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(elements)))
	return elements, nil
}

// IDs executes an element query and returns only the ids, in query order
func (r *ElementRepository) IDs(ctx context.Context, q *query.ElementQuery) ([]int64, error) {
	elements, err := r.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(elements))
	for _, el := range elements {
		ids = append(ids, el.ID)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanElement scans a row selected with query.Columns
func scanElement(row rowScanner) (*entities.Element, error) {
	var el entities.Element
	var canonicalID sql.NullInt64
	if err := row.Scan(&el.ID, &el.Kind, &canonicalID, &el.Enabled, &el.Deleted); err != nil {
		return nil, err
	}
	if canonicalID.Valid {
		el.CanonicalID = canonicalID.Int64
	}
	return &el, nil
}
