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
	"github.com/robuust/reverserelations/internal/repositories"
)

// RelationRepository implements repositories.RelationRepository
type RelationRepository struct {
	db          *sql.DB
	stbl        sq.StatementBuilderType
	placeholder sq.PlaceholderFormat
}

// NewRelationRepository creates a new relation repository
func NewRelationRepository(db *sql.DB, driver string) repositories.RelationRepository {
	return &RelationRepository{
		db:          db,
		stbl:        statementBuilder(db, driver),
		placeholder: database.PlaceholderFor(driver),
	}
}

// BatchWrite creates multiple relation edges in a single transaction.
// Edges that already exist are left untouched.
func (r *RelationRepository) BatchWrite(ctx context.Context, edges []*entities.RelationEdge) error {
	if len(edges) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "sqlstore.BatchWriteRelations", trace.WithAttributes(attribute.Int("edges", len(edges))))
	defer span.End()

	query, _, err := sq.Insert("relations").
		Columns("field_id", "source_id", "source_site_id", "target_id", "sort_order").
		Values(0, 0, nil, 0, 0).
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(r.placeholder).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, edge := range edges {
		if err := edge.Validate(); err != nil {
			return fmt.Errorf("invalid relation edge %s: %w", edge, err)
		}

		var siteID sql.NullInt64
		if edge.SourceSiteID != nil {
			siteID = sql.NullInt64{Int64: *edge.SourceSiteID, Valid: true}
		}

		_, err := stmt.ExecContext(ctx, edge.FieldID, edge.SourceID, siteID, edge.TargetID, edge.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to write relation %s: %w", edge, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Read retrieves relation edges matching the filter ordered by sort order
func (r *RelationRepository) Read(ctx context.Context, filter *repositories.RelationFilter) ([]*entities.RelationEdge, error) {
	q := r.stbl.Select("id", "field_id", "source_id", "source_site_id", "target_id", "sort_order").
		From("relations")

	// Build dynamic WHERE clause based on filter
	if filter != nil {
		if filter.FieldID != 0 {
			q = q.Where(sq.Eq{"field_id": filter.FieldID})
		}
		if filter.SourceIDs != nil {
			q = q.Where(sq.Eq{"source_id": filter.SourceIDs})
		}
		if filter.TargetIDs != nil {
			q = q.Where(sq.Eq{"target_id": filter.TargetIDs})
		}
		if filter.SiteID != nil {
			q = q.Where(sq.Or{
				sq.Eq{"source_site_id": nil},
				sq.Eq{"source_site_id": *filter.SiteID},
			})
		}
	}

	rows, err := q.OrderBy("sort_order", "id").QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read relations: %w", err)
	}
	defer rows.Close()

	var edges []*entities.RelationEdge
	for rows.Next() {
		var edge entities.RelationEdge
		var siteID sql.NullInt64

		err := rows.Scan(&edge.ID, &edge.FieldID, &edge.SourceID, &siteID, &edge.TargetID, &edge.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}

		if siteID.Valid {
			id := siteID.Int64
			edge.SourceSiteID = &id
		}

		edges = append(edges, &edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}

	return edges, nil
}

// ReadPairs runs a query selecting (source, target) id pairs and returns them in row order
func (r *RelationRepository) ReadPairs(ctx context.Context, q sq.SelectBuilder) ([]entities.EagerLoadPair, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.ReadPairs")
	defer span.End()

	rows, err := q.PlaceholderFormat(r.placeholder).RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read relation pairs: %w", err)
	}
	defer rows.Close()

	pairs := []entities.EagerLoadPair{}
	for rows.Next() {
		var p entities.EagerLoadPair
		if err := rows.Scan(&p.Source, &p.Target); err != nil {
			return nil, fmt.Errorf("failed to scan relation pair: %w", err)
		}
		pairs = append(pairs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation pairs: %w", err)
	}

	span.SetAttributes(attribute.Int("pairs", len(pairs)))
	return pairs, nil
}
