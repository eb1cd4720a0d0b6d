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

var fieldColumns = []string{"id", "uid", "handle", "name", "type", "settings"}

// FieldRepository implements repositories.FieldRepository
type FieldRepository struct {
	stbl sq.StatementBuilderType
}

// NewFieldRepository creates a new field repository
func NewFieldRepository(db *sql.DB, driver string) repositories.FieldRepository {
	return &FieldRepository{stbl: statementBuilder(db, driver)}
}

// Create stores a new field and assigns its ID (and UID when empty)
func (r *FieldRepository) Create(ctx context.Context, field *entities.FieldConfig) error {
	if err := field.Validate(); err != nil {
		return fmt.Errorf("invalid field: %w", err)
	}

	settings, err := field.SettingsJSON()
	if err != nil {
		return err
	}

	uid := field.UID
	if uid == "" {
		uid = uuid.NewString()
	}

	var id int64
	err = r.stbl.Insert("fields").
		Columns("uid", "handle", "name", "type", "settings").
		Values(uid, field.Handle, field.Name, field.Type, settings).
		Suffix("RETURNING id").
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create field %s: %w", field.Handle, err)
	}

	field.ID = id
	field.UID = uid
	return nil
}

// GetByUID retrieves a field by its stable identifier
func (r *FieldRepository) GetByUID(ctx context.Context, uid string) (*entities.FieldConfig, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.GetFieldByUID", trace.WithAttributes(attribute.String("uid", uid)))
	defer span.End()

	row := r.stbl.Select(fieldColumns...).
		From("fields").
		Where(sq.Eq{"uid": uid}).
		QueryRowContext(ctx)

	field, err := scanField(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("failed to get field %s", uid))
	}
	return field, nil
}

// GetByID retrieves a field by its numeric id
func (r *FieldRepository) GetByID(ctx context.Context, id int64) (*entities.FieldConfig, error) {
	row := r.stbl.Select(fieldColumns...).
		From("fields").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	field, err := scanField(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("failed to get field %d", id))
	}
	return field, nil
}

// List returns every field ordered by id
func (r *FieldRepository) List(ctx context.Context) ([]*entities.FieldConfig, error) {
	rows, err := r.stbl.Select(fieldColumns...).
		From("fields").
		OrderBy("id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var fields []*entities.FieldConfig
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return fields, nil
}

func scanField(row rowScanner) (*entities.FieldConfig, error) {
	var field entities.FieldConfig
	var settings string
	if err := row.Scan(&field.ID, &field.UID, &field.Handle, &field.Name, &field.Type, &settings); err != nil {
		return nil, err
	}
	if err := field.ApplySettings(settings); err != nil {
		return nil, err
	}
	return &field, nil
}
