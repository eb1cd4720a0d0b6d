package reverse

import (
	"context"
	"fmt"

	"github.com/robuust/reverserelations/internal/entities"
)

// FieldOption is a field a reverse field can be pointed at
type FieldOption struct {
	UID   string
	Label string
}

// AvailableFields lists the fields that can serve as target field: every field
// relating the same kind of element, except fields of the caller's own type.
func (r *Resolver) AvailableFields(ctx context.Context, field *entities.FieldConfig) ([]FieldOption, error) {
	ft, err := fieldType(field)
	if err != nil {
		return nil, err
	}

	all, err := r.fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}

	options := []FieldOption{}
	for _, f := range all {
		other, ok := f.FieldType()
		if !ok || other.Kind.Name != ft.Kind.Name || f.Type == field.Type {
			continue
		}
		options = append(options, FieldOption{UID: f.UID, Label: f.Label()})
	}

	return options, nil
}
