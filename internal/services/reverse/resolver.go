// Package reverse resolves reverse relation fields: read-only views that list,
// for a target element, the elements whose forward relation field points at it.
//
// No edges are ever written here. Every operation inverts the edges recorded by
// a forward field (the field's target field) at query time.
package reverse

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/infrastructure/logger"
	"github.com/robuust/reverserelations/internal/repositories"
)

var (
	// ErrTargetFieldNotFound is returned when a reverse field's target field uid
	// does not resolve. This is a configuration error and is never recovered.
	ErrTargetFieldNotFound = errors.New("target field not found")

	// ErrUnsupportedFieldType is returned when a field is not a registered reverse field type
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// Recorder receives resolver events. metrics.Collector implements it.
type Recorder interface {
	RecordReverseQuery(kind string)
	RecordEagerLoad(kind string, batchSize, pairs int)
	RecordDroppedSources(kind string, n int)
	RecordSnapshot(kind string, size int)
}

type noopRecorder struct{}

func (noopRecorder) RecordReverseQuery(string)        {}
func (noopRecorder) RecordEagerLoad(string, int, int) {}
func (noopRecorder) RecordDroppedSources(string, int) {}
func (noopRecorder) RecordSnapshot(string, int)       {}

// Resolver implements the reverse relation field operations for every
// registered reverse field type. The source kind is taken from the field type.
type Resolver struct {
	fields    repositories.FieldRepository
	groups    repositories.GroupRepository
	elements  repositories.ElementRepository
	relations repositories.RelationRepository
	logger    logger.Logger
	recorder  Recorder
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the resolver logger
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

// NewResolver creates a new Resolver
func NewResolver(
	fields repositories.FieldRepository,
	groups repositories.GroupRepository,
	elements repositories.ElementRepository,
	relations repositories.RelationRepository,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		fields:    fields,
		groups:    groups,
		elements:  elements,
		relations: relations,
		logger:    logger.NewNoopLogger(),
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fieldType returns the registered reverse type of field
func fieldType(field *entities.FieldConfig) (entities.FieldType, error) {
	ft, ok := field.FieldType()
	if !ok || !ft.Reverse {
		return entities.FieldType{}, fmt.Errorf("%w: %q (field %s)", ErrUnsupportedFieldType, field.Type, field.Handle)
	}
	return ft, nil
}

// TargetField resolves the forward field whose edges field inverts
func (r *Resolver) TargetField(ctx context.Context, field *entities.FieldConfig) (*entities.FieldConfig, error) {
	if field.TargetFieldUID == "" {
		return nil, fmt.Errorf("%w: field %s has no target field", ErrTargetFieldNotFound, field.Handle)
	}

	target, err := r.fields.GetByUID(ctx, field.TargetFieldUID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s (field %s)", ErrTargetFieldNotFound, field.TargetFieldUID, field.Handle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target field of %s: %w", field.Handle, err)
	}

	return target, nil
}

// canonical resolves the canonical form of element. When the canonical
// element is not visible in the element's site the element itself is used.
func (r *Resolver) canonical(ctx context.Context, element *entities.Element) (*entities.Element, error) {
	if element == nil || !element.IsDerivative() {
		return element, nil
	}

	canonical, err := r.elements.GetCanonical(ctx, element)
	if errors.Is(err, repositories.ErrNotFound) {
		r.logger.DebugWithContext(ctx, "canonical element not found, using derivative",
			zap.Int64("element_id", element.ID),
			zap.Int64("canonical_id", element.CanonicalID),
		)
		return element, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve canonical element of %d: %w", element.ID, err)
	}

	return canonical, nil
}
