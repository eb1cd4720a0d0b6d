package reverse

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/repositories"
)

// SaveContext carries the sources a reverse field had before an element save,
// so the save pipeline can tell which edges were removed.
type SaveContext struct {
	FieldUID   string
	ElementID  int64
	OldSources []*entities.Element
}

// OldSourceIDs returns the ids of the previous sources in their original order
func (c *SaveContext) OldSourceIDs() []int64 {
	ids := make([]int64, 0, len(c.OldSources))
	for _, el := range c.OldSources {
		ids = append(ids, el.ID)
	}
	return ids
}

// RemovedSourceIDs returns the previous sources missing from current
func (c *SaveContext) RemovedSourceIDs(current []int64) []int64 {
	keep := make(map[int64]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}

	removed := []int64{}
	for _, el := range c.OldSources {
		if _, ok := keep[el.ID]; !ok {
			removed = append(removed, el.ID)
		}
	}
	return removed
}

// SaveHook is the save step that runs after the snapshot is taken
type SaveHook func(ctx context.Context, element *entities.Element, isNew bool) (bool, error)

// CaptureOldSources snapshots the current reverse value of an element before
// it is saved. Existing elements and derivatives read the value of their
// canonical element regardless of source status; new canonical elements and
// canonical elements that cannot be found yield an empty snapshot.
func (r *Resolver) CaptureOldSources(ctx context.Context, field *entities.FieldConfig, element *entities.Element, isNew bool) (*SaveContext, error) {
	ft, err := fieldType(field)
	if err != nil {
		return nil, err
	}

	sc := &SaveContext{
		FieldUID:   field.UID,
		ElementID:  element.ID,
		OldSources: []*entities.Element{},
	}
	if isNew && !element.IsDerivative() {
		return sc, nil
	}

	canonical, err := r.elements.GetCanonical(ctx, element)
	if errors.Is(err, repositories.ErrNotFound) {
		r.logger.DebugWithContext(ctx, "no canonical element to snapshot",
			zap.String("field", field.Handle),
			zap.Int64("element_id", element.ID),
			zap.Int64("canonical_id", element.CanonicalID),
		)
		return sc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve canonical element of %d: %w", element.ID, err)
	}
	if canonical.IsNew() {
		return sc, nil
	}

	q, err := r.BuildReverseQuery(ctx, canonical, field)
	if err != nil {
		return nil, err
	}

	sources, err := r.elements.Find(ctx, q.AnyStatus())
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s of element %d: %w", field.Handle, canonical.ID, err)
	}
	if sources != nil {
		sc.OldSources = sources
	}

	r.recorder.RecordSnapshot(ft.Kind.Name, len(sc.OldSources))
	return sc, nil
}

// BeforeElementSave takes the pre-save snapshot and then runs next.
// The result of next is returned unchanged.
func (r *Resolver) BeforeElementSave(ctx context.Context, field *entities.FieldConfig, element *entities.Element, isNew bool, next SaveHook) (*SaveContext, bool, error) {
	sc, err := r.CaptureOldSources(ctx, field, element, isNew)
	if err != nil {
		return nil, false, err
	}

	if next == nil {
		return sc, true, nil
	}

	proceed, err := next(ctx, element, isNew)
	if err != nil {
		return sc, false, err
	}

	return sc, proceed, nil
}
