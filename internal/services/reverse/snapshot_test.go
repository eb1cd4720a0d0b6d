package reverse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robuust/reverserelations/internal/entities"
)

func TestCaptureOldSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	live := f.db.User("live", f.en)
	disabled := f.db.User("disabled", f.en)
	f.db.Disable(disabled)
	target := f.db.User("target", f.en)
	draft := f.db.Derivative(target, entities.UserKind, f.en)
	orphan := f.db.Derivative(target, entities.UserKind, f.de)

	f.db.Edges(
		f.edge(disabled, target, nil, 1),
		f.edge(live, target, nil, 2),
	)

	tests := []struct {
		name    string
		element *entities.Element
		isNew   bool
		want    []int64
	}{
		{
			name:    "new canonical element has nothing to snapshot",
			element: &entities.Element{Kind: "user", SiteID: f.en},
			isNew:   true,
			want:    []int64{},
		},
		{
			name:    "existing element includes sources of any status",
			element: f.element(target, f.en),
			want:    []int64{disabled, live},
		},
		{
			name:    "new derivative reads its canonical element",
			element: f.element(draft, f.en),
			isNew:   true,
			want:    []int64{disabled, live},
		},
		{
			name:    "canonical element missing from the derivative's site",
			element: f.element(orphan, f.de),
			want:    []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := f.resolver.CaptureOldSources(ctx, field, tt.element, tt.isNew)
			require.NoError(t, err)
			assert.Equal(t, field.UID, sc.FieldUID)
			assert.Equal(t, tt.element.ID, sc.ElementID)
			assert.Equal(t, tt.want, sc.OldSourceIDs())
		})
	}

	assert.Equal(t, uint64(2), f.metrics.GetResolverMetrics("user").Snapshots)
}

func TestCaptureOldSources_TargetFieldNotFound(t *testing.T) {
	f := newFixture(t)
	target := f.db.User("target", f.en)
	field := f.db.Field(&entities.FieldConfig{
		Handle:         "dangling",
		Name:           "Dangling",
		Type:           "reverse_users",
		TargetFieldUID: "gone",
		InputSources:   entities.AllSources(),
	})

	_, err := f.resolver.CaptureOldSources(context.Background(), field, f.element(target, f.en), false)
	assert.True(t, errors.Is(err, ErrTargetFieldNotFound))
}

func TestBeforeElementSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	source := f.db.User("source", f.en)
	target := f.db.User("target", f.en)
	f.db.Edges(f.edge(source, target, nil, 1))

	element := f.element(target, f.en)
	boom := errors.New("validation failed")

	tests := []struct {
		name        string
		next        SaveHook
		wantProceed bool
		wantErr     error
	}{
		{
			name:        "next allows the save",
			next:        func(context.Context, *entities.Element, bool) (bool, error) { return true, nil },
			wantProceed: true,
		},
		{
			name:        "next vetoes the save",
			next:        func(context.Context, *entities.Element, bool) (bool, error) { return false, nil },
			wantProceed: false,
		},
		{
			name:        "next fails",
			next:        func(context.Context, *entities.Element, bool) (bool, error) { return false, boom },
			wantProceed: false,
			wantErr:     boom,
		},
		{
			name:        "no next step",
			next:        nil,
			wantProceed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, proceed, err := f.resolver.BeforeElementSave(ctx, field, element, false, tt.next)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantProceed, proceed)
			require.NotNil(t, sc)
			assert.Equal(t, []int64{source}, sc.OldSourceIDs())
		})
	}
}

func TestBeforeElementSave_SnapshotTakenBeforeNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	source := f.db.User("source", f.en)
	late := f.db.User("late", f.en)
	target := f.db.User("target", f.en)
	f.db.Edges(f.edge(source, target, nil, 1))

	var seenNew bool
	next := func(_ context.Context, el *entities.Element, isNew bool) (bool, error) {
		seenNew = isNew
		f.db.Edges(f.edge(late, el.ID, nil, 2))
		return true, nil
	}

	sc, proceed, err := f.resolver.BeforeElementSave(ctx, field, f.element(target, f.en), false, next)
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.False(t, seenNew)
	assert.Equal(t, []int64{source}, sc.OldSourceIDs())
	assert.Equal(t, []int64{source, late}, f.sourceIDs(field, f.element(target, f.en)))
}

func TestSaveContext_RemovedSourceIDs(t *testing.T) {
	sc := &SaveContext{OldSources: []*entities.Element{{ID: 3}, {ID: 1}, {ID: 2}}}

	assert.Equal(t, []int64{3, 2}, sc.RemovedSourceIDs([]int64{1, 4}))
	assert.Equal(t, []int64{}, sc.RemovedSourceIDs([]int64{1, 2, 3}))
	assert.Equal(t, []int64{3, 1, 2}, sc.RemovedSourceIDs(nil))
}
