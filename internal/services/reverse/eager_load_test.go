package reverse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robuust/reverserelations/internal/entities"
)

func TestGetEagerLoadingMap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	a := f.db.User("a", f.en, f.de)
	b := f.db.User("b", f.en, f.de)
	c := f.db.User("c", f.en, f.de)
	t1 := f.db.User("t1", f.en, f.de)
	t2 := f.db.User("t2", f.en, f.de)

	f.db.Edges(
		f.edge(a, t1, nil, 3),
		f.edge(b, t2, nil, 1),
		f.edge(c, t1, nil, 2),
	)

	tests := []struct {
		name    string
		targets []*entities.Element
		want    *entities.EagerLoadMap
	}{
		{
			name:    "pairs are swapped and ordered by sort order across the batch",
			targets: []*entities.Element{f.element(t1, f.en), f.element(t2, f.en)},
			want: &entities.EagerLoadMap{
				ElementType: "user",
				Pairs: []entities.EagerLoadPair{
					{Source: t2, Target: b},
					{Source: t1, Target: c},
					{Source: t1, Target: a},
				},
				Criteria: entities.EagerLoadCriteria{SiteID: int64Ptr(f.en)},
			},
		},
		{
			name:    "criteria follow the first element's site",
			targets: []*entities.Element{f.element(t2, f.de)},
			want: &entities.EagerLoadMap{
				ElementType: "user",
				Pairs:       []entities.EagerLoadPair{{Source: t2, Target: b}},
				Criteria:    entities.EagerLoadCriteria{SiteID: int64Ptr(f.de)},
			},
		},
		{
			name:    "empty batch",
			targets: []*entities.Element{},
			want: &entities.EagerLoadMap{
				ElementType: "user",
				Pairs:       []entities.EagerLoadPair{},
				Criteria:    entities.EagerLoadCriteria{SiteID: nil},
			},
		},
		{
			name:    "nil batch",
			targets: nil,
			want: &entities.EagerLoadMap{
				ElementType: "user",
				Pairs:       []entities.EagerLoadPair{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.resolver.GetEagerLoadingMap(ctx, field, tt.targets)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	m := f.metrics.GetResolverMetrics("user")
	assert.Equal(t, uint64(len(tests)), m.EagerLoads)
	assert.Equal(t, uint64(4), m.EagerLoadPairs)
}

func TestGetEagerLoadingMap_SiteOfFirstElement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	english := f.db.User("english", f.en, f.de)
	german := f.db.User("german", f.en, f.de)
	global := f.db.User("global", f.en, f.de)
	t1 := f.db.User("t1", f.en, f.de)
	t2 := f.db.User("t2", f.en, f.de)

	f.db.Edges(
		f.edge(global, t1, nil, 1),
		f.edge(english, t1, int64Ptr(f.en), 2),
		f.edge(german, t2, int64Ptr(f.de), 3),
	)

	// t2 is loaded from de but the batch is matched against en only
	got, err := f.resolver.GetEagerLoadingMap(ctx, field, []*entities.Element{f.element(t1, f.en), f.element(t2, f.de)})
	require.NoError(t, err)
	assert.Equal(t, []entities.EagerLoadPair{
		{Source: t1, Target: global},
		{Source: t1, Target: english},
	}, got.Pairs)
	assert.Equal(t, int64Ptr(f.en), got.Criteria.SiteID)
}

func TestGetEagerLoadingMap_Derivatives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	field := f.reverseUsers(entities.AllSources())

	a := f.db.User("a", f.en)
	b := f.db.User("b", f.en)
	canonical := f.db.User("canonical", f.en)
	other := f.db.User("other", f.en)
	draft := f.db.Derivative(canonical, entities.UserKind, f.en)

	f.db.Edges(
		f.edge(a, canonical, nil, 1),
		f.edge(b, other, nil, 2),
		// edges against the draft id are never followed
		f.edge(b, draft, nil, 3),
	)

	t.Run("draft is keyed by its own id", func(t *testing.T) {
		got, err := f.resolver.GetEagerLoadingMap(ctx, field, []*entities.Element{f.element(draft, f.en), f.element(other, f.en)})
		require.NoError(t, err)
		assert.Equal(t, []entities.EagerLoadPair{
			{Source: draft, Target: a},
			{Source: other, Target: b},
		}, got.Pairs)
	})

	t.Run("draft and canonical in one batch", func(t *testing.T) {
		got, err := f.resolver.GetEagerLoadingMap(ctx, field, []*entities.Element{f.element(canonical, f.en), f.element(draft, f.en)})
		require.NoError(t, err)
		assert.Equal(t, []entities.EagerLoadPair{
			{Source: canonical, Target: a},
			{Source: draft, Target: a},
		}, got.Pairs)
	})

	t.Run("agrees with the single-element value", func(t *testing.T) {
		got, err := f.resolver.GetEagerLoadingMap(ctx, field, []*entities.Element{f.element(draft, f.en)})
		require.NoError(t, err)
		var targets []int64
		for _, p := range got.Pairs {
			assert.Equal(t, draft, p.Source)
			targets = append(targets, p.Target)
		}
		assert.Equal(t, f.sourceIDs(field, f.element(draft, f.en)), targets)
	})
}

func TestGetEagerLoadingMap_GlobalAndSiteEdge(t *testing.T) {
	f := newFixture(t)
	field := f.reverseUsers(entities.AllSources())

	both := f.db.User("both", f.en)
	target := f.db.User("target", f.en)
	f.db.Edges(
		f.edge(both, target, nil, 2),
		f.edge(both, target, int64Ptr(f.en), 1),
	)

	got, err := f.resolver.GetEagerLoadingMap(context.Background(), field, []*entities.Element{f.element(target, f.en)})
	require.NoError(t, err)
	assert.Equal(t, []entities.EagerLoadPair{{Source: target, Target: both}}, got.Pairs)
}

func TestGetEagerLoadingMap_GroupRestriction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	staff := f.db.Group(entities.UserKind, "staff")
	member := f.db.User("member", f.en)
	guest := f.db.User("guest", f.en)
	target := f.db.User("target", f.en)
	f.db.AddMember(entities.UserKind, staff.ID, member)

	f.db.Edges(
		f.edge(guest, target, nil, 1),
		f.edge(member, target, nil, 2),
	)

	restricted := f.reverseUsers(entities.Sources("group:" + staff.UID))
	got, err := f.resolver.GetEagerLoadingMap(ctx, restricted, []*entities.Element{f.element(target, f.en)})
	require.NoError(t, err)
	assert.Equal(t, []entities.EagerLoadPair{{Source: target, Target: member}}, got.Pairs)

	nobody := f.reverseUsers(entities.Sources("group:unknown"))
	got, err = f.resolver.GetEagerLoadingMap(ctx, nobody, []*entities.Element{f.element(target, f.en)})
	require.NoError(t, err)
	assert.Empty(t, got.Pairs)
}

func TestGetEagerLoadingMap_FixedTargetSite(t *testing.T) {
	f := newFixture(t)
	field := f.db.Field(&entities.FieldConfig{
		Handle:         "pinned",
		Name:           "Pinned",
		Type:           "reverse_users",
		TargetFieldUID: f.forward.UID,
		InputSources:   entities.AllSources(),
		TargetSiteID:   int64Ptr(f.de),
	})
	target := f.db.User("target", f.en)

	got, err := f.resolver.GetEagerLoadingMap(context.Background(), field, []*entities.Element{f.element(target, f.en)})
	require.NoError(t, err)
	assert.Equal(t, int64Ptr(f.de), got.Criteria.SiteID)

	got, err = f.resolver.GetEagerLoadingMap(context.Background(), field, nil)
	require.NoError(t, err)
	assert.Equal(t, int64Ptr(f.de), got.Criteria.SiteID)
}

func TestGetEagerLoadingMap_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.db.User("target", f.en)

	t.Run("missing target field is fatal", func(t *testing.T) {
		field := f.db.Field(&entities.FieldConfig{
			Handle:         "dangling",
			Name:           "Dangling",
			Type:           "reverse_users",
			TargetFieldUID: "gone",
			InputSources:   entities.AllSources(),
		})

		got, err := f.resolver.GetEagerLoadingMap(ctx, field, []*entities.Element{f.element(target, f.en)})
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, ErrTargetFieldNotFound))
	})

	t.Run("forward fields are rejected", func(t *testing.T) {
		_, err := f.resolver.GetEagerLoadingMap(ctx, f.forward, nil)
		assert.True(t, errors.Is(err, ErrUnsupportedFieldType))
	})
}
