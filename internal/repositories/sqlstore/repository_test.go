package sqlstore

import (
	"context"
	"errors"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/query"
	"github.com/robuust/reverserelations/internal/repositories"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestFieldRepository(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	t.Run("正常系: フィールド作成とUID採番", func(t *testing.T) {
		field := &entities.FieldConfig{
			Handle:       "authors",
			Name:         "Authors",
			Type:         "users",
			InputSources: entities.Sources("group:abc"),
			TargetSiteID: int64Ptr(2),
		}
		require.NoError(t, db.Fields.Create(ctx, field))
		assert.NotZero(t, field.ID)
		assert.Len(t, field.UID, 36)

		got, err := db.Fields.GetByUID(ctx, field.UID)
		require.NoError(t, err)
		if diff := cmp.Diff(field, got); diff != "" {
			t.Errorf("GetByUID() mismatch (-want +got):\n%s", diff)
		}

		byID, err := db.Fields.GetByID(ctx, field.ID)
		require.NoError(t, err)
		assert.Equal(t, field.UID, byID.UID)
	})

	t.Run("正常系: 逆フィールドの設定", func(t *testing.T) {
		field := db.Field(&entities.FieldConfig{
			UID:            "reverse-authors",
			Handle:         "authoredBy",
			Name:           "Authored by",
			Type:           "reverse_users",
			TargetFieldUID: "forward-uid",
			InputSources:   entities.AllSources(),
		})

		got, err := db.Fields.GetByUID(ctx, "reverse-authors")
		require.NoError(t, err)
		assert.Equal(t, field.ID, got.ID)
		assert.Equal(t, "forward-uid", got.TargetFieldUID)
		assert.True(t, got.InputSources.All)
		assert.Nil(t, got.TargetSiteID)
	})

	t.Run("正常系: 一覧はID順", func(t *testing.T) {
		fields, err := db.Fields.List(ctx)
		require.NoError(t, err)
		require.Len(t, fields, 2)
		assert.Equal(t, "authors", fields[0].Handle)
		assert.Equal(t, "authoredBy", fields[1].Handle)
	})

	t.Run("異常系: 存在しないUID", func(t *testing.T) {
		_, err := db.Fields.GetByUID(ctx, "missing")
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})

	t.Run("異常系: ターゲットのない逆フィールド", func(t *testing.T) {
		err := db.Fields.Create(ctx, &entities.FieldConfig{Handle: "x", Name: "X", Type: "reverse_users"})
		assert.Error(t, err)
	})
}

func TestGroupRepository(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	editors := db.Group(entities.UserKind, "editors")
	admins := db.Group(entities.UserKind, "admins")
	news := db.Group(entities.EntryKind, "news")

	t.Run("正常系: UIDの一括解決", func(t *testing.T) {
		ids, err := db.Groups.IDsByUIDs(ctx, entities.UserKind, []string{admins.UID, editors.UID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{editors.ID, admins.ID}, ids)
	})

	t.Run("正常系: 未知のUIDは無視される", func(t *testing.T) {
		ids, err := db.Groups.IDsByUIDs(ctx, entities.UserKind, []string{editors.UID, "nope", news.UID})
		require.NoError(t, err)
		assert.Equal(t, []int64{editors.ID}, ids)
	})

	t.Run("正常系: 空の入力", func(t *testing.T) {
		ids, err := db.Groups.IDsByUIDs(ctx, entities.UserKind, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("正常系: メンバー追加は冪等", func(t *testing.T) {
		site := db.Site("default")
		user := db.User("alice", site)
		db.AddMember(entities.UserKind, editors.ID, user)
		db.AddMember(entities.UserKind, editors.ID, user)

		var count int
		require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM usergroups_users WHERE user_id = ?", user).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("正常系: エントリーのセクション移動", func(t *testing.T) {
		blog := db.Group(entities.EntryKind, "blog")
		entry := db.Entry(news.ID, "Hello")
		db.AddMember(entities.EntryKind, blog.ID, entry)

		var sectionID int64
		require.NoError(t, db.DB.QueryRow("SELECT section_id FROM entries WHERE id = ?", entry).Scan(&sectionID))
		assert.Equal(t, blog.ID, sectionID)
	})
}

func TestElementRepository(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	site1 := db.Site("en")
	site2 := db.Site("de")
	alice := db.User("alice", site1, site2)
	bob := db.User("bob", site1)
	carol := db.User("carol", site1)
	db.Disable(carol)
	dave := db.User("dave", site1)
	db.SoftDelete(dave)

	t.Run("正常系: サイト内の要素取得", func(t *testing.T) {
		el, err := db.Elements.GetByID(ctx, alice, site2)
		require.NoError(t, err)
		assert.Equal(t, &entities.Element{ID: alice, Kind: "user", SiteID: site2, Enabled: true}, el)
	})

	t.Run("正常系: 無効化・削除済みの要素も取得できる", func(t *testing.T) {
		el, err := db.Elements.GetByID(ctx, dave, site1)
		require.NoError(t, err)
		assert.True(t, el.Deleted)

		el, err = db.Elements.GetByID(ctx, carol, site1)
		require.NoError(t, err)
		assert.False(t, el.Enabled)
	})

	t.Run("異常系: サイトに存在しない要素", func(t *testing.T) {
		_, err := db.Elements.GetByID(ctx, bob, site2)
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})

	t.Run("正常系: 一括取得は指定順", func(t *testing.T) {
		els, err := db.Elements.GetByIDs(ctx, []int64{carol, alice, carol}, site1)
		require.NoError(t, err)
		assert.Equal(t, []int64{carol, alice, carol}, elementIDs(els))
		assert.Equal(t, site1, els[1].SiteID)
		assert.NotSame(t, els[0], els[2])

		empty, err := db.Elements.GetByIDs(ctx, nil, site1)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("異常系: 一括取得でサイトに存在しない要素", func(t *testing.T) {
		_, err := db.Elements.GetByIDs(ctx, []int64{alice, bob}, site2)
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})

	t.Run("正常系: 正規要素の解決", func(t *testing.T) {
		draft := db.Derivative(alice, entities.UserKind, site1)
		el, err := db.Elements.GetByID(ctx, draft, site1)
		require.NoError(t, err)
		assert.True(t, el.IsDerivative())

		canonical, err := db.Elements.GetCanonical(ctx, el)
		require.NoError(t, err)
		assert.Equal(t, alice, canonical.ID)
		assert.Equal(t, site1, canonical.SiteID)

		self, err := db.Elements.GetCanonical(ctx, canonical)
		require.NoError(t, err)
		assert.Same(t, canonical, self)
	})

	t.Run("正常系: 公開中の要素のみ検索", func(t *testing.T) {
		q := query.New(entities.UserKind)
		q.SiteID = int64Ptr(site1)

		els, err := db.Elements.Find(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []int64{alice, bob}, elementIDs(els))
		assert.Equal(t, site1, els[0].SiteID)
	})

	t.Run("正常系: 全ステータス検索", func(t *testing.T) {
		els, err := db.Elements.Find(ctx, query.New(entities.UserKind).AnyStatus())
		require.NoError(t, err)
		assert.Equal(t, []int64{alice, bob, carol, dave}, elementIDs(els))
	})

	t.Run("正常系: ID指定順", func(t *testing.T) {
		q := query.New(entities.UserKind)
		q.IDs = []int64{bob, alice}
		q.FixedOrder = true

		ids, err := db.Elements.IDs(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []int64{bob, alice}, ids)
	})

	t.Run("正常系: 空のID指定は結果なし", func(t *testing.T) {
		q := query.New(entities.UserKind)
		q.IDs = []int64{}

		els, err := db.Elements.Find(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, els)
	})
}

func TestRelationRepository(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	site1 := db.Site("en")
	site2 := db.Site("de")
	field := db.Field(&entities.FieldConfig{Handle: "related", Name: "Related", Type: "users", InputSources: entities.AllSources()})
	a := db.User("a", site1)
	b := db.User("b", site1)
	c := db.User("c", site1)

	db.Edges(
		&entities.RelationEdge{FieldID: field.ID, SourceID: a, TargetID: c, SortOrder: 2},
		&entities.RelationEdge{FieldID: field.ID, SourceID: b, TargetID: c, SourceSiteID: int64Ptr(site2), SortOrder: 1},
		&entities.RelationEdge{FieldID: field.ID, SourceID: a, TargetID: b, SourceSiteID: int64Ptr(site1), SortOrder: 1},
	)

	t.Run("正常系: 重複エッジは無視される", func(t *testing.T) {
		db.Edges(&entities.RelationEdge{FieldID: field.ID, SourceID: a, TargetID: c, SortOrder: 9})
		edges, err := db.Relations.Read(ctx, &repositories.RelationFilter{FieldID: field.ID, SourceIDs: []int64{a}})
		require.NoError(t, err)
		require.Len(t, edges, 2)
		assert.Equal(t, []string{
			fmtEdge(a, field.ID, &site1, b, 1),
			fmtEdge(a, field.ID, nil, c, 2),
		}, fmtEdges(edges))
	})

	t.Run("正常系: サイトで絞り込み", func(t *testing.T) {
		edges, err := db.Relations.Read(ctx, &repositories.RelationFilter{TargetIDs: []int64{c}, SiteID: int64Ptr(site1)})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, a, edges[0].SourceID)
		assert.True(t, edges[0].IsGlobal())
	})

	t.Run("異常系: 不正なエッジ", func(t *testing.T) {
		err := db.Relations.BatchWrite(ctx, []*entities.RelationEdge{{FieldID: field.ID, SourceID: a}})
		assert.Error(t, err)
	})

	t.Run("正常系: ペアの読み込みは行順を保つ", func(t *testing.T) {
		q := sq.Select("relations.target_id", "relations.source_id").
			From("relations").
			Where(sq.Eq{"relations.field_id": field.ID}).
			OrderBy("relations.sort_order DESC", "relations.id")

		pairs, err := db.Relations.ReadPairs(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []entities.EagerLoadPair{
			{Source: c, Target: a},
			{Source: c, Target: b},
			{Source: b, Target: a},
		}, pairs)
	})

	t.Run("正常系: 該当なしでも空スライス", func(t *testing.T) {
		q := sq.Select("target_id", "source_id").From("relations").Where(sq.Eq{"field_id": int64(999)})
		pairs, err := db.Relations.ReadPairs(ctx, q)
		require.NoError(t, err)
		assert.NotNil(t, pairs)
		assert.Empty(t, pairs)
	})
}

func elementIDs(els []*entities.Element) []int64 {
	ids := make([]int64, 0, len(els))
	for _, el := range els {
		ids = append(ids, el.ID)
	}
	return ids
}

func fmtEdges(edges []*entities.RelationEdge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.String())
	}
	return out
}

func fmtEdge(source, field int64, site *int64, target int64, order int) string {
	e := entities.RelationEdge{FieldID: field, SourceID: source, SourceSiteID: site, TargetID: target, SortOrder: order}
	return e.String()
}
