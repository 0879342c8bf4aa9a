package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestMemory() *Memory {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return m
}

func TestMemoryDocuments_CRUD(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	docs := m.Documents()

	doc := &model.Document{Name: "n", Title: "t", Content: "c"}
	require.NoError(t, docs.Save(ctx, doc))
	assert.Equal(t, int64(1), doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)

	created := got.CreatedAt
	got.Title = "updated"
	require.NoError(t, docs.Save(ctx, got))

	got, err = docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Title)
	assert.Equal(t, created, got.CreatedAt)

	require.NoError(t, docs.Remove(ctx, doc.ID))
	_, err = docs.FindByID(ctx, doc.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, docs.Remove(ctx, doc.ID), model.ErrNotFound)
	assert.ErrorIs(t, docs.Save(ctx, &model.Document{ID: 42}), model.ErrNotFound)
}

func TestMemoryDocuments_UnknownCategory(t *testing.T) {
	m := newTestMemory()
	err := m.Documents().Save(context.Background(), &model.Document{Name: "n", CategoryID: int64Ptr(9)})
	assert.ErrorIs(t, err, model.ErrUnknownCategory)
}

func TestMemoryDocuments_FindAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	docs := m.Documents()

	for i := 0; i < 5; i++ {
		require.NoError(t, docs.Save(ctx, &model.Document{Name: "doc"}))
	}

	page, total, err := docs.FindAll(ctx, model.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(4), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	page, _, err = docs.FindAll(ctx, model.Page{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemory_FindReferencingAndCategoryInUse(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	cat := &model.Category{Name: "プログラミング"}
	require.NoError(t, m.Categories().Save(ctx, cat))

	a := &model.Document{Name: "a", CategoryID: int64Ptr(cat.ID)}
	b := &model.Document{Name: "b"}
	require.NoError(t, m.Documents().Save(ctx, a))
	require.NoError(t, m.Documents().Save(ctx, b))

	ids, err := m.Documents().FindReferencing(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids)

	got, err := m.Documents().FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "プログラミング", got.Category.Name)

	assert.ErrorIs(t, m.Categories().Remove(ctx, cat.ID), model.ErrCategoryInUse)

	// re-assignment is picked up by the next enumeration
	a.CategoryID = nil
	require.NoError(t, m.Documents().Save(ctx, a))
	ids, err = m.Documents().FindReferencing(ctx, cat.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, m.Categories().Remove(ctx, cat.ID))
}

func TestMemoryCategories_PreviousName(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	cats := m.Categories()

	cat := &model.Category{Name: "old"}
	require.NoError(t, cats.Save(ctx, cat))
	assert.False(t, cat.NameChanged(), "creating a category has nothing to cascade to")

	cat.Name = "new"
	require.NoError(t, cats.Save(ctx, cat))
	require.NotNil(t, cat.PreviousName)
	assert.Equal(t, "old", *cat.PreviousName)
	assert.True(t, cat.NameChanged())

	require.NoError(t, cats.Save(ctx, cat))
	assert.False(t, cat.NameChanged())

	all, err := cats.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Name)
}

func TestMemory_HookErrorIsIndexError(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	var seen []string
	boom := errors.New("tokenizer unavailable")
	m.SetHook(model.SaveHookFunc(func(ctx context.Context, e model.Entity) error {
		seen = append(seen, e.EntityKind())
		if e.EntityKind() == model.KindDocument {
			return boom
		}
		return nil
	}))

	require.NoError(t, m.Categories().Save(ctx, &model.Category{Name: "c"}))

	doc := &model.Document{Name: "n"}
	err := m.Documents().Save(ctx, doc)

	var indexErr *model.IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, model.KindDocument, indexErr.Kind)
	assert.Equal(t, doc.ID, indexErr.ID)
	assert.ErrorIs(t, err, boom)

	// the write itself committed
	_, err = m.Documents().FindByID(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{model.KindCategory, model.KindDocument}, seen)
}

func TestMemory_Representations(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	assert.ErrorIs(t, m.UpdateSearchRepresentation(ctx, 1, search.Representation{"a"}), model.ErrNotFound)

	doc := &model.Document{Name: "n"}
	require.NoError(t, m.Documents().Save(ctx, doc))
	require.NoError(t, m.UpdateSearchRepresentation(ctx, doc.ID, search.Normalize([]string{"東京", "タワー"})))

	rep, err := m.SearchRepresentation(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, search.Representation{"タワー", "東京"}, rep)

	require.NoError(t, m.Documents().Remove(ctx, doc.ID))
	_, err = m.SearchRepresentation(ctx, doc.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemory_MatchRepresentations(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	save := func(tokens ...string) int64 {
		doc := &model.Document{Name: "doc"}
		require.NoError(t, m.Documents().Save(ctx, doc))
		require.NoError(t, m.UpdateSearchRepresentation(ctx, doc.ID, search.Normalize(tokens)))
		return doc.ID
	}

	onlyTokyo := save("東京", "観光")
	both := save("東京", "タワー")
	bothLarger := save("東京", "タワー", "観光", "夜景")
	bothNewest := save("東京", "タワー")

	q := search.Query{Text: "東京タワー", Tokens: search.Normalize([]string{"東京", "タワー"})}

	tests := []struct {
		name  string
		opts  search.MatchOptions
		want  []int64
		total int64
	}{
		{
			name:  "recency breaks ties",
			opts:  search.MatchOptions{Limit: 10, SecondaryKey: search.SortRecency},
			want:  []int64{bothNewest, bothLarger, both},
			total: 3,
		},
		{
			name:  "id breaks ties",
			opts:  search.MatchOptions{Limit: 10, SecondaryKey: search.SortID},
			want:  []int64{both, bothLarger, bothNewest},
			total: 3,
		},
		{
			name:  "normalized rank prefers tighter documents",
			opts:  search.MatchOptions{Limit: 10, SecondaryKey: search.SortID, NormalizeRank: true},
			want:  []int64{both, bothNewest, bothLarger},
			total: 3,
		},
		{
			name:  "paging",
			opts:  search.MatchOptions{Limit: 1, Offset: 1, SecondaryKey: search.SortID},
			want:  []int64{bothLarger},
			total: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, total, err := m.MatchRepresentations(ctx, q, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)

			ids := make([]int64, len(hits))
			for i, h := range hits {
				ids[i] = h.ID
			}
			assert.Equal(t, tt.want, ids)
			assert.NotContains(t, ids, onlyTokyo)
		})
	}
}
