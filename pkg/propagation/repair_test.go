package propagation

import (
	"context"
	"errors"
	"testing"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairer_RebuildsStaleDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	cat := f.saveCategory(t, "料理")
	doc := f.saveDocument(t, &model.Document{Name: "d", Title: "寿司", CategoryID: categoryRef(cat)})

	f.store.failOn(doc.ID, errors.New("timeout"))
	require.NoError(t, f.rename(cat, "和食"))
	assert.True(t, f.representation(t, doc.ID).Contains("料理"))

	repairer := NewRepairer(f.propagator, f.tracker, 0)

	// still failing: the entry stays and its attempts grow
	result, err := repairer.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, 1, result.Remaining)

	stale, err := f.tracker.List(ctx, model.KindDocument, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, 2, stale[0].Attempts)

	f.store.heal()
	result, err = repairer.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repaired)
	assert.Zero(t, result.Remaining)

	rep := f.representation(t, doc.ID)
	assert.True(t, rep.Contains("和食"))
	assert.False(t, rep.Contains("料理"))

	stale, err = f.tracker.List(ctx, model.KindDocument, 0)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestRepairer_RerunsAbortedCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	cat := f.saveCategory(t, "料理")
	doc := f.saveDocument(t, &model.Document{Name: "d", CategoryID: categoryRef(cat)})

	f.documents.setEnumerateErr(errors.New("connection reset"))
	require.NoError(t, f.rename(cat, "和食"))

	repairer := NewRepairer(f.propagator, f.tracker, 10)

	result, err := repairer.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Categories)
	assert.Equal(t, 1, result.Remaining)

	f.documents.setEnumerateErr(nil)
	result, err = repairer.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repaired)

	assert.Equal(t, []int64{doc.ID}, f.searchIDs(t, "和食"))
	stale, err := f.tracker.List(ctx, model.KindCategory, 0)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReindexAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{PageSize: 2, Workers: 2})
	cat := f.saveCategory(t, "旅行")

	// written without the hook, as after a bulk import
	f.memory.SetHook(nil)
	var ids []int64
	for _, title := range []string{"京都", "大阪", "東京", "札幌", "福岡"} {
		ids = append(ids, f.saveDocument(t, &model.Document{Name: "d", Title: title, CategoryID: categoryRef(cat)}).ID)
	}
	f.memory.SetHook(f.propagator)
	assert.Empty(t, f.searchIDs(t, "旅行"))

	f.store.failOn(ids[2], errors.New("boom"))

	result, err := f.propagator.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 4, result.Rebuilt)
	assert.Equal(t, 1, result.Failed)

	assert.ElementsMatch(t, []int64{ids[0], ids[1], ids[3], ids[4]}, f.searchIDs(t, "旅行"))
	assert.Equal(t, search.Representation{}, f.representation(t, ids[2]))

	stale, err := f.tracker.List(ctx, model.KindDocument, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, ids[2], stale[0].ID)
}

func TestReindexAll_ListFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.propagator.documents = failingLister{f.documents}

	_, err := f.propagator.ReindexAll(context.Background())
	assert.Error(t, err)
}

type failingLister struct {
	model.DocumentRepository
}

func (failingLister) FindAll(context.Context, model.Page) ([]*model.Document, int64, error) {
	return nil, 0, errors.New("connection refused")
}
