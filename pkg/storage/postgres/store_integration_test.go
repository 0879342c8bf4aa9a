//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/propagation"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/staletrack"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

// setupPostgresStore starts a PostgreSQL container and migrates the schema
func setupPostgresStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("kensaku_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conns, err := NewConnectionManager(ctx, ConnectionConfig{PrimaryURL: connStr}, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conns.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	store := NewStore(conns, nil)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestIntegration_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresStore(t)

	tok := tokenizer.NewHeuristicSegmenter()
	prop := propagation.NewPropagator(store.Documents(), store.Categories(), store,
		search.NewBuilder(tok), staletrack.NewMemory(), nil, nil,
		propagation.Config{Policy: propagation.PolicyFailFast})
	store.SetHook(prop)

	svc := search.NewSearchService(store, search.NewTranslator(tok, search.TranslatorConfig{}, nil),
		search.Config{SecondaryKey: search.SortID}, nil)
	find := func(text string) []int64 {
		resp, err := svc.Search(ctx, search.SearchRequest{Query: text})
		require.NoError(t, err)
		return resp.IDs()
	}

	cat := &model.Category{Name: "プログラミング"}
	require.NoError(t, store.Categories().Save(ctx, cat))

	tower := &model.Document{Name: "tower", Title: "東京タワー観光", Content: "東京は美しい", CategoryID: &cat.ID}
	require.NoError(t, store.Documents().Save(ctx, tower))
	other := &model.Document{Name: "other", Title: "東京観光", Content: "O'Reilly"}
	require.NoError(t, store.Documents().Save(ctx, other))

	rep, err := store.SearchRepresentation(ctx, tower.ID)
	require.NoError(t, err)
	for _, want := range []string{"東京", "タワー", "観光", "プログラミング"} {
		assert.True(t, rep.Contains(want), "missing %q in %v", want, rep)
	}

	assert.Equal(t, []int64{tower.ID}, find("東京タワー"))
	assert.Equal(t, []int64{tower.ID, other.ID}, find("東京"))
	assert.Equal(t, []int64{other.ID}, find("o'reilly"))
	assert.Empty(t, find(""))

	cat.Name = "IT"
	require.NoError(t, store.Categories().Save(ctx, cat))
	assert.Equal(t, []int64{tower.ID}, find("IT"))
	assert.Empty(t, find("プログラミング"))

	assert.ErrorIs(t, store.Categories().Remove(ctx, cat.ID), model.ErrCategoryInUse)

	require.NoError(t, store.Documents().Remove(ctx, tower.ID))
	assert.Empty(t, find("IT"))
	assert.NoError(t, store.Categories().Remove(ctx, cat.ID))
}
