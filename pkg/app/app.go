// Package app assembles the storage backend, tokenizer, propagator and
// search service from configuration. Both the server and the operator CLI
// start from New.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/kensaku/pkg/config"
	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/propagation"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/staletrack"
	"github.com/platinummonkey/kensaku/pkg/storage"
	"github.com/platinummonkey/kensaku/pkg/storage/postgres"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

// hookedStore is the part of a storage backend the app needs beyond the
// repositories themselves
type hookedStore interface {
	search.RepresentationStore
	SetHook(hook model.SaveHook)
}

// App holds the wired components
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Tokenizer  tokenizer.Tokenizer
	Builder    *search.Builder
	Documents  model.DocumentRepository
	Categories model.CategoryRepository
	Store      search.RepresentationStore
	Tracker    staletrack.Tracker
	Propagator *propagation.Propagator
	Repairer   *propagation.Repairer
	Search     *search.SearchService

	// Postgres and Redis are nil unless configured
	Postgres *postgres.ConnectionManager
	pgStore  *postgres.Store
	Redis    *redis.Client
}

// New wires every component. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
	}

	tok, err := tokenizer.New(ctx, cfg.TokenizerOptions(),
		tokenizer.WithInitObserver(func(variant tokenizer.Variant, err error, elapsed time.Duration) {
			metrics.ObserveTokenizerInit(string(variant), err, elapsed)
			entry := logger.WithField("variant", string(variant)).WithField("duration_ms", elapsed.Milliseconds())
			if err != nil {
				entry.WithError(err).Error("Tokenizer initialization failed")
				return
			}
			entry.Info("Tokenizer initialized")
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	a.Tokenizer = tok

	var store hookedStore
	switch cfg.Database.Type {
	case config.StoragePostgres:
		conns, err := postgres.NewConnectionManager(ctx, cfg.ConnectionOptions(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.Postgres = conns
		a.pgStore = postgres.NewStore(conns, metrics)
		a.Documents = a.pgStore.Documents()
		a.Categories = a.pgStore.Categories()
		store = a.pgStore
	default:
		mem := storage.NewMemory()
		a.Documents = mem.Documents()
		a.Categories = mem.Categories()
		store = mem
	}
	a.Store = store

	if cfg.Redis.Enabled {
		client, err := staletrack.NewRedisClient(ctx, cfg.RedisOptions())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.Redis = client
		a.Tracker = staletrack.NewRedis(client, cfg.Redis.KeyPrefix)
	} else {
		a.Tracker = staletrack.NewMemory()
	}

	a.Builder = search.NewBuilder(tok)
	a.Propagator = propagation.NewPropagator(a.Documents, a.Categories, store, a.Builder,
		a.Tracker, metrics, logger, cfg.PropagationOptions())
	store.SetHook(a.Propagator)
	a.Repairer = propagation.NewRepairer(a.Propagator, a.Tracker, cfg.Propagation.RepairBatchSize)

	searchCfg, translatorCfg := cfg.SearchOptions()
	a.Search = search.NewSearchService(store, search.NewTranslator(tok, translatorCfg, metrics), searchCfg, metrics)

	logger.WithFields(map[string]interface{}{
		"storage":        cfg.Database.Type,
		"tokenizer":      string(tok.Variant()),
		"failure_policy": cfg.Propagation.FailurePolicy,
		"stale_tracker":  a.trackerBackend(),
	}).Info("Application components initialized")

	return a, nil
}

func (a *App) trackerBackend() string {
	if a.Redis != nil {
		return "redis"
	}
	return "memory"
}

// Migrate creates the PostgreSQL schema. It is a no-op for the memory backend.
func (a *App) Migrate(ctx context.Context) error {
	if a.pgStore == nil {
		return nil
	}
	return a.pgStore.Migrate(ctx)
}

// WarmTokenizer loads the dictionary ahead of the first write. Variants
// without a dictionary return immediately.
func (a *App) WarmTokenizer(ctx context.Context) error {
	warmer, ok := a.Tokenizer.(interface{ Warm(context.Context) error })
	if !ok {
		return nil
	}
	return warmer.Warm(ctx)
}

// RegisterHealthChecks adds the tokenizer and storage checks
func (a *App) RegisterHealthChecks(checker *observability.HealthChecker) {
	checker.AddCheck("tokenizer", false, func(ctx context.Context) (string, error) {
		dict, ok := a.Tokenizer.(*tokenizer.DictionaryTokenizer)
		if !ok {
			return "", nil
		}
		if state := dict.State(); state != tokenizer.Ready {
			// Lazy load: not ready yet is degraded, not down
			return "dictionary " + state.String(), nil
		}
		return "", nil
	})

	if a.Postgres != nil {
		checker.AddCheck("replicas", false, func(ctx context.Context) (string, error) {
			return "", a.Postgres.HealthCheck(ctx)
		})
	}
}

// Close releases connections
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
