package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/observability"
)

const backendName = "postgres"

// PostgreSQL error codes
const (
	codeForeignKeyViolation = "23503"
)

// Store is the PostgreSQL backend. Writes and reads that feed a rebuild go
// to the primary; listings and searches go to a replica.
type Store struct {
	conns   *ConnectionManager
	metrics *observability.Metrics

	mu   sync.RWMutex
	hook model.SaveHook
}

// NewStore creates a store on top of a connection manager. metrics may be nil.
func NewStore(conns *ConnectionManager, metrics *observability.Metrics) *Store {
	return &Store{
		conns:   conns,
		metrics: metrics,
	}
}

// SetHook installs the post-commit hook
func (s *Store) SetHook(hook model.SaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Documents returns the document repository
func (s *Store) Documents() *Documents {
	return &Documents{s: s}
}

// Categories returns the category repository
func (s *Store) Categories() *Categories {
	return &Categories{s: s}
}

// HealthCheck checks every database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

func (s *Store) afterCommit(ctx context.Context, entity model.Entity) error {
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()

	if hook == nil {
		return nil
	}
	if err := hook.OnEntitySaved(ctx, entity); err != nil {
		return &model.IndexError{Kind: entity.EntityKind(), ID: entity.EntityID(), Err: err}
	}
	return nil
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if errors.Is(err, model.ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStorage(operation, backendName, err, time.Since(start))
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}
