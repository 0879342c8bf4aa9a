// Package staletrack records search representations known to be stale so
// a repair job can rebuild them later.
//
// Entries are keyed by entity kind and id; marking the same entity again
// updates the entry and bumps its attempt count. Two backends exist:
// Memory for single-process deployments and tests, Redis for anything
// that runs more than one replica.
package staletrack

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Reasons recorded with an entry
const (
	ReasonRebuildFailed      = "rebuild_failed"
	ReasonCascadeEnumeration = "cascade_enumeration"
	ReasonCascadePartial     = "cascade_partial"
)

// Entry describes one stale representation
type Entry struct {
	Kind     string    `json:"kind"`
	ID       int64     `json:"id"`
	Reason   string    `json:"reason"`
	Error    string    `json:"error,omitempty"`
	MarkedAt time.Time `json:"marked_at"`
	Attempts int       `json:"attempts"`
}

// Tracker stores stale entries
type Tracker interface {
	// Mark records that kind/id is stale
	Mark(ctx context.Context, kind string, id int64, reason string, cause error) error

	// Clear forgets kind/id, typically after a successful repair
	Clear(ctx context.Context, kind string, id int64) error

	// List returns up to limit entries of kind, oldest first. limit <= 0
	// returns all of them.
	List(ctx context.Context, kind string, limit int) ([]Entry, error)
}

func newEntry(prev *Entry, kind string, id int64, reason string, cause error, now time.Time) Entry {
	e := Entry{
		Kind:     kind,
		ID:       id,
		Reason:   reason,
		MarkedAt: now,
		Attempts: 1,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if prev != nil {
		e.MarkedAt = prev.MarkedAt
		e.Attempts = prev.Attempts + 1
	}
	return e
}

func sortAndLimit(entries []Entry, limit int) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].MarkedAt.Equal(entries[j].MarkedAt) {
			return entries[i].MarkedAt.Before(entries[j].MarkedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

type entryKey struct {
	kind string
	id   int64
}

// Memory is an in-process Tracker
type Memory struct {
	mu      sync.Mutex
	entries map[entryKey]Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory tracker
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[entryKey]Entry),
		now:     time.Now,
	}
}

func (m *Memory) Mark(_ context.Context, kind string, id int64, reason string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{kind: kind, id: id}
	var prev *Entry
	if e, ok := m.entries[key]; ok {
		prev = &e
	}
	m.entries[key] = newEntry(prev, kind, id, reason, cause, m.now())
	return nil
}

func (m *Memory) Clear(_ context.Context, kind string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, entryKey{kind: kind, id: id})
	return nil
}

func (m *Memory) List(_ context.Context, kind string, limit int) ([]Entry, error) {
	m.mu.Lock()
	entries := make([]Entry, 0, len(m.entries))
	for k, e := range m.entries {
		if k.kind == kind {
			entries = append(entries, e)
		}
	}
	m.mu.Unlock()

	return sortAndLimit(entries, limit), nil
}
