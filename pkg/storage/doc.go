// Package storage provides the in-memory repositories used by tests, the
// CLI and local runs.
//
// # Overview
//
// Memory holds documents, categories and their search representations in
// one process. It implements the repository contracts in pkg/model and
// search.RepresentationStore, so the whole indexing pipeline can run
// without a database:
//
//	store := storage.NewMemory()
//	prop := propagation.NewPropagator(store.Documents(), store.Categories(),
//		store, builder, tracker, metrics, logger, propagation.Config{})
//	store.SetHook(prop)
//
// # Write hook
//
// After a write commits the repository calls the configured
// model.SaveHook. A hook error does not undo the write: Save returns a
// *model.IndexError so the caller can tell a stale representation apart
// from a failed write.
//
// # PostgreSQL
//
// The production backend lives in pkg/storage/postgres and follows the
// same contracts, storing representations in a tsvector column.
package storage
