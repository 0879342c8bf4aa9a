package postgres

import (
	"context"
	"fmt"
)

// Search representations are stored as a tsvector built from the exact
// normalized tokens (array_to_tsvector), so PostgreSQL never re-parses
// Japanese text with its own word splitter. Queries are matched with a
// tsquery literal of quoted lexemes.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		title         TEXT NOT NULL,
		content       TEXT NOT NULL,
		category_id   BIGINT REFERENCES categories (id) ON DELETE RESTRICT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		search_vector TSVECTOR NOT NULL DEFAULT ''::tsvector
	)`,
	`CREATE INDEX IF NOT EXISTS documents_search_vector_idx ON documents USING GIN (search_vector)`,
	`CREATE INDEX IF NOT EXISTS documents_category_id_idx ON documents (category_id)`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at DESC, id DESC)`,
}

// Migrate creates the tables and indexes if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
