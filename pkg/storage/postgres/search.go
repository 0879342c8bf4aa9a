package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
)

// UpdateSearchRepresentation implements search.RepresentationStore. Only
// the search_vector column of the one row is written.
func (s *Store) UpdateSearchRepresentation(ctx context.Context, documentID int64, rep search.Representation) (err error) {
	start := time.Now()
	defer func() { s.observe("representation_update", start, err) }()

	res, err := s.conns.Primary().ExecContext(ctx,
		"UPDATE documents SET search_vector = array_to_tsvector($1::text[]) WHERE id = $2",
		pq.Array([]string(rep)), documentID)
	if err != nil {
		return fmt.Errorf("failed to update search representation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update search representation: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SearchRepresentation reads back the stored lexemes of a document
func (s *Store) SearchRepresentation(ctx context.Context, documentID int64) (rep search.Representation, err error) {
	start := time.Now()
	defer func() { s.observe("representation_get", start, err) }()

	var lexemes []string
	err = s.conns.Primary().QueryRowContext(ctx,
		"SELECT tsvector_to_array(search_vector) FROM documents WHERE id = $1", documentID).
		Scan(pq.Array(&lexemes))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read search representation: %w", err)
	}
	return search.Normalize(lexemes), nil
}

// buildMatchQuery returns the page query and its arguments. Every match
// contains all query tokens, so the overlap count is the token count and
// only the normalized variant varies per row.
func buildMatchQuery(q search.Query, opts search.MatchOptions) (string, []interface{}) {
	var b strings.Builder

	b.WriteString("SELECT id, ")
	if opts.NormalizeRank {
		b.WriteString("$2::float8 / GREATEST(length(search_vector), 1)")
	} else {
		b.WriteString("$2::float8")
	}
	b.WriteString(" AS rank FROM documents WHERE search_vector @@ $1::tsquery ORDER BY rank DESC, ")

	if opts.SecondaryKey == search.SortID {
		b.WriteString("id ASC")
	} else {
		b.WriteString("created_at DESC, id DESC")
	}

	args := []interface{}{q.TsQuery(), float64(q.Tokens.Len())}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT $3 OFFSET $4")
		args = append(args, opts.Limit, opts.Offset)
	} else {
		b.WriteString(" OFFSET $3")
		args = append(args, opts.Offset)
	}

	return b.String(), args
}

// MatchRepresentations implements search.RepresentationStore
func (s *Store) MatchRepresentations(ctx context.Context, q search.Query, opts search.MatchOptions) (hits []search.Hit, total int64, err error) {
	start := time.Now()
	defer func() { s.observe("representation_match", start, err) }()

	if q.Empty() {
		return []search.Hit{}, 0, nil
	}

	db := s.conns.Replica()
	tsquery := q.TsQuery()

	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE search_vector @@ $1::tsquery", tsquery).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	query, args := buildMatchQuery(q, opts)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to match representations: %w", err)
	}
	defer rows.Close()

	hits = make([]search.Hit, 0)
	for rows.Next() {
		var h search.Hit
		if err = rows.Scan(&h.ID, &h.Rank); err != nil {
			return nil, 0, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate hits: %w", err)
	}

	return hits, total, nil
}
