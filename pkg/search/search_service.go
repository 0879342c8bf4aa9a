package search

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/kensaku/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	searchTracer = otel.Tracer("kensaku/search/service")
	searchMeter  = otel.Meter("kensaku/search/service")
)

// SecondaryKey breaks ties between equally ranked hits
type SecondaryKey string

const (
	// SortRecency orders ties newest first
	SortRecency SecondaryKey = "recency"
	// SortID orders ties by ascending id
	SortID SecondaryKey = "id"
)

// ParseSecondaryKey validates a configured tie-break key
func ParseSecondaryKey(s string) (SecondaryKey, error) {
	switch k := SecondaryKey(s); k {
	case SortRecency, SortID:
		return k, nil
	case "":
		return SortRecency, nil
	default:
		return "", fmt.Errorf("unknown secondary sort key %q (must be recency or id)", s)
	}
}

// MatchOptions controls evaluation of a Query against stored representations
type MatchOptions struct {
	Limit         int
	Offset        int
	SecondaryKey  SecondaryKey
	NormalizeRank bool
}

// Hit is one ranked match
type Hit struct {
	ID   int64   `json:"id"`
	Rank float64 `json:"rank"`
}

// RepresentationStore persists representations and evaluates queries
// against them.
type RepresentationStore interface {
	// UpdateSearchRepresentation replaces one document's representation.
	// It returns model.ErrNotFound if the document no longer exists.
	UpdateSearchRepresentation(ctx context.Context, documentID int64, rep Representation) error

	// MatchRepresentations returns the page of documents containing every
	// query token, ordered by rank then the secondary key, plus the total
	// number of matches. q is never empty.
	MatchRepresentations(ctx context.Context, q Query, opts MatchOptions) ([]Hit, int64, error)
}

// Config holds search defaults
type Config struct {
	DefaultLimit  int
	MaxLimit      int
	SecondaryKey  SecondaryKey
	NormalizeRank bool
}

// SearchService answers free-text queries with ranked document ids
type SearchService struct {
	store      RepresentationStore
	translator *Translator
	config     Config
	metrics    *observability.Metrics

	// total match count per non-empty query, exported over OTLP
	matches metric.Int64Histogram
}

// NewSearchService creates a new search service
func NewSearchService(store RepresentationStore, translator *Translator, cfg Config, metrics *observability.Metrics) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if cfg.SecondaryKey == "" {
		cfg.SecondaryKey = SortRecency
	}
	matches, err := searchMeter.Int64Histogram("kensaku.search.matches",
		metric.WithDescription("Documents matching every query token"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		matches = noop.Int64Histogram{}
	}
	return &SearchService{
		store:      store,
		translator: translator,
		config:     cfg,
		metrics:    metrics,
		matches:    matches,
	}
}

// SearchRequest represents a search request
type SearchRequest struct {
	Query  string
	Limit  int // default: Config.DefaultLimit, capped at Config.MaxLimit
	Offset int
}

// SearchResponse represents search results
type SearchResponse struct {
	Query  string   `json:"query"`
	Tokens []string `json:"tokens"`
	Hits   []Hit    `json:"hits"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// IDs returns the hit ids in rank order
func (r *SearchResponse) IDs() []int64 {
	ids := make([]int64, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search translates the query and evaluates it. A query that yields no
// tokens returns zero hits without touching the store.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req.Limit <= 0 {
		req.Limit = s.config.DefaultLimit
	}
	if req.Limit > s.config.MaxLimit {
		req.Limit = s.config.MaxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", req.Query),
			attribute.Int("limit", req.Limit),
			attribute.Int("offset", req.Offset),
		),
	)
	defer span.End()

	q, err := s.translator.Translate(ctx, req.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to translate query")
		s.metrics.ObserveSearch(observability.OutcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to translate query: %w", err)
	}

	span.SetAttributes(attribute.Int("token_count", q.Tokens.Len()))

	resp := &SearchResponse{
		Query:  req.Query,
		Tokens: q.Tokens,
		Hits:   []Hit{},
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if q.Empty() {
		span.SetStatus(codes.Ok, "empty query")
		s.metrics.ObserveSearch(observability.OutcomeEmpty, time.Since(start))
		return resp, nil
	}

	hits, total, err := s.store.MatchRepresentations(ctx, q, MatchOptions{
		Limit:         req.Limit,
		Offset:        req.Offset,
		SecondaryKey:  s.config.SecondaryKey,
		NormalizeRank: s.config.NormalizeRank,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to execute search")
		s.metrics.ObserveSearch(observability.OutcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	if hits != nil {
		resp.Hits = hits
	}
	resp.Total = total

	span.SetAttributes(
		attribute.Int("result_count", len(resp.Hits)),
		attribute.Int64("total_count", total),
	)
	s.matches.Record(ctx, total, metric.WithAttributes(attribute.Int("token_count", q.Tokens.Len())))
	span.SetStatus(codes.Ok, "search completed")
	s.metrics.ObserveSearch(observability.OutcomeSuccess, time.Since(start))

	return resp, nil
}
