package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

// Query is a translated search: the normalized tokens every match must
// contain.
type Query struct {
	Text   string
	Tokens Representation
}

// Empty reports whether the query has no tokens. An empty query matches
// no documents.
func (q Query) Empty() bool { return q.Tokens.Empty() }

// Match reports whether rep contains every query token
func (q Query) Match(rep Representation) bool {
	if q.Empty() {
		return false
	}
	for _, tok := range q.Tokens {
		if !rep.Contains(tok) {
			return false
		}
	}
	return true
}

// Rank scores a representation by token overlap. With normalize set the
// count is divided by the representation size so tighter documents rank
// higher.
func (q Query) Rank(rep Representation, normalize bool) float64 {
	matched := 0
	for _, tok := range q.Tokens {
		if rep.Contains(tok) {
			matched++
		}
	}
	if !normalize {
		return float64(matched)
	}
	size := rep.Len()
	if size < 1 {
		size = 1
	}
	return float64(matched) / float64(size)
}

// TsQuery renders the query as a PostgreSQL tsquery literal (cast with
// ::tsquery, no parser involved): every token quoted as a single lexeme,
// joined with &. Returns "" for an empty query.
func (q Query) TsQuery() string {
	parts := make([]string, 0, len(q.Tokens))
	for _, tok := range q.Tokens {
		if lexeme := quoteLexeme(tok); lexeme != "" {
			parts = append(parts, lexeme)
		}
	}
	return strings.Join(parts, " & ")
}

// quoteLexeme wraps a token in single quotes so tsquery operators and
// punctuation inside it are taken literally.
func quoteLexeme(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	token = strings.ReplaceAll(token, `\`, `\\`)
	token = strings.ReplaceAll(token, "'", "''")
	return "'" + token + "'"
}

// TranslatorConfig configures the query token cache
type TranslatorConfig struct {
	// CacheSize is the number of query texts kept; 0 disables the cache
	CacheSize int
	CacheTTL  time.Duration
}

// Translator turns free text into a Query through the same tokenizer and
// Normalizer used for indexing, so queries and documents share one
// vocabulary.
type Translator struct {
	tokenizer tokenizer.Tokenizer
	cache     *lru.LRU[string, Representation]
	metrics   *observability.Metrics
}

// NewTranslator creates a query translator. metrics may be nil.
func NewTranslator(tok tokenizer.Tokenizer, cfg TranslatorConfig, metrics *observability.Metrics) *Translator {
	t := &Translator{
		tokenizer: tok,
		metrics:   metrics,
	}
	if cfg.CacheSize > 0 {
		t.cache = lru.NewLRU[string, Representation](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return t
}

// Translate tokenizes and normalizes queryText. Text that yields no tokens
// translates to an empty Query, not an error.
func (t *Translator) Translate(ctx context.Context, queryText string) (Query, error) {
	q := Query{Text: queryText}
	if strings.TrimSpace(queryText) == "" {
		q.Tokens = Representation{}
		return q, nil
	}

	if t.cache != nil {
		if tokens, ok := t.cache.Get(queryText); ok {
			t.metrics.ObserveQueryCache(true)
			q.Tokens = tokens
			return q, nil
		}
		t.metrics.ObserveQueryCache(false)
	}

	raw, err := t.tokenizer.Tokenize(ctx, queryText)
	if err != nil {
		return Query{}, fmt.Errorf("failed to tokenize query: %w", err)
	}
	q.Tokens = Normalize(raw)

	if t.cache != nil {
		t.cache.Add(queryText, q.Tokens)
	}
	return q, nil
}
