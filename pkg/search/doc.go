// Package search builds canonical search representations and answers
// free-text queries against them.
//
// # Pipeline
//
// Indexing and querying share one path so both sides use the same token
// vocabulary:
//
//	text -> tokenizer.Tokenizer -> Normalize -> Representation
//
// Normalize case-folds and deduplicates tokens. A Representation is a set;
// its stored form is the sorted tokens joined by a single space.
//
// Builder composes a document's fields in a fixed order (name, title,
// content, then related category names), skipping empty fields.
//
// # Queries
//
// Translator produces a Query whose predicate is conjunctive: a document
// matches only if its representation contains every query token. Matches
// are ranked by overlap (optionally divided by representation size) and
// ties are broken by SecondaryKey. A query with no tokens left after
// tokenization matches nothing.
//
// On PostgreSQL a Query is rendered by TsQuery for use with
//
//	search_vector @@ $1::tsquery
//
// # Usage
//
//	builder := search.NewBuilder(tok)
//	rep, err := builder.BuildDocument(ctx, doc, categoryName)
//
//	svc := search.NewSearchService(store, search.NewTranslator(tok, cacheCfg, metrics), cfg, metrics)
//	resp, err := svc.Search(ctx, search.SearchRequest{Query: "東京 観光", Limit: 20})
package search
