// Package api exposes documents, categories and full-text search over a
// JSON HTTP API.
//
// # Routes
//
//	POST   /documents           create a document
//	GET    /documents           list documents, or search when ?q= is given
//	GET    /documents/{id}      fetch one document with its category
//	PUT    /documents/{id}      partial update
//	DELETE /documents/{id}      remove
//
//	POST   /categories          create a category
//	GET    /categories          list categories
//	GET    /categories/{id}     fetch one category
//	PUT    /categories/{id}     rename
//	DELETE /categories/{id}     remove (409 while documents reference it)
//
//	GET    /analyze?text=       tokens and stored form for text
//
// # Search
//
//	GET /documents?q=東京タワー&limit=20&offset=0
//
// A query matches documents containing every one of its tokens. Results are
// ordered by rank and returned as full documents. A query that yields no
// tokens (blank, punctuation only, or only particles) returns zero results.
// While the tokenizer dictionary cannot be loaded, search and analyze answer
// 503 and the next request retries the load.
//
// # Index failures
//
// Writes commit before the search index is updated. When the fail-fast
// propagation policy reports an indexing failure the handler answers 500
// with the committed entity's kind and id in the error details. The write
// is not rolled back.
package api
