// Package httputil provides the JSON response helpers, request parsing and
// middleware shared by the kensaku HTTP handlers.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, doc)
//	httputil.WriteCreated(w, doc)
//	httputil.WriteBadRequest(w, "title is required")
//	httputil.WriteNotFound(w, "document not found")
//
// Every error response has the shape {"error": "...", "details": {...}}.
//
// # Request Parsing
//
//	var req CreateDocumentRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
//
// RequestIDMiddleware must run first: the logging and recovery middleware
// read the request-scoped logger it stores in the context.
package httputil
