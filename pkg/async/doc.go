// Package async provides safe concurrent execution primitives.
//
// # Key Functions
//
// SafeGo runs a background task with panic recovery, a timeout and error
// logging:
//
//	async.SafeGo(ctx, logger, 2*time.Minute, "tokenizer warm-up", func(ctx context.Context) error {
//		return tok.Warm(ctx)
//	})
//
// Batch fans work out over a bounded number of goroutines and reports a
// result per item, so callers can tell exactly which items failed:
//
//	results := async.Batch(ctx, documentIDs, 8, 30*time.Second, rebuild)
//	for _, r := range async.Failed(results) {
//		logger.WithError(r.Err).WithField("document_id", r.Item).Error("rebuild failed")
//	}
//
// Panics inside a Batch task fail that item only.
package async
