// Package async runs work the request path must not wait for.
//
// Go detaches a single task with a timeout, panic recovery and error
// logging; the audit pipeline uses it so sink writes never block or
// crash a request. Pool and Batch bound the parallelism of bulk work,
// collecting task errors and recovered panics instead of aborting the
// run; corpus synchronization indexes documents through Batch.
//
//	errs := async.Batch(ctx, keys, 4, "corpus-index", 30*time.Second,
//		func(ctx context.Context, key string) error {
//			return indexDocument(ctx, key)
//		})
//
// Loggers travel by context: Go and NewPool pick up the logger stored
// with observability.WithLogger, falling back to the process default.
package async
