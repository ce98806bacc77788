// Package corpus reconciles the document index with the corpus backing
// store and stamps every indexed document with its derived access
// requirement.
//
// A run scans the store (S3 or a local directory), diffs the listing
// against the previous snapshot, indexes new and changed documents with
// bounded parallelism, and removes entries whose sources are gone. The
// snapshot lives in a JSON state file when configured, with the
// document index's stored ETags as the fallback, so losing the file
// costs one full re-index at most and never loses correctness.
//
// Per-directory metadata.json manifests may override the derived
// department, project, level or role for everything beneath them; the
// nearest ancestor manifest wins outright. A malformed manifest fails
// the documents it governs rather than silently widening their
// visibility.
//
//	scanner, _ := corpus.NewS3Scanner(s3Client, "corpus/")
//	deriver, _ := access.NewCachedDeriver(access.NewDeriver(vocabulary), 4096)
//
//	cfg := corpus.DefaultSyncerConfig()
//	cfg.State = corpus.NewStateStore("/var/lib/lantern/sync-state.json")
//	syncer, _ := corpus.NewSyncer(scanner, store, deriver, cfg)
//
//	summary, err := syncer.Run(ctx)
//
// Runs are idempotent: each document upsert is atomic, failed keys drop
// out of the snapshot and retry on the next run, and a second run over
// an unchanged corpus writes nothing.
package corpus
