package corpus

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/async"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
)

var syncTracer = otel.Tracer("lantern/corpus")

// Deriver produces the access requirement for a storage path. Both
// access.Deriver and access.CachedDeriver satisfy it.
type Deriver interface {
	Derive(path string) access.Requirement
}

// Content above this size is truncated before indexing; the retrieval
// layer works from the source objects, not from the index copy.
const maxContentBytes = 4 << 20

// Text formats get their content into the searchable index. Anything
// else is indexed by path and title only.
var textContentExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// SyncerConfig carries the sync knobs plus the optional collaborators.
type SyncerConfig struct {
	// Workers bounds the parallel indexing fan-out.
	Workers int
	// Extensions lists the indexable document suffixes.
	Extensions []string
	// ManifestName is the per-directory override filename.
	ManifestName string
	// TaskTimeout is the per-document budget covering the source read
	// and the index write.
	TaskTimeout time.Duration

	// State persists the last-sync snapshot. Optional: without it every
	// run diffs against the document index's stored ETags.
	State   *StateStore
	Logger  *observability.Logger
	Audit   audit.Logger
	Metrics *observability.Metrics
}

// DefaultSyncerConfig returns the defaults used by the sync daemon.
func DefaultSyncerConfig() SyncerConfig {
	return SyncerConfig{
		Workers:      4,
		Extensions:   []string{".txt", ".pdf", ".md"},
		ManifestName: DefaultManifestName,
		TaskTimeout:  2 * time.Minute,
	}
}

// Summary reports what one sync run did.
type Summary struct {
	Scanned   int           `json:"scanned"`
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Deleted   int           `json:"deleted"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Syncer reconciles the document index with the corpus backing store.
// Runs are idempotent and restartable: every document lands atomically
// with its derived requirement, failed documents are retried on the
// next run, and re-running against an unchanged corpus writes nothing.
type Syncer struct {
	scanner    Scanner
	store      storage.DocumentStore
	deriver    Deriver
	state      *StateStore
	logger     *observability.Logger
	audit      audit.Logger
	metrics    *observability.Metrics
	workers    int
	timeout    time.Duration
	manifest   string
	extensions map[string]bool
}

// NewSyncer wires a syncer from its collaborators.
func NewSyncer(scanner Scanner, store storage.DocumentStore, deriver Deriver, cfg SyncerConfig) (*Syncer, error) {
	if scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if deriver == nil {
		return nil, fmt.Errorf("deriver is required")
	}

	defaults := DefaultSyncerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = defaults.Extensions
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = defaults.ManifestName
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNoOpLogger()
	}

	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[ext] = true
	}

	return &Syncer{
		scanner:    scanner,
		store:      store,
		deriver:    deriver,
		state:      cfg.State,
		logger:     cfg.Logger,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		workers:    cfg.Workers,
		timeout:    cfg.TaskTimeout,
		manifest:   cfg.ManifestName,
		extensions: extensions,
	}, nil
}

// Run executes one reconciliation pass: scan, diff against the
// previous state, index new and changed documents in parallel, remove
// deleted ones, and persist the new snapshot.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	ctx, span := syncTracer.Start(ctx, "CorpusSync")
	defer span.End()
	start := time.Now()

	objects, err := s.scanner.Scan(ctx)
	if err != nil {
		s.finishRun(ctx, span, nil, start, fmt.Errorf("failed to scan corpus: %w", err), "scan")
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	previous, source, err := s.previousState(ctx)
	if err != nil {
		s.finishRun(ctx, span, nil, start, err, "state")
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"objects":      len(objects),
		"known":        len(previous),
		"state_source": source,
	}).Debug("corpus scan complete")

	current := make(map[string]Object)
	for key, obj := range objects {
		if s.indexable(key) {
			current[key] = obj
		}
	}

	var toIndex []string
	unchanged := 0
	for key, obj := range current {
		if previous[key] == obj.ETag {
			unchanged++
			continue
		}
		toIndex = append(toIndex, key)
	}
	var toDelete []string
	for key := range previous {
		if _, ok := current[key]; !ok {
			toDelete = append(toDelete, key)
		}
	}

	failures := newSyncFailures()

	// Manifests resolve serially up front; the resolver memoizes per
	// directory, misses included, and the worker phase then only sees
	// immutable data.
	resolver := newManifestResolver(s.scanner, objects, s.manifest)
	overrides := make(map[string]*Manifest, len(toIndex))
	pending := make([]string, 0, len(toIndex))
	for _, key := range toIndex {
		manifest, err := resolver.ForDocument(ctx, key)
		if err != nil {
			s.recordFailure(ctx, failures, key, "manifest", err)
			continue
		}
		overrides[key] = manifest
		pending = append(pending, key)
	}

	async.Batch(ctx, pending, s.workers, "corpus-index", s.timeout,
		func(taskCtx context.Context, key string) error {
			if err := s.indexDocument(taskCtx, key, current[key], overrides[key]); err != nil {
				s.recordFailure(taskCtx, failures, key, "index", err)
				return err
			}
			_ = s.audit.LogDataMutation(taskCtx, audit.EventTypeSyncDocumentIndex, "",
				audit.ResourceTypeDocument, key, nil, "indexed document")
			return nil
		})

	deleted := s.deleteDocuments(ctx, toDelete, failures)

	summary := &Summary{
		Scanned:   len(current),
		Indexed:   len(pending) - failures.countStage("index"),
		Unchanged: unchanged,
		Deleted:   deleted,
		Failed:    failures.count(),
		Duration:  time.Since(start),
	}

	if s.state != nil {
		next := &State{UpdatedAt: time.Now().UTC(), Documents: make(map[string]string, len(current))}
		for key, obj := range current {
			if failures.has(key) {
				// Leave failed keys out so the next run retries them.
				continue
			}
			next.Documents[key] = obj.ETag
		}
		for _, key := range toDelete {
			if failures.has(key) {
				next.Documents[key] = previous[key]
			}
		}
		if err := s.state.Save(next); err != nil {
			s.logger.WithError(err).Warn("failed to persist sync state; next run will diff against the index")
			if s.metrics != nil {
				s.metrics.SyncErrorsTotal.WithLabelValues("state").Inc()
			}
		}
	}

	s.finishRun(ctx, span, summary, start, nil, "")
	return summary, nil
}

// previousState loads the last snapshot, preferring the state file and
// falling back to the ETags stored in the document index. A corrupt
// state file downgrades to the index with a warning rather than
// blocking the run.
func (s *Syncer) previousState(ctx context.Context) (map[string]string, string, error) {
	if s.state != nil {
		snapshot, err := s.state.Load()
		if err != nil {
			s.logger.WithError(err).Warn("sync state unreadable; rebuilding from the document index")
		} else if snapshot != nil {
			return snapshot.Documents, "state-file", nil
		}
	}

	etags, err := s.store.ListDocumentETags(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load indexed document state: %w", err)
	}
	if etags == nil {
		etags = make(map[string]string)
	}
	return etags, "index", nil
}

func (s *Syncer) indexable(key string) bool {
	return s.extensions[strings.ToLower(path.Ext(key))]
}

// indexDocument derives the requirement, applies any manifest override,
// reads the content and writes the document record in one upsert, so
// readers observe either the old or the new document, never a mix.
func (s *Syncer) indexDocument(ctx context.Context, key string, obj Object, manifest *Manifest) error {
	req := manifest.Apply(s.deriver.Derive(key))

	content, err := s.readContent(ctx, key)
	if err != nil {
		return err
	}

	doc := &storage.Document{
		DocKey:            key,
		SourcePath:        key,
		Title:             titleFromKey(key),
		ContentText:       content,
		Department:        req.Department,
		Project:           req.Project,
		MinHierarchyLevel: req.MinHierarchyLevel,
		RequiredRole:      req.RequiredRole,
		RoleContext:       req.RoleContext,
		SourceETag:        obj.ETag,
		SizeBytes:         obj.Size,
	}
	if err := s.store.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to index %s: %w", key, err)
	}
	return nil
}

func (s *Syncer) readContent(ctx context.Context, key string) (string, error) {
	if !textContentExtensions[strings.ToLower(path.Ext(key))] {
		return "", nil
	}

	body, err := s.scanner.Read(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxContentBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

// deleteDocuments removes index entries for keys gone from the corpus.
// Every deletion is attempted even when some fail; failed keys stay in
// the snapshot and retry next run.
func (s *Syncer) deleteDocuments(ctx context.Context, keys []string, failures *syncFailures) int {
	if len(keys) == 0 {
		return 0
	}

	var eg errgroup.Group
	eg.SetLimit(s.workers)

	var mu sync.Mutex
	deleted := 0
	for _, key := range keys {
		key := key
		eg.Go(func() error {
			if err := s.store.DeleteDocument(ctx, key); err != nil {
				s.recordFailure(ctx, failures, key, "delete", err)
				return nil
			}
			mu.Lock()
			deleted++
			mu.Unlock()
			_ = s.audit.LogDataMutation(ctx, audit.EventTypeSyncDocumentDelete, "",
				audit.ResourceTypeDocument, key, nil, "removed deleted document from index")
			return nil
		})
	}
	_ = eg.Wait()

	return deleted
}

func (s *Syncer) recordFailure(ctx context.Context, failures *syncFailures, key, stage string, err error) {
	failures.record(key, stage)
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"key":   key,
		"stage": stage,
	}).Error("document sync failed")
	if s.metrics != nil {
		s.metrics.SyncErrorsTotal.WithLabelValues(stage).Inc()
	}
}

// finishRun emits the run-level telemetry: span status, metrics, audit
// event and the summary log line.
func (s *Syncer) finishRun(ctx context.Context, span trace.Span, summary *Summary, start time.Time, runErr error, stage string) {
	duration := time.Since(start)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "sync run failed")
		if s.metrics != nil {
			s.metrics.SyncRunsTotal.WithLabelValues("error").Inc()
			s.metrics.SyncRunDuration.Observe(duration.Seconds())
			s.metrics.SyncErrorsTotal.WithLabelValues(stage).Inc()
		}
		_ = s.audit.Log(ctx, &audit.Event{
			Timestamp:    time.Now().UTC(),
			EventType:    audit.EventTypeSyncRun,
			Status:       audit.EventStatusFailure,
			ResourceType: audit.ResourceTypeCorpus,
			ErrorMessage: runErr.Error(),
			Message:      "corpus sync aborted",
		})
		s.logger.WithError(runErr).Error("corpus sync aborted")
		return
	}

	span.SetAttributes(
		attribute.Int("sync.scanned", summary.Scanned),
		attribute.Int("sync.indexed", summary.Indexed),
		attribute.Int("sync.unchanged", summary.Unchanged),
		attribute.Int("sync.deleted", summary.Deleted),
		attribute.Int("sync.failed", summary.Failed),
	)
	span.SetStatus(codes.Ok, "sync complete")

	if s.metrics != nil {
		s.metrics.SyncRunsTotal.WithLabelValues("success").Inc()
		s.metrics.SyncRunDuration.Observe(duration.Seconds())
		s.metrics.SyncFilesTotal.WithLabelValues("index").Add(float64(summary.Indexed))
		s.metrics.SyncFilesTotal.WithLabelValues("unchanged").Add(float64(summary.Unchanged))
		s.metrics.SyncFilesTotal.WithLabelValues("delete").Add(float64(summary.Deleted))
		s.metrics.SyncFilesTotal.WithLabelValues("failed").Add(float64(summary.Failed))
	}

	_ = s.audit.Log(ctx, &audit.Event{
		Timestamp:    time.Now().UTC(),
		EventType:    audit.EventTypeSyncRun,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeCorpus,
		Message: fmt.Sprintf("corpus sync: %d indexed, %d deleted, %d unchanged, %d failed",
			summary.Indexed, summary.Deleted, summary.Unchanged, summary.Failed),
		Metadata: map[string]interface{}{
			"scanned":     summary.Scanned,
			"indexed":     summary.Indexed,
			"unchanged":   summary.Unchanged,
			"deleted":     summary.Deleted,
			"failed":      summary.Failed,
			"duration_ms": duration.Milliseconds(),
		},
	})

	s.logger.WithFields(map[string]interface{}{
		"scanned":   summary.Scanned,
		"indexed":   summary.Indexed,
		"unchanged": summary.Unchanged,
		"deleted":   summary.Deleted,
		"failed":    summary.Failed,
		"duration":  duration.String(),
	}).Info("corpus sync complete")
}

// syncFailures tracks failed keys per stage across the parallel phases.
type syncFailures struct {
	mu     sync.Mutex
	stages map[string]string
}

func newSyncFailures() *syncFailures {
	return &syncFailures{stages: make(map[string]string)}
}

func (f *syncFailures) record(key, stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages[key] = stage
}

func (f *syncFailures) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stages[key]
	return ok
}

func (f *syncFailures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stages)
}

func (f *syncFailures) countStage(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.stages {
		if s == stage {
			n++
		}
	}
	return n
}

// titleFromKey turns "Docs/HR/strategic_plans.pdf" into
// "strategic plans" for display and keyword search.
func titleFromKey(key string) string {
	base := path.Base(key)
	title := strings.TrimSuffix(base, path.Ext(base))
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.ReplaceAll(title, "-", " ")
	return strings.Join(strings.Fields(title), " ")
}
