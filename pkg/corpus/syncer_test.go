package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/vocab"
)

// memScanner is an in-memory Scanner. ETags derive from content, so
// rewriting a key with new content changes its etag the way a real
// object store would.
type memScanner struct {
	mu        sync.Mutex
	objects   map[string]Object
	files     map[string][]byte
	scanErr   error
	readErrs  map[string]error
	readCalls map[string]int
}

func newMemScanner() *memScanner {
	return &memScanner{
		objects:   make(map[string]Object),
		files:     make(map[string][]byte),
		readErrs:  make(map[string]error),
		readCalls: make(map[string]int),
	}
}

func (s *memScanner) put(key, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := fnv.New64a()
	h.Write([]byte(content))
	s.files[key] = []byte(content)
	s.objects[key] = Object{
		Key:          key,
		ETag:         fmt.Sprintf("%x", h.Sum64()),
		Size:         int64(len(content)),
		LastModified: time.Now(),
	}
}

func (s *memScanner) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	delete(s.objects, key)
}

func (s *memScanner) etag(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key].ETag
}

func (s *memScanner) failRead(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrs[key] = err
}

func (s *memScanner) reads(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCalls[key]
}

func (s *memScanner) Scan(ctx context.Context) (map[string]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	snapshot := make(map[string]Object, len(s.objects))
	for key, obj := range s.objects {
		snapshot[key] = obj
	}
	return snapshot, nil
}

func (s *memScanner) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCalls[key]++
	if err := s.readErrs[key]; err != nil {
		return nil, err
	}
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakeDocStore implements storage.DocumentStore with per-key error
// injection. Workers hit it concurrently, so every method locks.
type fakeDocStore struct {
	mu          sync.Mutex
	docs        map[string]*storage.Document
	upsertCalls int
	deleteCalls int
	upsertErrs  map[string]error
	deleteErrs  map[string]error
	etagsErr    error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:       make(map[string]*storage.Document),
		upsertErrs: make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// seed plants a document without touching the call counters.
func (s *fakeDocStore) seed(doc *storage.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.DocKey] = &cp
}

func (s *fakeDocStore) doc(key string) *storage.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[key]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (s *fakeDocStore) failUpsert(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertErrs[key] = err
}

func (s *fakeDocStore) failDelete(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[key] = err
}

func (s *fakeDocStore) upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

func (s *fakeDocStore) UpsertDocument(ctx context.Context, doc *storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if err := s.upsertErrs[doc.DocKey]; err != nil {
		return err
	}
	cp := *doc
	s.docs[doc.DocKey] = &cp
	return nil
}

func (s *fakeDocStore) GetDocument(ctx context.Context, docKey string) (*storage.Document, error) {
	if d := s.doc(docKey); d != nil {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

func (s *fakeDocStore) GetDocumentRequirement(ctx context.Context, docKey string) (*access.Requirement, error) {
	d := s.doc(docKey)
	if d == nil {
		return nil, storage.ErrNotFound
	}
	req := d.Requirement()
	return &req, nil
}

func (s *fakeDocStore) DeleteDocument(ctx context.Context, docKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if err := s.deleteErrs[docKey]; err != nil {
		return err
	}
	delete(s.docs, docKey)
	return nil
}

func (s *fakeDocStore) SearchDocuments(ctx context.Context, query string, limit int) ([]*storage.Document, error) {
	return nil, nil
}

func (s *fakeDocStore) ListDocumentETags(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.etagsErr != nil {
		return nil, s.etagsErr
	}
	etags := make(map[string]string, len(s.docs))
	for key, d := range s.docs {
		etags[key] = d.SourceETag
	}
	return etags, nil
}

func (s *fakeDocStore) CountDocuments(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

type mutation struct {
	eventType audit.EventType
	key       string
}

// recordingAudit captures sync audit traffic; everything else falls
// through to the embedded no-op logger.
type recordingAudit struct {
	audit.Logger

	mu        sync.Mutex
	events    []*audit.Event
	mutations []mutation
}

func newRecordingAudit() *recordingAudit {
	return &recordingAudit{Logger: audit.NewNoOpLogger()}
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) LogDataMutation(ctx context.Context, eventType audit.EventType, actorEmail string, resourceType audit.ResourceType, resourceID string, changes *audit.ChangeDetails, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, mutation{eventType: eventType, key: resourceID})
	return nil
}

func (r *recordingAudit) eventsOf(et audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.events {
		if e.EventType == et {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingAudit) mutationKeys(et audit.EventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, m := range r.mutations {
		if m.eventType == et {
			keys = append(keys, m.key)
		}
	}
	return keys
}

func newTestSyncer(t *testing.T, scanner Scanner, store storage.DocumentStore, cfg SyncerConfig) *Syncer {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.ErrorLevel, io.Discard)
	}
	s, err := NewSyncer(scanner, store, access.NewDeriver(vocab.Default()), cfg)
	require.NoError(t, err)
	return s
}

func TestNewSyncer(t *testing.T) {
	scanner := newMemScanner()
	store := newFakeDocStore()
	deriver := access.NewDeriver(vocab.Default())

	t.Run("requires a scanner", func(t *testing.T) {
		_, err := NewSyncer(nil, store, deriver, SyncerConfig{})
		assert.Error(t, err)
	})

	t.Run("requires a store", func(t *testing.T) {
		_, err := NewSyncer(scanner, nil, deriver, SyncerConfig{})
		assert.Error(t, err)
	})

	t.Run("requires a deriver", func(t *testing.T) {
		_, err := NewSyncer(scanner, store, nil, SyncerConfig{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		s, err := NewSyncer(scanner, store, deriver, SyncerConfig{})
		require.NoError(t, err)
		assert.Equal(t, 4, s.workers)
		assert.Equal(t, 2*time.Minute, s.timeout)
		assert.Equal(t, DefaultManifestName, s.manifest)
		assert.True(t, s.extensions[".txt"])
		assert.True(t, s.extensions[".pdf"])
		assert.True(t, s.extensions[".md"])
	})

	t.Run("normalizes extensions", func(t *testing.T) {
		s, err := NewSyncer(scanner, store, deriver, SyncerConfig{
			Extensions: []string{"TXT", ".Md", " pdf "},
		})
		require.NoError(t, err)
		assert.Len(t, s.extensions, 3)
		assert.True(t, s.extensions[".txt"])
		assert.True(t, s.extensions[".md"])
		assert.True(t, s.extensions[".pdf"])
	})
}

func TestSyncer_Run_FirstRun(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/annual_review.txt", "salary bands for review")
	scanner.put("Docs/HR/Management/headcount-plan.md", "headcount by quarter")
	scanner.put("Docs/Finance/ledger.pdf", "%PDF-1.4 raw bytes")
	scanner.put("Docs/HR/avatar.png", "binary")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 3, summary.Indexed)
	assert.Equal(t, 0, summary.Unchanged)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 0, summary.Failed)

	assert.Nil(t, store.doc("Docs/HR/avatar.png"), "non-indexable extensions stay out of the index")

	doc := store.doc("Docs/HR/annual_review.txt")
	require.NotNil(t, doc)
	assert.Equal(t, "annual review", doc.Title)
	assert.Equal(t, "Docs/HR/annual_review.txt", doc.SourcePath)
	assert.Equal(t, "salary bands for review", doc.ContentText)
	assert.Equal(t, "HR", doc.Department)
	assert.Equal(t, 0, doc.MinHierarchyLevel)
	assert.Equal(t, scanner.etag("Docs/HR/annual_review.txt"), doc.SourceETag)
	assert.Equal(t, int64(len("salary bands for review")), doc.SizeBytes)

	mgmt := store.doc("Docs/HR/Management/headcount-plan.md")
	require.NotNil(t, mgmt)
	assert.Equal(t, "HR", mgmt.Department)
	assert.Equal(t, 1, mgmt.MinHierarchyLevel)

	pdf := store.doc("Docs/Finance/ledger.pdf")
	require.NotNil(t, pdf)
	assert.Equal(t, "FINANCE", pdf.Department)
	assert.Equal(t, "ledger", pdf.Title)
	assert.Empty(t, pdf.ContentText, "only text formats carry content into the index")
	assert.Equal(t, int64(len("%PDF-1.4 raw bytes")), pdf.SizeBytes)

	saved, err := NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Len(t, saved.Documents, 3)
	assert.Equal(t, scanner.etag("Docs/HR/annual_review.txt"), saved.Documents["Docs/HR/annual_review.txt"])
}

func TestSyncer_Run_UnchangedCorpus(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, store.upserts())

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Indexed)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Equal(t, 2, store.upserts(), "an unchanged corpus must not be rewritten")
}

func TestSyncer_Run_ReindexesChangedDocuments(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	scanner.put("Docs/HR/a.txt", "alpha revised")

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, summary.Unchanged)

	doc := store.doc("Docs/HR/a.txt")
	require.NotNil(t, doc)
	assert.Equal(t, "alpha revised", doc.ContentText)
	assert.Equal(t, scanner.etag("Docs/HR/a.txt"), doc.SourceETag)
}

func TestSyncer_Run_RemovesDeletedDocuments(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	scanner.remove("Docs/HR/b.txt")

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Unchanged)

	assert.Nil(t, store.doc("Docs/HR/b.txt"))
	assert.NotNil(t, store.doc("Docs/HR/a.txt"))

	saved, err := NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotContains(t, saved.Documents, "Docs/HR/b.txt")
}

func TestSyncer_Run_ManifestOverrides(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/Management/plan.txt", "restructuring")
	scanner.put("Docs/HR/Management/metadata.json", `{"department":"finance","min_hierarchy_level":3}`)

	store := newFakeDocStore()
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scanned, "the manifest itself is not a document")
	assert.Equal(t, 1, summary.Indexed)

	doc := store.doc("Docs/HR/Management/plan.txt")
	require.NotNil(t, doc)
	assert.Equal(t, "FINANCE", doc.Department, "manifest overrides the path-derived department")
	assert.Equal(t, 3, doc.MinHierarchyLevel, "manifest overrides the path-derived level")

	assert.Nil(t, store.doc("Docs/HR/Management/metadata.json"))
}

func TestSyncer_Run_MalformedManifestFailsGovernedDocuments(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/metadata.json", "{not json")
	scanner.put("Docs/HR/one.txt", "1")
	scanner.put("Docs/HR/two.txt", "2")
	scanner.put("Docs/Finance/ok.txt", "fine")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err, "per-document failures do not abort the run")
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Indexed)

	assert.Nil(t, store.doc("Docs/HR/one.txt"))
	assert.Nil(t, store.doc("Docs/HR/two.txt"))
	assert.NotNil(t, store.doc("Docs/Finance/ok.txt"))

	saved, err := NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Len(t, saved.Documents, 1, "failed keys stay out of the snapshot")

	// Fixing the manifest picks the failed documents up on the next run.
	scanner.put("Docs/HR/metadata.json", `{"min_hierarchy_level":2}`)

	summary, err = syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 0, summary.Failed)

	doc := store.doc("Docs/HR/one.txt")
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.MinHierarchyLevel)
}

func TestSyncer_Run_FailedIndexRetriedNextRun(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/good.txt", "fine")
	scanner.put("Docs/HR/bad.txt", "cursed")

	store := newFakeDocStore()
	store.failUpsert("Docs/HR/bad.txt", errors.New("connection reset"))

	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, summary.Failed)
	assert.Nil(t, store.doc("Docs/HR/bad.txt"))

	store.failUpsert("Docs/HR/bad.txt", nil)

	summary, err = syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed, "only the previously failed document is retried")
	assert.Equal(t, 1, summary.Unchanged)
	assert.NotNil(t, store.doc("Docs/HR/bad.txt"))
}

func TestSyncer_Run_FailedDeleteRetriedNextRun(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	scanner.remove("Docs/HR/b.txt")
	store.failDelete("Docs/HR/b.txt", errors.New("db timeout"))

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 1, summary.Failed)

	saved, err := NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Contains(t, saved.Documents, "Docs/HR/b.txt", "a failed delete keeps the key for the next run")

	store.failDelete("Docs/HR/b.txt", nil)

	summary, err = syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
	assert.Nil(t, store.doc("Docs/HR/b.txt"))

	saved, err = NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotContains(t, saved.Documents, "Docs/HR/b.txt")
}

func TestSyncer_Run_DiffsAgainstIndexWithoutStateFile(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	store.seed(&storage.Document{DocKey: "Docs/HR/a.txt", SourceETag: scanner.etag("Docs/HR/a.txt")})
	store.seed(&storage.Document{DocKey: "Docs/HR/b.txt", SourceETag: scanner.etag("Docs/HR/b.txt")})

	syncer := newTestSyncer(t, scanner, store, SyncerConfig{})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Indexed)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Equal(t, 0, store.upserts())
}

func TestSyncer_Run_CorruptStateFileFallsBackToIndex(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	store := newFakeDocStore()
	store.seed(&storage.Document{DocKey: "Docs/HR/a.txt", SourceETag: scanner.etag("Docs/HR/a.txt")})
	store.seed(&storage.Document{DocKey: "Docs/HR/b.txt", SourceETag: scanner.etag("Docs/HR/b.txt")})

	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{corrupt"), 0o644))

	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath)})

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err, "a corrupt state file downgrades to the index, not a failed run")
	assert.Equal(t, 0, summary.Indexed)
	assert.Equal(t, 2, summary.Unchanged)

	// The run rewrites a clean snapshot over the corrupt one.
	saved, err := NewStateStore(statePath).Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Len(t, saved.Documents, 2)
}

func TestSyncer_Run_ScanFailureAborts(t *testing.T) {
	scanner := newMemScanner()
	scanner.scanErr = errors.New("s3 unavailable")

	sink := newRecordingAudit()
	syncer := newTestSyncer(t, scanner, newFakeDocStore(), SyncerConfig{Audit: sink})

	summary, err := syncer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan corpus")
	assert.Nil(t, summary)

	runs := sink.eventsOf(audit.EventTypeSyncRun)
	require.Len(t, runs, 1)
	assert.Equal(t, audit.EventStatusFailure, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "s3 unavailable")
}

func TestSyncer_Run_IndexStateFailureAborts(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")

	store := newFakeDocStore()
	store.etagsErr = errors.New("relation missing")

	syncer := newTestSyncer(t, scanner, store, SyncerConfig{})

	_, err := syncer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load indexed document state")
}

func TestSyncer_Run_EmitsAuditTrail(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "alpha")
	scanner.put("Docs/HR/b.txt", "beta")

	sink := newRecordingAudit()
	store := newFakeDocStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	syncer := newTestSyncer(t, scanner, store, SyncerConfig{State: NewStateStore(statePath), Audit: sink})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Docs/HR/a.txt", "Docs/HR/b.txt"},
		sink.mutationKeys(audit.EventTypeSyncDocumentIndex))

	runs := sink.eventsOf(audit.EventTypeSyncRun)
	require.Len(t, runs, 1)
	assert.Equal(t, audit.EventStatusSuccess, runs[0].Status)
	assert.Equal(t, audit.ResourceTypeCorpus, runs[0].ResourceType)
	assert.Equal(t, 2, runs[0].Metadata["indexed"])

	scanner.remove("Docs/HR/b.txt")

	_, err = syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Docs/HR/b.txt"}, sink.mutationKeys(audit.EventTypeSyncDocumentDelete))
	assert.Len(t, sink.eventsOf(audit.EventTypeSyncRun), 2)
}

func TestTitleFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "Docs/HR/strategic_plans.pdf", want: "strategic plans"},
		{key: "quarterly-report_final.txt", want: "quarterly report final"},
		{key: "readme.md", want: "readme"},
		{key: "Docs/a/__team__notes__.txt", want: "team notes"},
		{key: "noext", want: "noext"},
		{key: "archive.tar.gz", want: "archive.tar"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromKey(tt.key))
		})
	}
}
