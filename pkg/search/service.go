package search

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/vocab"
)

var searchTracer = otel.Tracer("lantern/search")

// ErrEmptyQuery is returned when a request carries neither terms nor
// filters.
var ErrEmptyQuery = errors.New("search query is empty")

const (
	defaultLimit = 20
	maxLimit     = 100

	// defaultCandidateCap bounds how many store candidates one query
	// pulls in for evaluation.
	defaultCandidateCap = 500

	snippetWidth = 160
)

// Config carries the search service knobs.
type Config struct {
	// CandidateCap bounds the store candidates evaluated per query.
	CandidateCap int
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// Service runs keyword search over the document index and drops every
// result the caller is not allowed to read before returning.
type Service struct {
	store        storage.DocumentStore
	evaluator    *access.Evaluator
	parser       *QueryParser
	logger       *observability.Logger
	metrics      *observability.Metrics
	candidateCap int
}

// NewService wires a search service. The vocabulary must be the one the
// index was derived with, or visibility decisions will not line up with
// the stored requirements.
func NewService(store storage.DocumentStore, v *vocab.Vocabulary, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if v == nil {
		return nil, fmt.Errorf("vocabulary is required")
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = defaultCandidateCap
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Service{
		store:        store,
		evaluator:    access.NewEvaluator(v),
		parser:       NewQueryParser(),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		candidateCap: cfg.CandidateCap,
	}, nil
}

// Request is one search invocation.
type Request struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Result is one visible document match.
type Result struct {
	DocKey     string  `json:"doc_key"`
	Title      string  `json:"title"`
	SourcePath string  `json:"source_path"`
	Snippet    string  `json:"snippet,omitempty"`
	Department string  `json:"department,omitempty"`
	Project    string  `json:"project,omitempty"`
	Score      float64 `json:"score"`
}

// Response carries the visible matches. Hidden candidates leave no
// trace in the payload: the caller cannot tell how many documents the
// visibility filter removed.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Search retrieves candidates for the query, enforces the remaining
// terms and filters, drops documents the viewer may not read, and
// returns the visible matches ranked by relevance.
func (s *Service) Search(ctx context.Context, viewer access.Profile, req Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("search.query", req.Query),
			attribute.Int("search.limit", req.Limit),
		),
	)
	defer span.End()

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	parsed := s.parser.Parse(req.Query)
	if len(parsed.Terms) == 0 && !parsed.HasFilters() {
		return nil, ErrEmptyQuery
	}
	span.SetAttributes(
		attribute.Int("search.terms", len(parsed.Terms)),
		attribute.Bool("search.filtered", parsed.HasFilters()),
	)

	candidates, err := s.store.SearchDocuments(ctx, parsed.StoreQuery(), s.candidateCap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store search failed")
		s.logger.WithError(err).WithField("query", req.Query).Error("document search failed")
		if s.metrics != nil {
			s.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	matched := make([]*storage.Document, 0, len(candidates))
	for _, doc := range candidates {
		if matchesQuery(parsed, doc) {
			matched = append(matched, doc)
		}
	}

	visible := s.VisibleTo(ctx, viewer, matched)

	results := make([]Result, 0, len(visible))
	for _, doc := range visible {
		results = append(results, Result{
			DocKey:     doc.DocKey,
			Title:      doc.Title,
			SourcePath: doc.SourcePath,
			Snippet:    makeSnippet(doc.ContentText, parsed.Terms),
			Department: doc.Department,
			Project:    doc.Project,
			Score:      scoreDocument(doc, parsed.Terms),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SourcePath < results[j].SourcePath
	})
	if len(results) > limit {
		results = results[:limit]
	}

	span.SetAttributes(
		attribute.Int("search.candidates", len(candidates)),
		attribute.Int("search.visible", len(visible)),
		attribute.Int("search.returned", len(results)),
	)
	span.SetStatus(codes.Ok, "search complete")
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
	}

	return &Response{Results: results, Total: len(results), Query: req.Query}, nil
}

// VisibleTo drops every candidate the viewer may not read. Each
// candidate gets a full evaluation against its stored requirement, so
// search can never surface a document the direct access check would
// deny.
func (s *Service) VisibleTo(ctx context.Context, viewer access.Profile, docs []*storage.Document) []*storage.Document {
	_, span := searchTracer.Start(ctx, "VisibleTo",
		trace.WithAttributes(attribute.Int("search.candidates", len(docs))),
	)
	defer span.End()

	visible := make([]*storage.Document, 0, len(docs))
	for _, doc := range docs {
		started := time.Now()
		decision := s.evaluator.Evaluate(viewer, doc.Requirement())
		if s.metrics != nil {
			s.metrics.ObserveAccessCheck(string(decision.Clause), decision.Allowed, time.Since(started))
			outcome := "hidden"
			if decision.Allowed {
				outcome = "visible"
			}
			s.metrics.SearchCandidatesTotal.WithLabelValues(outcome).Inc()
		}
		if decision.Allowed {
			visible = append(visible, doc)
		}
	}

	span.SetAttributes(attribute.Int("search.visible", len(visible)))
	return visible
}

// matchesQuery enforces the full query against one candidate. The store
// retrieval only saw the most selective term, so the remaining terms
// and the structured filters apply here.
func matchesQuery(q *ParsedQuery, doc *storage.Document) bool {
	title := strings.ToLower(doc.Title)
	content := strings.ToLower(doc.ContentText)
	for _, term := range q.Terms {
		t := strings.ToLower(term)
		if !strings.Contains(title, t) && !strings.Contains(content, t) {
			return false
		}
	}

	if len(q.Departments) > 0 && !containsTag(q.Departments, doc.Department) {
		return false
	}
	if len(q.Projects) > 0 && !containsTag(q.Projects, doc.Project) {
		return false
	}
	if len(q.Extensions) > 0 && !containsTag(q.Extensions, strings.ToLower(path.Ext(doc.DocKey))) {
		return false
	}
	if q.PathPrefix != "" && !strings.HasPrefix(doc.SourcePath, q.PathPrefix) {
		return false
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// scoreDocument ranks a match. Exact title beats title prefix beats
// title substring beats a content-only hit, and earlier title hits
// rank higher than later ones.
func scoreDocument(doc *storage.Document, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(doc.Title)
	best := 0.0
	for _, term := range terms {
		t := strings.ToLower(term)
		var score float64
		switch {
		case title == t:
			score = 1.0
		case strings.HasPrefix(title, t):
			score = 0.8
		case strings.Contains(title, t):
			idx := strings.Index(title, t)
			score = 0.5 - float64(idx)/float64(len(title))*0.3
		default:
			score = 0.2
		}
		if score > best {
			best = score
		}
	}
	return best
}

// makeSnippet cuts a window around the earliest term hit in the
// content, aligned to rune boundaries.
func makeSnippet(content string, terms []string) string {
	if content == "" {
		return ""
	}

	lower := strings.ToLower(content)
	hit := -1
	for _, term := range terms {
		if idx := strings.Index(lower, strings.ToLower(term)); idx >= 0 && (hit < 0 || idx < hit) {
			hit = idx
		}
	}
	if hit < 0 {
		hit = 0
	}

	start := hit - snippetWidth/4
	if start < 0 {
		start = 0
	}
	end := start + snippetWidth
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(content) {
		snippet += "…"
	}
	return snippet
}
