package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lanternhq/lantern/pkg/vocab"
)

// ParsedQuery is a search query split into free-text terms and
// structured filters.
type ParsedQuery struct {
	// Terms are matched against title and content. All terms must hit.
	Terms []string

	// Departments restricts results to documents tagged with any of
	// these department tags (canonical form).
	Departments []string

	// Projects restricts results to documents tagged with any of these
	// project tags (canonical form).
	Projects []string

	// Extensions restricts results by file extension, dot-prefixed
	// lowercase.
	Extensions []string

	// PathPrefix restricts results to storage paths under the prefix.
	PathPrefix string

	// Raw is the original query string.
	Raw string
}

// HasFilters reports whether any structured filter is set.
func (q *ParsedQuery) HasFilters() bool {
	return len(q.Departments) > 0 ||
		len(q.Projects) > 0 ||
		len(q.Extensions) > 0 ||
		q.PathPrefix != ""
}

// StoreQuery returns the term handed to the store's LIKE retrieval.
// The longest term is the most selective one; the remaining terms and
// all filters are enforced in memory against the candidates.
func (q *ParsedQuery) StoreQuery() string {
	longest := ""
	for _, term := range q.Terms {
		if len(term) > len(longest) {
			longest = term
		}
	}
	return longest
}

// QueryParser splits query strings like
//
//	"travel policy department:HR ext:pdf"
//
// into free-text terms and filters. Filter values may be quoted:
// project:"atlas north".
type QueryParser struct {
	filterPattern *regexp.Regexp
}

// NewQueryParser creates a query parser.
func NewQueryParser() *QueryParser {
	// key:value or key:"quoted value"
	return &QueryParser{
		filterPattern: regexp.MustCompile(`([\w-]+):("([^"]+)"|(\S+))`),
	}
}

// Parse splits a query string into terms and filters.
func (p *QueryParser) Parse(queryStr string) *ParsedQuery {
	query := &ParsedQuery{Raw: queryStr}

	for _, match := range p.filterPattern.FindAllStringSubmatch(queryStr, -1) {
		key := match[1]
		value := match[3]
		if value == "" {
			value = match[4]
		}
		p.parseFilter(query, key, value)
	}

	clean := strings.TrimSpace(p.filterPattern.ReplaceAllString(queryStr, ""))
	if clean != "" {
		query.Terms = append(query.Terms, strings.Fields(clean)...)
	}

	return query
}

func (p *QueryParser) parseFilter(query *ParsedQuery, key, value string) {
	switch strings.ToLower(key) {
	case "department", "dept":
		if tag := vocab.Normalize(value); tag != "" {
			query.Departments = append(query.Departments, tag)
		}

	case "project":
		if tag := vocab.Normalize(value); tag != "" {
			query.Projects = append(query.Projects, tag)
		}

	case "ext":
		ext := strings.ToLower(strings.TrimPrefix(value, "."))
		if ext != "" {
			query.Extensions = append(query.Extensions, "."+ext)
		}

	case "path":
		query.PathPrefix = value

	default:
		// Unknown filter keys search as literal text.
		query.Terms = append(query.Terms, fmt.Sprintf("%s:%s", key, value))
	}
}
