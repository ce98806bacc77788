package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/vocab"
)

// DefaultManifestName is the per-directory override file the syncer
// looks for.
const DefaultManifestName = "metadata.json"

// Manifest overrides the path-derived requirement for every document at
// or below its directory. Only the fields present in the file override;
// an explicit empty string clears a dimension. Overrides never merge
// across nesting levels: the nearest ancestor manifest wins outright.
type Manifest struct {
	Department        *string `json:"department,omitempty"`
	Project           *string `json:"project,omitempty"`
	MinHierarchyLevel *int    `json:"min_hierarchy_level,omitempty"`
	RequiredRole      *string `json:"required_role,omitempty"`
	RoleContext       *string `json:"role_context,omitempty"`
}

// Apply lays the manifest's present fields over a derived requirement.
// Tags normalize to canonical form; a negative level clamps to zero.
func (m *Manifest) Apply(req access.Requirement) access.Requirement {
	if m == nil {
		return req
	}
	if m.Department != nil {
		req.Department = vocab.Normalize(*m.Department)
	}
	if m.Project != nil {
		req.Project = vocab.Normalize(*m.Project)
	}
	if m.MinHierarchyLevel != nil {
		level := *m.MinHierarchyLevel
		if level < 0 {
			level = 0
		}
		req.MinHierarchyLevel = level
	}
	if m.RequiredRole != nil {
		req.RequiredRole = vocab.Normalize(*m.RequiredRole)
	}
	if m.RoleContext != nil {
		req.RoleContext = vocab.Normalize(*m.RoleContext)
	}
	return req
}

type manifestResult struct {
	manifest *Manifest
	err      error
}

// manifestResolver answers "which manifest, if any, governs this
// document" against one scan snapshot. Directory resolutions are
// memoized, misses included, so a corpus with no manifests costs one
// map probe per directory rather than repeated ancestor walks.
type manifestResolver struct {
	scanner      Scanner
	objects      map[string]Object
	manifestName string

	parsed   map[string]manifestResult
	resolved map[string]manifestResult
}

func newManifestResolver(scanner Scanner, objects map[string]Object, manifestName string) *manifestResolver {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	return &manifestResolver{
		scanner:      scanner,
		objects:      objects,
		manifestName: manifestName,
		parsed:       make(map[string]manifestResult),
		resolved:     make(map[string]manifestResult),
	}
}

// ForDocument returns the nearest-ancestor manifest for a document key,
// or nil when no directory on the path carries one. A malformed
// manifest is an error: silently ignoring it could leave documents more
// visible than the operator intended.
func (r *manifestResolver) ForDocument(ctx context.Context, key string) (*Manifest, error) {
	res := r.forDir(ctx, path.Dir(key))
	return res.manifest, res.err
}

func (r *manifestResolver) forDir(ctx context.Context, dir string) manifestResult {
	if res, ok := r.resolved[dir]; ok {
		return res
	}

	var res manifestResult
	candidate := path.Join(dir, r.manifestName)
	if _, ok := r.objects[candidate]; ok {
		res = r.parse(ctx, candidate)
	} else if parent := path.Dir(dir); parent != dir {
		res = r.forDir(ctx, parent)
	}

	r.resolved[dir] = res
	return res
}

func (r *manifestResolver) parse(ctx context.Context, key string) manifestResult {
	if res, ok := r.parsed[key]; ok {
		return res
	}

	res := manifestResult{}
	body, err := r.scanner.Read(ctx, key)
	if err != nil {
		res.err = fmt.Errorf("failed to read manifest %s: %w", key, err)
	} else {
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			res.err = fmt.Errorf("failed to read manifest %s: %w", key, err)
		} else {
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				res.err = fmt.Errorf("malformed manifest %s: %w", key, err)
			} else {
				res.manifest = &m
			}
		}
	}

	r.parsed[key] = res
	return res
}
