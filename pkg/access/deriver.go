package access

import (
	"strings"

	"github.com/lanternhq/lantern/pkg/vocab"
)

// Deriver converts document storage paths into Requirements using a
// fixed vocabulary. Derivation is a pure function of the path and the
// vocabulary: no hidden state, no errors, safe for unbounded
// concurrency.
type Deriver struct {
	vocab *vocab.Vocabulary
}

// NewDeriver creates a deriver bound to a vocabulary.
func NewDeriver(v *vocab.Vocabulary) *Deriver {
	return &Deriver{vocab: v}
}

// SplitPath decomposes a storage path into its directory segments, root
// to leaf. Both slash styles are accepted. A final segment containing a
// dot is treated as the document filename and excluded.
func SplitPath(path string) []string {
	cleaned := strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(cleaned, "/")

	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		segments = append(segments, part)
	}

	if n := len(segments); n > 0 && strings.Contains(segments[n-1], ".") {
		segments = segments[:n-1]
	}
	return segments
}

// Derive parses a document path into its access requirement.
func (d *Deriver) Derive(path string) Requirement {
	return d.derive(SplitPath(path), path)
}

// DeriveSegments derives a requirement from pre-split directory
// segments. The segments are taken as-is; no filename stripping.
func (d *Deriver) DeriveSegments(segments []string) Requirement {
	return d.derive(segments, strings.Join(segments, "/"))
}

// derive is a left-to-right fold over the segments. Each recognized
// segment assigns its requirement field directly, so the deepest match
// wins per dimension without any weighting scheme.
func (d *Deriver) derive(segments []string, sourcePath string) Requirement {
	req := Requirement{
		MinHierarchyLevel: d.vocab.DefaultMinLevel(),
		SourcePath:        sourcePath,
	}

	// lastContext tracks the deepest department or project seen so far;
	// a role folder is scoped to it.
	lastContext := ""
	underProjectsRoot := false

	for _, segment := range segments {
		if underProjectsRoot {
			underProjectsRoot = false
			if tag := vocab.Normalize(segment); tag != "" {
				req.Project = tag
				lastContext = tag
				continue
			}
		}

		if d.vocab.IsProjectsRoot(segment) {
			underProjectsRoot = true
			continue
		}

		if dept, ok := d.vocab.LookupDepartment(segment); ok {
			req.Department = dept
			lastContext = dept
			continue
		}

		if rank, ok := d.matchHierarchy(segment); ok {
			req.MinHierarchyLevel = rank
			continue
		}

		if role, ok := d.vocab.LookupRoleFolder(segment); ok {
			req.RequiredRole = role.Tag
			req.RoleContext = lastContext
			continue
		}

		// Unrecognized segments never widen or narrow access.
	}

	return req
}

// matchHierarchy matches a segment against the hierarchy vocabulary.
// Plain tokens map through their family rank. The override form
// TOKEN_<digit>_<suffix> carries a literal rank, where TOKEN may itself
// span separators (SENIOR_MANAGER_2_reports).
func (d *Deriver) matchHierarchy(segment string) (int, bool) {
	if rank, ok := d.vocab.LookupHierarchy(segment); ok {
		return rank, true
	}

	parts := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i := 1; i < len(parts); i++ {
		token := vocab.Normalize(strings.Join(parts[:i], ""))
		if token == "" {
			continue
		}
		if _, ok := d.vocab.LookupHierarchyToken(token); !ok {
			continue
		}
		if rank, ok := parseRank(parts[i]); ok {
			return rank, true
		}
	}
	return 0, false
}

// parseRank parses an all-digit rank literal.
func parseRank(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	rank := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		rank = rank*10 + int(r-'0')
	}
	return rank, true
}
