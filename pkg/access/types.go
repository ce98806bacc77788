package access

import (
	"time"
)

// Requirement is the access requirement derived from a document's
// storage path. A zero value means a fully general document readable at
// the default hierarchy level.
type Requirement struct {
	// Department is the required department affiliation, or empty for
	// documents with no departmental requirement.
	Department string `json:"department,omitempty"`

	// Project is the required project membership, or empty.
	Project string `json:"project,omitempty"`

	// MinHierarchyLevel is the minimum rank required, inclusive upward.
	MinHierarchyLevel int `json:"min_hierarchy_level"`

	// RequiredRole is a contextual role required within the matched
	// department or project, or empty.
	RequiredRole string `json:"required_role,omitempty"`

	// RoleContext is the department or project tag the required role is
	// scoped to. Empty when the role folder had no tagged ancestor.
	RoleContext string `json:"role_context,omitempty"`

	// SourcePath is the originating path, retained for audit.
	SourcePath string `json:"source_path,omitempty"`
}

// IsGeneral reports whether the requirement carries no department or
// project dimension.
func (r Requirement) IsGeneral() bool {
	return r.Department == "" && r.Project == ""
}

// Profile is a user's access attribute set. Tags are stored in canonical
// normalized form; the administration layer validates and normalizes
// before any write.
type Profile struct {
	Email           string              `json:"email"`
	HierarchyLevel  int                 `json:"hierarchy_level"`
	Departments     []string            `json:"departments"`
	Projects        []string            `json:"projects"`
	ContextualRoles map[string][]string `json:"contextual_roles"`
	CreatedAt       time.Time           `json:"created_at,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at,omitempty"`
}

// HasDepartment reports whether the profile carries the department tag.
func (p Profile) HasDepartment(tag string) bool {
	for _, d := range p.Departments {
		if d == tag {
			return true
		}
	}
	return false
}

// HasProject reports whether the profile carries the project tag.
func (p Profile) HasProject(tag string) bool {
	for _, proj := range p.Projects {
		if proj == tag {
			return true
		}
	}
	return false
}

// RolesIn returns the roles the user holds within a context. The
// returned slice is the profile's own; callers must not mutate it.
func (p Profile) RolesIn(context string) []string {
	return p.ContextualRoles[context]
}

// Clone returns a deep copy, so cached profiles can be handed out
// without aliasing the cache's backing maps.
func (p Profile) Clone() Profile {
	out := p
	out.Departments = append([]string(nil), p.Departments...)
	out.Projects = append([]string(nil), p.Projects...)
	if p.ContextualRoles != nil {
		out.ContextualRoles = make(map[string][]string, len(p.ContextualRoles))
		for ctx, roles := range p.ContextualRoles {
			out.ContextualRoles[ctx] = append([]string(nil), roles...)
		}
	}
	return out
}

// Clause identifies which evaluation rule decided an access check.
type Clause string

const (
	ClauseAdminOverride Clause = "admin_override"
	ClauseDepartment    Clause = "department"
	ClauseProject       Clause = "project"
	ClauseGeneral       Clause = "general"
	ClauseNone          Clause = "none"
)

// Decision is the result of evaluating a profile against a requirement.
// Evaluation is pure: the same inputs always produce the same decision.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Clause  Clause `json:"clause"`
	Reason  string `json:"reason,omitempty"`
}
