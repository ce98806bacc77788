package vocab

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Normalize canonicalizes a folder token or tag: every non-alphanumeric
// rune is stripped and the remainder is uppercased, so "Project-Beta",
// "project beta" and "PROJECT_BETA" all normalize to "PROJECTBETA".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// RoleDef describes a role-indicating folder convention. A folder named
// Folder anywhere in a document path requires the role Tag within the
// nearest ancestor department or project context. When RankSubstitutable
// is true, a user whose hierarchy level is at least SubstituteRank
// satisfies the role without an explicit grant.
type RoleDef struct {
	Folder            string `yaml:"folder" json:"folder"`
	Tag               string `yaml:"tag" json:"tag"`
	RankSubstitutable bool   `yaml:"rank_substitutable" json:"rank_substitutable"`
	SubstituteRank    int    `yaml:"substitute_rank" json:"substitute_rank"`
}

// HierarchyFamily groups the folder tokens that map to a single rank.
type HierarchyFamily struct {
	Rank   int      `yaml:"rank" json:"rank"`
	Tokens []string `yaml:"tokens" json:"tokens"`
}

// Defaults holds the fallback tags applied when a path or profile carries
// no more specific information.
type Defaults struct {
	Department string `yaml:"department" json:"department"`
	Project    string `yaml:"project" json:"project"`
	Role       string `yaml:"role" json:"role"`
	MinLevel   int    `yaml:"min_level" json:"min_level"`
}

// Definition is the serializable form of a vocabulary. It is what a YAML
// vocabulary file unmarshals into; Default() and Load() both go through
// New to produce the validated, immutable Vocabulary.
type Definition struct {
	Departments   []string          `yaml:"departments" json:"departments"`
	Hierarchy     []HierarchyFamily `yaml:"hierarchy" json:"hierarchy"`
	Roles         []RoleDef         `yaml:"roles" json:"roles"`
	ProjectsRoots []string          `yaml:"projects_roots" json:"projects_roots"`
	Defaults      Defaults          `yaml:"defaults" json:"defaults"`
	AdminRank     int               `yaml:"admin_rank" json:"admin_rank"`
}

// DefaultDefinition returns the built-in naming convention.
func DefaultDefinition() Definition {
	return Definition{
		Departments: []string{"HR", "IT", "FINANCE", "LEGAL", "MARKETING", "OPERATIONS", "SALES"},
		Hierarchy: []HierarchyFamily{
			{Rank: 0, Tokens: []string{"STAFF", "MEMBER"}},
			{Rank: 1, Tokens: []string{"MANAGER", "MANAGEMENT", "SENIOR_MANAGER"}},
			{Rank: 2, Tokens: []string{"EXECUTIVE", "DIRECTOR"}},
			{Rank: 3, Tokens: []string{"BOARD", "C_LEVEL"}},
		},
		Roles: []RoleDef{
			{Folder: "lead_docs", Tag: "LEAD", RankSubstitutable: true, SubstituteRank: 2},
			{Folder: "admin_files", Tag: "ADMIN", RankSubstitutable: true, SubstituteRank: 3},
			{Folder: "manager_exclusive", Tag: "MANAGER", RankSubstitutable: true, SubstituteRank: 1},
			{Folder: "team_lead_private", Tag: "TEAM_LEAD"},
		},
		ProjectsRoots: []string{"PROJECTS"},
		Defaults: Defaults{
			Department: "GENERAL",
			Project:    "GENERAL",
			Role:       "MEMBER",
			MinLevel:   0,
		},
		AdminRank: 3,
	}
}

// Vocabulary is the validated, read-only registry of naming conventions.
// It is constructed once at startup and passed explicitly into the
// deriver and evaluator; lookups normalize their input and match exactly.
type Vocabulary struct {
	departments   map[string]string
	hierarchy     map[string]int
	roleFolders   map[string]RoleDef
	rolesByTag    map[string]RoleDef
	projectsRoots map[string]bool

	defaultDepartment string
	defaultProject    string
	defaultRole       string
	defaultMinLevel   int
	adminRank         int

	definition Definition
}

// New builds a Vocabulary from a definition. Conflicting mappings are
// configuration errors and are never silently resolved.
func New(def Definition) (*Vocabulary, error) {
	if def.AdminRank < 0 {
		return nil, fmt.Errorf("admin rank must be non-negative, got %d", def.AdminRank)
	}

	v := &Vocabulary{
		departments:   make(map[string]string),
		hierarchy:     make(map[string]int),
		roleFolders:   make(map[string]RoleDef),
		rolesByTag:    make(map[string]RoleDef),
		projectsRoots: make(map[string]bool),
		adminRank:     def.AdminRank,
		definition:    def,
	}

	for _, d := range def.Departments {
		tag := Normalize(d)
		if tag == "" {
			return nil, fmt.Errorf("department token %q is empty after normalization", d)
		}
		v.departments[tag] = tag
	}

	for _, family := range def.Hierarchy {
		if family.Rank < 0 || family.Rank > def.AdminRank {
			return nil, fmt.Errorf("hierarchy rank %d is outside [0, %d]", family.Rank, def.AdminRank)
		}
		for _, token := range family.Tokens {
			key := Normalize(token)
			if key == "" {
				return nil, fmt.Errorf("hierarchy token %q is empty after normalization", token)
			}
			if existing, ok := v.hierarchy[key]; ok && existing != family.Rank {
				return nil, fmt.Errorf("hierarchy token %q mapped to conflicting ranks %d and %d", token, existing, family.Rank)
			}
			if _, ok := v.departments[key]; ok {
				return nil, fmt.Errorf("token %q is both a department and a hierarchy token", token)
			}
			v.hierarchy[key] = family.Rank
		}
	}

	for _, role := range def.Roles {
		folder := Normalize(role.Folder)
		tag := Normalize(role.Tag)
		if folder == "" || tag == "" {
			return nil, fmt.Errorf("role folder %q -> %q is empty after normalization", role.Folder, role.Tag)
		}
		if role.RankSubstitutable && (role.SubstituteRank < 0 || role.SubstituteRank > def.AdminRank) {
			return nil, fmt.Errorf("role %q substitute rank %d is outside [0, %d]", role.Tag, role.SubstituteRank, def.AdminRank)
		}
		if existing, ok := v.roleFolders[folder]; ok && existing.Tag != tag {
			return nil, fmt.Errorf("role folder %q mapped to conflicting roles %q and %q", role.Folder, existing.Tag, tag)
		}
		if _, ok := v.departments[folder]; ok {
			return nil, fmt.Errorf("token %q is both a department and a role folder", role.Folder)
		}
		if _, ok := v.hierarchy[folder]; ok {
			return nil, fmt.Errorf("token %q is both a hierarchy token and a role folder", role.Folder)
		}
		normalized := RoleDef{Folder: folder, Tag: tag, RankSubstitutable: role.RankSubstitutable, SubstituteRank: role.SubstituteRank}
		v.roleFolders[folder] = normalized
		v.rolesByTag[tag] = normalized
	}

	for _, root := range def.ProjectsRoots {
		key := Normalize(root)
		if key == "" {
			return nil, fmt.Errorf("projects root %q is empty after normalization", root)
		}
		if _, ok := v.departments[key]; ok {
			return nil, fmt.Errorf("token %q is both a department and a projects root", root)
		}
		v.projectsRoots[key] = true
	}

	v.defaultDepartment = Normalize(def.Defaults.Department)
	v.defaultProject = Normalize(def.Defaults.Project)
	v.defaultRole = Normalize(def.Defaults.Role)
	if v.defaultDepartment == "" || v.defaultProject == "" || v.defaultRole == "" {
		return nil, fmt.Errorf("default tags must be non-empty after normalization")
	}
	if def.Defaults.MinLevel < 0 || def.Defaults.MinLevel > def.AdminRank {
		return nil, fmt.Errorf("default minimum level %d is outside [0, %d]", def.Defaults.MinLevel, def.AdminRank)
	}
	v.defaultMinLevel = def.Defaults.MinLevel

	return v, nil
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	v, err := New(DefaultDefinition())
	if err != nil {
		panic(fmt.Sprintf("vocab: built-in definition invalid: %v", err))
	}
	return v
}

// LookupDepartment returns the canonical department tag for a path
// segment, if the segment is a recognized department token.
func (v *Vocabulary) LookupDepartment(segment string) (string, bool) {
	tag, ok := v.departments[Normalize(segment)]
	return tag, ok
}

// LookupHierarchy returns the rank for a path segment, if the segment is
// a recognized hierarchy token.
func (v *Vocabulary) LookupHierarchy(segment string) (int, bool) {
	rank, ok := v.hierarchy[Normalize(segment)]
	return rank, ok
}

// LookupHierarchyToken returns the rank for an already-normalized token.
func (v *Vocabulary) LookupHierarchyToken(token string) (int, bool) {
	rank, ok := v.hierarchy[token]
	return rank, ok
}

// LookupRoleFolder returns the role definition for a path segment, if the
// segment is a recognized role-indicating folder.
func (v *Vocabulary) LookupRoleFolder(segment string) (RoleDef, bool) {
	def, ok := v.roleFolders[Normalize(segment)]
	return def, ok
}

// RoleByTag returns the role definition for a role tag.
func (v *Vocabulary) RoleByTag(tag string) (RoleDef, bool) {
	def, ok := v.rolesByTag[Normalize(tag)]
	return def, ok
}

// IsProjectsRoot reports whether a path segment is a projects root
// (the segment immediately below it names a project).
func (v *Vocabulary) IsProjectsRoot(segment string) bool {
	return v.projectsRoots[Normalize(segment)]
}

// Departments returns the recognized department tags in sorted order.
func (v *Vocabulary) Departments() []string {
	tags := make([]string, 0, len(v.departments))
	for tag := range v.departments {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultDepartment returns the department tag applied when no
// departmental information is derivable.
func (v *Vocabulary) DefaultDepartment() string { return v.defaultDepartment }

// DefaultProject returns the project tag applied when no project
// information is derivable.
func (v *Vocabulary) DefaultProject() string { return v.defaultProject }

// DefaultRole returns the role tag every user implicitly holds. A
// requirement for this role is always satisfied.
func (v *Vocabulary) DefaultRole() string { return v.defaultRole }

// DefaultMinLevel returns the hierarchy level applied when no level
// token appears in a path.
func (v *Vocabulary) DefaultMinLevel() int { return v.defaultMinLevel }

// AdminRank returns the top hierarchy rank. Users at this rank bypass
// all evaluation clauses.
func (v *Vocabulary) AdminRank() int { return v.adminRank }

// Definition returns a copy of the definition this vocabulary was built
// from, for diagnostics and configuration endpoints.
func (v *Vocabulary) Definition() Definition { return v.definition }
