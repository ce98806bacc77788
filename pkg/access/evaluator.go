package access

import (
	"fmt"

	"github.com/lanternhq/lantern/pkg/vocab"
)

// Evaluator decides whether a profile may access a document given its
// derived requirement. The three grant clauses are independent: a
// document is visible through departmental seniority, or through
// project membership, or through org-wide general entitlement. Users at
// the vocabulary's admin rank bypass all clauses. Evaluation is pure
// and never errors; an empty profile falls through to deny.
type Evaluator struct {
	vocab *vocab.Vocabulary
}

// NewEvaluator creates an evaluator bound to a vocabulary.
func NewEvaluator(v *vocab.Vocabulary) *Evaluator {
	return &Evaluator{vocab: v}
}

// IsAdmin reports whether the profile holds the top hierarchy rank.
func (e *Evaluator) IsAdmin(p Profile) bool {
	return p.HierarchyLevel >= e.vocab.AdminRank()
}

// CanAccess reports whether the profile may access a document with the
// given requirement.
func (e *Evaluator) CanAccess(p Profile, r Requirement) bool {
	return e.Evaluate(p, r).Allowed
}

// Evaluate runs the decision algorithm and reports which clause decided
// the outcome, for audit trails and diagnostics.
func (e *Evaluator) Evaluate(p Profile, r Requirement) Decision {
	if e.IsAdmin(p) {
		return Decision{
			Allowed: true,
			Clause:  ClauseAdminOverride,
			Reason:  fmt.Sprintf("hierarchy level %d grants administrative override", p.HierarchyLevel),
		}
	}

	// Clause A: departmental path. Membership, inclusive-upward level,
	// and any department-scoped role must all hold.
	if r.Department != "" && p.HasDepartment(r.Department) {
		if p.HierarchyLevel >= r.MinHierarchyLevel && e.roleSatisfied(p, r, r.Department) {
			return Decision{
				Allowed: true,
				Clause:  ClauseDepartment,
				Reason:  fmt.Sprintf("department %s at level %d meets minimum %d", r.Department, p.HierarchyLevel, r.MinHierarchyLevel),
			}
		}
	}

	// Clause B: project path. Membership is the credential; the
	// hierarchy minimum does not apply, but a project-scoped role does.
	if r.Project != "" && p.HasProject(r.Project) {
		if e.roleSatisfied(p, r, r.Project) {
			return Decision{
				Allowed: true,
				Clause:  ClauseProject,
				Reason:  fmt.Sprintf("project %s membership", r.Project),
			}
		}
	}

	// Clause C: general documents are gated only by level and any
	// unscoped role requirement.
	if r.IsGeneral() {
		if p.HierarchyLevel >= r.MinHierarchyLevel && e.roleSatisfied(p, r, "") {
			return Decision{
				Allowed: true,
				Clause:  ClauseGeneral,
				Reason:  fmt.Sprintf("general document, level %d meets minimum %d", p.HierarchyLevel, r.MinHierarchyLevel),
			}
		}
	}

	return Decision{
		Allowed: false,
		Clause:  ClauseNone,
		Reason:  "no grant clause satisfied",
	}
}

// roleSatisfied checks the requirement's role against one clause
// context. A role scoped to a different context does not constrain this
// clause. The default role is held implicitly by everyone; otherwise the
// role must be granted explicitly in the context, or the role definition
// must allow rank substitution and the profile must meet its rank.
func (e *Evaluator) roleSatisfied(p Profile, r Requirement, contextTag string) bool {
	role := r.RequiredRole
	if role == "" || role == e.vocab.DefaultRole() {
		return true
	}
	if r.RoleContext != "" && r.RoleContext != contextTag {
		return true
	}

	for _, held := range p.RolesIn(contextTag) {
		if held == role {
			return true
		}
	}

	if def, ok := e.vocab.RoleByTag(role); ok && def.RankSubstitutable && p.HierarchyLevel >= def.SubstituteRank {
		return true
	}
	return false
}
