// Package access implements the dual engine at the heart of lantern:
// deriving access requirements from document storage paths, and
// evaluating user profiles against those requirements.
//
// # Derivation
//
// A Deriver folds over a path's directory segments left to right. Each
// segment that matches the vocabulary assigns one requirement dimension
// (department, project, minimum hierarchy level, required role), so a
// deeper match simply overwrites a shallower one. That single rule
// implements "most specific path wins" with no priority system to
// audit. Unrecognized segments are skipped and never change the result.
//
//	d := access.NewDeriver(vocab.Default())
//	req := d.Derive("Docs/HR/Management/strategic_plans.pdf")
//	// Requirement{Department: "HR", MinHierarchyLevel: 1, ...}
//
// Derivation is pure and total: every path yields exactly one
// Requirement, and the same path always yields the same Requirement.
// CachedDeriver adds LRU memoization for corpus syncs.
//
// # Evaluation
//
// An Evaluator checks a Profile against a Requirement through three
// independent grant clauses, any one of which is sufficient:
//
//   - Department: the user belongs to the required department, meets the
//     minimum hierarchy level inclusively, and holds any
//     department-scoped role.
//   - Project: the user belongs to the required project and holds any
//     project-scoped role. Project membership is not level-gated.
//   - General: documents with no department or project are gated only by
//     the minimum level.
//
// Users at the vocabulary's admin rank bypass all three clauses.
// Evaluation never errors; anything that satisfies no clause is denied.
//
//	e := access.NewEvaluator(vocab.Default())
//	if e.CanAccess(profile, req) {
//		// include the document in answer grounding
//	}
//
// Both engines are side-effect free and safe to call concurrently from
// any number of request handlers. State lives entirely in the profile
// store and the document index, which other packages own.
package access
