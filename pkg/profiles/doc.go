// Package profiles implements the administrative surface over user
// access profiles: viewing, upserting, removing and listing them, plus
// first-login auto-provisioning.
//
// # Contract
//
// Upsert is a whole-field replace, never a merge. A present field in a
// PartialUpdate overwrites the stored field entirely; this applies to
// ContextualRoles as well, so editing one role means reading, merging
// client-side and submitting the full map. Omitted fields survive.
// Payloads are validated and every tag normalized to canonical form
// before the store is touched.
//
// Remove runs the registered cascade hooks (tickets, feedback)
// synchronously before deleting the profile row, so a reported success
// means no dependent records for that identity remain.
//
// Every operation demands an administrator caller, decided by the same
// evaluator rule that grants the admin override on document access.
// Unauthorized callers are rejected before any lookup, never learning
// whether the target exists. The error taxonomy keeps the three failure
// kinds distinct: ErrUnauthorized, ErrValidation, ErrNotFound.
//
//	svc := profiles.NewService(store, vocab.Default(), auditLogger)
//	svc.RegisterCascadeHook("tickets", store.DeleteTicketsByUser)
//	svc.RegisterCascadeHook("feedback", store.DeleteFeedbackByUser)
//
//	level := 1
//	updated, err := svc.Upsert(ctx, caller, "bob@example.com", profiles.PartialUpdate{
//		HierarchyLevel: &level,
//		Departments:    &[]string{"HR"},
//	})
//
// Mutations against the same email serialize inside the service, and
// the store applies each write as one atomic row-locked transaction, so
// two concurrent updates to different fields of the same user cannot
// shear each other. Different users proceed fully in parallel.
package profiles
