package profiles

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the target profile does not exist. It
	// is a distinct condition from an access denial and callers must not
	// conflate the two.
	ErrNotFound = errors.New("profile not found")

	// ErrValidation is returned when an upsert payload fails validation.
	// The store is never touched on a validation failure.
	ErrValidation = errors.New("invalid profile update")

	// ErrUnauthorized is returned when the caller does not hold the
	// administrator rank. It is raised before any lookup, so the
	// existence of the target never leaks to non-admins.
	ErrUnauthorized = errors.New("caller is not an administrator")
)

// PartialUpdate carries the fields of an administrative profile update.
// A nil field is left untouched; a present field replaces the stored
// value wholesale. ContextualRoles in particular replaces the entire
// mapping, so a partial role edit requires reading the current roles,
// merging client-side and submitting the full merged map.
type PartialUpdate struct {
	HierarchyLevel  *int                 `json:"hierarchy_level,omitempty"`
	Departments     *[]string            `json:"departments,omitempty"`
	Projects        *[]string            `json:"projects,omitempty"`
	ContextualRoles *map[string][]string `json:"contextual_roles,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u PartialUpdate) IsEmpty() bool {
	return u.HierarchyLevel == nil &&
		u.Departments == nil &&
		u.Projects == nil &&
		u.ContextualRoles == nil
}

// CascadeHook removes the records a dependent store holds for an email
// and reports how many it removed. Hooks run synchronously during
// Remove, before the profile row itself is deleted, so no dangling
// references to a removed identity remain discoverable afterwards.
//
// storage.TicketStore.DeleteTicketsByUser and
// storage.FeedbackStore.DeleteFeedbackByUser satisfy this signature
// directly.
type CascadeHook func(ctx context.Context, email string) (int64, error)
