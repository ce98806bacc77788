package profiles

import (
	"fmt"
	"strings"

	"github.com/lanternhq/lantern/pkg/vocab"
)

// NormalizeEmail canonicalizes an email so lookups, upserts and cascade
// deletions all agree on one key for the same identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateUpdate checks an update against the vocabulary's constraints
// and returns a copy with every tag in canonical normalized form.
// Validation runs before any store access; a failure leaves the store
// untouched.
//
// Tags are required to normalize to something non-empty, but they are
// not required to exist in the vocabulary: the registry governs what
// paths can demand, not what an administrator can grant, and project
// tags in particular are open-ended.
func (s *Service) validateUpdate(update PartialUpdate) (PartialUpdate, error) {
	out := PartialUpdate{}

	if update.HierarchyLevel != nil {
		level := *update.HierarchyLevel
		if level < 0 || level > s.vocab.AdminRank() {
			return out, fmt.Errorf("%w: hierarchy level %d outside [0, %d]",
				ErrValidation, level, s.vocab.AdminRank())
		}
		out.HierarchyLevel = &level
	}

	if update.Departments != nil {
		tags, err := normalizeTagSet("departments", *update.Departments)
		if err != nil {
			return out, err
		}
		out.Departments = &tags
	}

	if update.Projects != nil {
		tags, err := normalizeTagSet("projects", *update.Projects)
		if err != nil {
			return out, err
		}
		out.Projects = &tags
	}

	if update.ContextualRoles != nil {
		roles, err := normalizeRoleMap(*update.ContextualRoles)
		if err != nil {
			return out, err
		}
		out.ContextualRoles = &roles
	}

	return out, nil
}

// normalizeTagSet canonicalizes a tag list, rejecting entries that
// normalize to nothing and dropping duplicates. Order of first
// appearance is preserved.
func normalizeTagSet(field string, tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		normalized := vocab.Normalize(tag)
		if normalized == "" {
			return nil, fmt.Errorf("%w: %s entry %q is empty after normalization",
				ErrValidation, field, tag)
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out, nil
}

// normalizeRoleMap canonicalizes a contextual-roles mapping. Context
// keys and role values both normalize; a nil role list is rejected so a
// grant can never be mistaken for a removal.
func normalizeRoleMap(roles map[string][]string) (map[string][]string, error) {
	out := make(map[string][]string, len(roles))
	for context, roleTags := range roles {
		normalizedCtx := vocab.Normalize(context)
		if normalizedCtx == "" {
			return nil, fmt.Errorf("%w: role context %q is empty after normalization",
				ErrValidation, context)
		}
		if roleTags == nil {
			return nil, fmt.Errorf("%w: role list for context %q is nil; use an empty list to clear",
				ErrValidation, context)
		}
		normalized, err := normalizeTagSet(fmt.Sprintf("roles[%s]", normalizedCtx), roleTags)
		if err != nil {
			return nil, err
		}
		// Merging two raw keys that normalize to the same context keeps
		// each distinct role once.
		if existing, ok := out[normalizedCtx]; ok {
			normalized = mergeTagSets(existing, normalized)
		}
		out[normalizedCtx] = normalized
	}
	return out, nil
}

func mergeTagSets(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, tag := range a {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for _, tag := range b {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
