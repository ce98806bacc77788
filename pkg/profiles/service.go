package profiles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/vocab"
)

// Service implements the administrative operations over user access
// profiles: view, upsert, remove and list. Every operation requires an
// administrator caller; the check reuses the evaluator's admin override
// so the system has exactly one definition of "admin".
type Service struct {
	store     storage.ProfileStore
	vocab     *vocab.Vocabulary
	evaluator *access.Evaluator
	audit     audit.Logger

	// Mutations to the same email serialize on a per-email lock so a
	// concurrent pair of field updates cannot interleave between the
	// read and the write and drop one of the fields. Entries are never
	// evicted; the map is bounded by the administered user base.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	hooks []cascadeHook
}

type cascadeHook struct {
	name string
	fn   CascadeHook
}

// NewService creates the administration service. A nil audit logger
// disables auditing.
func NewService(store storage.ProfileStore, v *vocab.Vocabulary, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}
	return &Service{
		store:     store,
		vocab:     v,
		evaluator: access.NewEvaluator(v),
		audit:     auditLogger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// RegisterCascadeHook registers a dependent-store cleanup to run during
// Remove, in registration order. Register hooks during wiring; the hook
// list is not guarded against concurrent mutation.
func (s *Service) RegisterCascadeHook(name string, fn CascadeHook) {
	s.hooks = append(s.hooks, cascadeHook{name: name, fn: fn})
}

// DefaultProfile is the minimal profile a first login or first
// administrative grant starts from: the vocabulary's default minimum
// rank and no tags, so a brand-new user can only read fully general
// documents at the base level.
func DefaultProfile(v *vocab.Vocabulary, email string) *access.Profile {
	return &access.Profile{
		Email:           NormalizeEmail(email),
		HierarchyLevel:  v.DefaultMinLevel(),
		Departments:     []string{},
		Projects:        []string{},
		ContextualRoles: map[string][]string{},
	}
}

// View returns the target's profile. ErrUnauthorized for non-admin
// callers, ErrNotFound when the profile does not exist.
func (s *Service) View(ctx context.Context, caller access.Profile, targetEmail string) (*access.Profile, error) {
	email := NormalizeEmail(targetEmail)
	if err := s.authorize(ctx, caller, audit.EventTypeAdminPermissionView, email); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", email, err)
	}

	_ = s.audit.LogAdminAction(ctx, audit.EventTypeAdminPermissionView,
		caller.Email, email, nil, "viewed access profile")

	out := profile.Clone()
	return &out, nil
}

// Upsert applies an administrative update to the target's profile,
// creating it from DefaultProfile when absent. Each present field of
// the update replaces the stored field wholesale; omitted fields are
// left untouched. The payload is validated and normalized before any
// store access.
func (s *Service) Upsert(ctx context.Context, caller access.Profile, targetEmail string, update PartialUpdate) (*access.Profile, error) {
	email := NormalizeEmail(targetEmail)
	if err := s.authorize(ctx, caller, audit.EventTypeAdminPermissionUpdate, email); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fmt.Errorf("%w: target email is empty", ErrValidation)
	}

	normalized, err := s.validateUpdate(update)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEmail(email)
	defer unlock()

	current, err := s.store.GetProfile(ctx, email)
	created := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		current = DefaultProfile(s.vocab, email)
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to load profile %s: %w", email, err)
	}

	updated := applyUpdate(*current, normalized)
	if err := s.store.UpsertProfile(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to upsert profile %s: %w", email, err)
	}

	changes := &audit.ChangeDetails{After: changeRecord(&updated)}
	message := "updated access profile"
	if created {
		message = "created access profile"
	} else {
		changes.Before = changeRecord(current)
	}
	_ = s.audit.LogAdminAction(ctx, audit.EventTypeAdminPermissionUpdate,
		caller.Email, email, changes, message)

	out := updated.Clone()
	return &out, nil
}

// Remove deletes the target's profile after running every registered
// cascade hook. A hook failure aborts the removal with the profile
// still in place, so retries see a consistent state. ErrNotFound when
// the profile does not exist.
func (s *Service) Remove(ctx context.Context, caller access.Profile, targetEmail string) error {
	email := NormalizeEmail(targetEmail)
	if err := s.authorize(ctx, caller, audit.EventTypeAdminUserRemove, email); err != nil {
		return err
	}

	unlock := s.lockEmail(email)
	defer unlock()

	current, err := s.store.GetProfile(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", email, err)
	}

	removed := make(map[string]interface{}, len(s.hooks))
	for _, hook := range s.hooks {
		count, err := hook.fn(ctx, email)
		if err != nil {
			return fmt.Errorf("cascade %s for %s: %w", hook.name, email, err)
		}
		removed[hook.name] = count
	}

	if err := s.store.DeleteProfile(ctx, email); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", email, ErrNotFound)
		}
		return fmt.Errorf("failed to delete profile %s: %w", email, err)
	}

	changes := &audit.ChangeDetails{Before: changeRecord(current)}
	if len(removed) > 0 {
		changes.After = map[string]interface{}{"cascaded": removed}
	}
	_ = s.audit.LogAdminAction(ctx, audit.EventTypeAdminUserRemove,
		caller.Email, email, changes, "removed user and dependent records")

	return nil
}

// List returns a page of profiles plus the total count.
func (s *Service) List(ctx context.Context, caller access.Profile, limit, offset int) ([]*access.Profile, int64, error) {
	if err := s.authorize(ctx, caller, audit.EventTypeAdminUserList, ""); err != nil {
		return nil, 0, err
	}

	profiles, total, err := s.store.ListProfiles(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	_ = s.audit.LogAdminAction(ctx, audit.EventTypeAdminUserList,
		caller.Email, "", nil, fmt.Sprintf("listed %d of %d profiles", len(profiles), total))

	return profiles, total, nil
}

// EnsureProfile loads the profile for an authenticated identity,
// creating the first-login default when none exists yet. It carries no
// caller authorization: the identity was just authenticated and is
// acting on itself.
func (s *Service) EnsureProfile(ctx context.Context, email string) (*access.Profile, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("%w: email is empty", ErrValidation)
	}

	profile, err := s.store.GetProfile(ctx, normalized)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile %s: %w", normalized, err)
	}

	unlock := s.lockEmail(normalized)
	defer unlock()

	// A concurrent first login may have provisioned the row while we
	// waited on the lock.
	profile, err = s.store.GetProfile(ctx, normalized)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile %s: %w", normalized, err)
	}

	fresh := DefaultProfile(s.vocab, normalized)
	if err := s.store.UpsertProfile(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to provision profile %s: %w", normalized, err)
	}

	_ = s.audit.LogAdminAction(ctx, audit.EventTypeAdminPermissionUpdate,
		"", normalized, &audit.ChangeDetails{After: changeRecord(fresh)},
		"auto-provisioned first-login profile")

	return fresh, nil
}

// IsAdmin reports whether a profile holds the administrator rank, as
// the evaluator defines it.
func (s *Service) IsAdmin(p access.Profile) bool {
	return s.evaluator.IsAdmin(p)
}

// authorize rejects non-admin callers before any lookup happens.
func (s *Service) authorize(ctx context.Context, caller access.Profile, action audit.EventType, targetEmail string) error {
	if s.evaluator.IsAdmin(caller) {
		return nil
	}
	_ = s.audit.LogAuthorization(ctx, audit.EventTypeAccessDenied, caller.Email,
		audit.ResourceTypeProfile, targetEmail, audit.EventStatusDenied,
		fmt.Sprintf("%s requires administrator rank", action))
	return fmt.Errorf("%s: %w", action, ErrUnauthorized)
}

// lockEmail acquires the per-email mutation lock and returns its
// release function.
func (s *Service) lockEmail(email string) func() {
	s.mu.Lock()
	lock, ok := s.locks[email]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[email] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// applyUpdate merges a validated update into a profile copy. Present
// fields replace wholesale; absent fields survive untouched.
func applyUpdate(current access.Profile, update PartialUpdate) access.Profile {
	updated := current.Clone()
	if update.HierarchyLevel != nil {
		updated.HierarchyLevel = *update.HierarchyLevel
	}
	if update.Departments != nil {
		updated.Departments = append([]string(nil), (*update.Departments)...)
	}
	if update.Projects != nil {
		updated.Projects = append([]string(nil), (*update.Projects)...)
	}
	if update.ContextualRoles != nil {
		roles := make(map[string][]string, len(*update.ContextualRoles))
		for context, tags := range *update.ContextualRoles {
			roles[context] = append([]string(nil), tags...)
		}
		updated.ContextualRoles = roles
	}
	return updated
}

// changeRecord snapshots the mutable profile fields for an audit
// ChangeDetails entry.
func changeRecord(p *access.Profile) map[string]interface{} {
	return map[string]interface{}{
		"hierarchy_level":  p.HierarchyLevel,
		"departments":      p.Departments,
		"projects":         p.Projects,
		"contextual_roles": p.ContextualRoles,
	}
}
