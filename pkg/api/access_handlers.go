package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/httputil"
	"github.com/lanternhq/lantern/pkg/profiles"
	"github.com/lanternhq/lantern/pkg/storage"
)

// me handles GET /me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	profile, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, profile)
}

// CheckAccessRequest asks whether a user may read one document. Exactly
// one of Path or Requirement selects the document; UserEmail names a
// subject other than the caller and requires the administrator rank.
type CheckAccessRequest struct {
	Path        string              `json:"path,omitempty"`
	Requirement *access.Requirement `json:"requirement,omitempty"`
	UserEmail   string              `json:"user_email,omitempty"`
}

// CheckAccessResponse carries the evaluated decision alongside the
// requirement it was evaluated against.
type CheckAccessResponse struct {
	Subject     string             `json:"subject"`
	Requirement access.Requirement `json:"requirement"`
	Decision    access.Decision    `json:"decision"`
}

// checkAccess handles POST /access/check
func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CheckAccessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Path == "" && req.Requirement == nil {
		httputil.WriteValidationError(w, "either path or requirement is required")
		return
	}
	if req.Path != "" && req.Requirement != nil {
		httputil.WriteValidationError(w, "path and requirement are mutually exclusive")
		return
	}

	subject := *caller
	if target := profiles.NormalizeEmail(req.UserEmail); target != "" && target != caller.Email {
		resolved, err := s.profiles.View(r.Context(), *caller, target)
		if err != nil {
			s.writeProfileError(w, err)
			return
		}
		subject = *resolved
	}

	var requirement access.Requirement
	if req.Requirement != nil {
		requirement = *req.Requirement
	} else {
		requirement = s.resolveRequirement(r.Context(), req.Path)
	}

	started := time.Now()
	decision := s.evaluator.Evaluate(subject, requirement)
	if s.metrics != nil {
		s.metrics.ObserveAccessCheck(string(decision.Clause), decision.Allowed, time.Since(started))
	}

	eventType, status := audit.EventTypeAccessCheck, audit.EventStatusSuccess
	if !decision.Allowed {
		eventType, status = audit.EventTypeAccessDenied, audit.EventStatusDenied
	}
	_ = s.audit.LogAuthorization(r.Context(), eventType, subject.Email,
		audit.ResourceTypeDocument, requirement.SourcePath, status, decision.Reason)

	httputil.WriteSuccess(w, CheckAccessResponse{
		Subject:     subject.Email,
		Requirement: requirement,
		Decision:    decision,
	})
}

// resolveRequirement prefers the requirement stored by the sync
// pipeline and falls back to deriving one from the path when the
// document is not indexed. The two agree whenever the index is current;
// the stored form additionally reflects the vocabulary in force at
// index time.
func (s *Server) resolveRequirement(ctx context.Context, path string) access.Requirement {
	if s.documents != nil {
		stored, err := s.documents.GetDocumentRequirement(ctx, path)
		if err == nil {
			return *stored
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(err).WithField("path", path).Warn("stored requirement lookup failed, deriving from path")
		}
	}
	return s.deriver.Derive(path)
}
