package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/httputil"
	"github.com/lanternhq/lantern/pkg/profiles"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// callerProfile pulls the authenticated caller's profile out of the
// request context, where the auth middleware stored it.
func callerProfile(r *http.Request) (*access.Profile, bool) {
	p, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	return p, ok && p != nil
}

// ListUsersResponse is the payload of GET /admin/users.
type ListUsersResponse struct {
	Users  []*access.Profile `json:"users"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// viewUser handles GET /admin/users/{email}/permissions
func (s *Server) viewUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	profile, err := s.profiles.View(r.Context(), *caller, mux.Vars(r)["email"])
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// upsertUser handles PUT /admin/users/{email}/permissions
func (s *Server) upsertUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var update profiles.PartialUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	profile, err := s.profiles.Upsert(r.Context(), *caller, mux.Vars(r)["email"], update)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// removeUser handles DELETE /admin/users/{email}
func (s *Server) removeUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := s.profiles.Remove(r.Context(), *caller, mux.Vars(r)["email"]); err != nil {
		s.writeProfileError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listUsers handles GET /admin/users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerProfile(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	limit, _ := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	offset, _ := httputil.ParseQueryInt(r, "offset", 0)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.profiles.List(r.Context(), *caller, limit, offset)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	if users == nil {
		users = []*access.Profile{}
	}
	httputil.WriteSuccess(w, ListUsersResponse{Users: users, Total: total, Limit: limit, Offset: offset})
}

// writeProfileError maps profile-service errors onto the response
// vocabulary. Not-found stays distinct from denial: a 403 never reveals
// whether the target exists, and a 404 is only reachable by admins.
func (s *Server) writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profiles.ErrUnauthorized):
		httputil.WriteForbidden(w, "administrator rank required")
	case errors.Is(err, profiles.ErrNotFound):
		httputil.WriteNotFoundError(w, "profile not found")
	case errors.Is(err, profiles.ErrValidation):
		httputil.WriteValidationError(w, err.Error())
	default:
		s.logger.WithError(err).Error("profile operation failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "profile operation failed")
	}
}
