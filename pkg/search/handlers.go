package search

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/httputil"
)

// Handlers provides the HTTP surface for search.
type Handlers struct {
	service *Service
}

// NewHandlers creates search handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers search routes. The router is expected to sit
// behind the auth middleware, which put the caller's profile in the
// request context.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/search", h.search).Methods("POST")
}

// search handles POST /search
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	profile, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	if !ok || profile == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.Search(r.Context(), *profile, req)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "search failed")
		return
	}

	httputil.WriteSuccess(w, resp)
}
