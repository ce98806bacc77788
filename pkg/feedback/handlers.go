package feedback

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/httputil"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Handlers provides the HTTP surface for feedback.
type Handlers struct {
	service *Service
}

// NewHandlers creates feedback handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers feedback routes. The router is expected to
// sit behind the auth middleware, which put the caller's profile in the
// request context.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/feedback", h.record).Methods("POST")
	router.HandleFunc("/feedback", h.list).Methods("GET")
}

// ListResponse is the payload of GET /feedback.
type ListResponse struct {
	Feedback []*storage.Feedback `json:"feedback"`
	Total    int64               `json:"total"`
}

// record handles POST /feedback
func (h *Handlers) record(w http.ResponseWriter, r *http.Request) {
	profile, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	if !ok || profile == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req RecordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	fb, err := h.service.Record(r.Context(), *profile, req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	httputil.WriteCreated(w, fb)
}

// list handles GET /feedback
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	profile, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	if !ok || profile == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	limit, _ := httputil.ParseQueryInt(r, "limit", 0)
	offset, _ := httputil.ParseQueryInt(r, "offset", 0)

	entries, total, err := h.service.ListByUser(r.Context(), *profile, limit, offset)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}
	if entries == nil {
		entries = []*storage.Feedback{}
	}

	httputil.WriteSuccess(w, ListResponse{Feedback: entries, Total: total})
}
