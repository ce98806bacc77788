package tickets

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/httputil"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Handlers provides the HTTP surface for tickets.
type Handlers struct {
	service *Service
}

// NewHandlers creates ticket handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers ticket routes. The router is expected to sit
// behind the auth middleware, which put the caller's profile in the
// request context.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tickets", h.create).Methods("POST")
	router.HandleFunc("/tickets", h.list).Methods("GET")
	router.HandleFunc("/teams", h.teams).Methods("GET")
}

// ListResponse is the payload of GET /tickets.
type ListResponse struct {
	Tickets []*storage.Ticket `json:"tickets"`
	Total   int64             `json:"total"`
}

// create handles POST /tickets
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	profile, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	if !ok || profile == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ticket, err := h.service.Create(r.Context(), *profile, req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to create ticket")
		return
	}

	httputil.WriteCreated(w, ticket)
}

// list handles GET /tickets
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	profile, ok := r.Context().Value(contextkeys.ProfileKey).(*access.Profile)
	if !ok || profile == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	limit, _ := httputil.ParseQueryInt(r, "limit", 0)
	offset, _ := httputil.ParseQueryInt(r, "offset", 0)

	tickets, total, err := h.service.ListByUser(r.Context(), *profile, limit, offset)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []*storage.Ticket{}
	}

	httputil.WriteSuccess(w, ListResponse{Tickets: tickets, Total: total})
}

// teams handles GET /teams
func (h *Handlers) teams(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string][]Team{"teams": Teams()})
}
