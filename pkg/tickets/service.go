package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
)

// ErrValidation marks a request the caller can fix and resubmit.
var ErrValidation = errors.New("validation failed")

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxTitleLen      = 500
)

// Config carries the optional collaborators of the ticket service.
type Config struct {
	// Suggester proposes a team for new tickets. Defaults to the
	// lexical KeywordSuggester.
	Suggester Suggester

	// Audit receives ticket.create events. Defaults to the no-op
	// logger.
	Audit audit.Logger

	// Logger for operational logging. Defaults to an info-level
	// logger on stdout.
	Logger *observability.Logger

	// Metrics counts created tickets by team. Optional.
	Metrics *observability.Metrics
}

// Service creates and lists support tickets. Tickets are scoped to
// their creator: listing only ever returns the caller's own tickets,
// and removing a user cascades into this store through the profile
// service's cascade hooks.
type Service struct {
	store     storage.TicketStore
	suggester Suggester
	audit     audit.Logger
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewService creates the ticket service.
func NewService(store storage.TicketStore, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("ticket store is required")
	}
	if cfg.Suggester == nil {
		cfg.Suggester = NewKeywordSuggester()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNoOpLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:     store,
		suggester: cfg.Suggester,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// CreateRequest is a new-ticket submission. SelectedTeam is optional;
// when empty the suggested team is selected.
type CreateRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	SelectedTeam string `json:"selected_team,omitempty"`
}

// Create validates the request, suggests a team from the ticket text
// and stores the ticket. A failing suggester does not block creation;
// the ticket is routed to General instead.
func (s *Service) Create(ctx context.Context, creator access.Profile, req CreateRequest) (*storage.Ticket, error) {
	if creator.Email == "" {
		return nil, fmt.Errorf("%w: creator email is empty", ErrValidation)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: ticket title is required", ErrValidation)
	}
	if len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: ticket title exceeds %d characters", ErrValidation, maxTitleLen)
	}

	suggested, confidence, err := s.suggester.Suggest(ctx, title, req.Description)
	if err != nil {
		s.logger.WithError(err).WithField("creator", creator.Email).
			Warn("team suggestion failed, routing to General")
		suggested, confidence = TeamGeneral, 0
	}

	selected := suggested
	if req.SelectedTeam != "" {
		canonical, err := CanonicalTeam(req.SelectedTeam)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		selected = canonical
	}

	ticket := &storage.Ticket{
		ID:            uuid.New().String(),
		CreatorEmail:  creator.Email,
		Title:         title,
		Description:   strings.TrimSpace(req.Description),
		SuggestedTeam: suggested,
		SelectedTeam:  selected,
		Status:        storage.TicketStatusOpen,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TicketsCreatedTotal.WithLabelValues(selected).Inc()
	}
	_ = s.audit.LogDataMutation(ctx, audit.EventTypeTicketCreate, creator.Email,
		audit.ResourceTypeTicket, ticket.ID, nil, "created support ticket")
	s.logger.WithFields(map[string]interface{}{
		"ticket_id":  ticket.ID,
		"team":       selected,
		"suggested":  suggested,
		"confidence": confidence,
	}).Info("ticket created")

	return ticket, nil
}

// ListByUser returns the caller's own tickets, newest first, plus the
// caller's total ticket count.
func (s *Service) ListByUser(ctx context.Context, caller access.Profile, limit, offset int) ([]*storage.Ticket, int64, error) {
	if caller.Email == "" {
		return nil, 0, fmt.Errorf("%w: caller email is empty", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tickets, total, err := s.store.ListTicketsByUser(ctx, caller.Email, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, total, nil
}
