package feedback

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

// Stored rating glyphs. The store keeps the glyph, not the API token,
// so existing rows and analytics queries keep working across rating
// vocabularies.
const (
	RatingHelpful    = "👍"
	RatingNotHelpful = "👎"
)

// ErrValidation marks a request the caller can fix and resubmit.
var ErrValidation = errors.New("validation failed")

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxCommentLen    = 2000
)

// Config carries the optional collaborators of the feedback service.
type Config struct {
	// Audit receives feedback.record events. Defaults to the no-op
	// logger.
	Audit audit.Logger

	// Logger for operational logging. Defaults to an info-level
	// logger on stdout.
	Logger *observability.Logger

	// Metrics counts recorded feedback by rating. Optional.
	Metrics *observability.Metrics
}

// Service records and lists per-user answer feedback. Entries are
// scoped to their author; removing a user cascades into this store
// through the profile service's cascade hooks.
type Service struct {
	store   storage.FeedbackStore
	audit   audit.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the feedback service.
func NewService(store storage.FeedbackStore, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("feedback store is required")
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNoOpLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:   store,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// RecordRequest is a feedback submission for one answered message.
type RecordRequest struct {
	MessageID string `json:"message_id"`
	Rating    string `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// Record validates and stores one feedback entry for the calling user.
// Rating accepts "up" or "down" (or the stored glyphs directly) and is
// persisted as 👍 or 👎.
func (s *Service) Record(ctx context.Context, user access.Profile, req RecordRequest) (*storage.Feedback, error) {
	if user.Email == "" {
		return nil, fmt.Errorf("%w: user email is empty", ErrValidation)
	}
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrValidation)
	}
	rating, err := normalizeRating(req.Rating)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	comment := strings.TrimSpace(req.Comment)
	if len(comment) > maxCommentLen {
		return nil, fmt.Errorf("%w: comment exceeds %d characters", ErrValidation, maxCommentLen)
	}

	fb := &storage.Feedback{
		ID:        uuid.New().String(),
		UserEmail: user.Email,
		MessageID: messageID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}

	if s.metrics != nil {
		s.metrics.FeedbackRecordedTotal.WithLabelValues(ratingLabel(rating)).Inc()
	}
	_ = s.audit.LogDataMutation(ctx, audit.EventTypeFeedbackRecord, user.Email,
		audit.ResourceTypeFeedback, fb.ID, nil, "recorded answer feedback")
	s.logger.WithFields(map[string]interface{}{
		"feedback_id": fb.ID,
		"message_id":  messageID,
		"rating":      ratingLabel(rating),
	}).Info("feedback recorded")

	return fb, nil
}

// ListByUser returns the caller's own feedback entries, newest first,
// plus the caller's total entry count.
func (s *Service) ListByUser(ctx context.Context, caller access.Profile, limit, offset int) ([]*storage.Feedback, int64, error) {
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

	entries, total, err := s.store.ListFeedbackByUser(ctx, caller.Email, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	return entries, total, nil
}

// normalizeRating maps an API rating token to its stored glyph.
func normalizeRating(rating string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(rating)) {
	case "up", RatingHelpful:
		return RatingHelpful, nil
	case "down", RatingNotHelpful:
		return RatingNotHelpful, nil
	default:
		return "", fmt.Errorf("unknown rating %q (accepted: up, down)", rating)
	}
}

// ratingLabel maps a stored glyph back to the plain token used in
// metric labels and logs.
func ratingLabel(rating string) string {
	if rating == RatingHelpful {
		return "up"
	}
	return "down"
}
