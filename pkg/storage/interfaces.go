package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lanternhq/lantern/pkg/access"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// must treat it as a distinct condition from an access denial.
var ErrNotFound = errors.New("storage: record not found")

// ProfileStore persists user access profiles keyed by email.
type ProfileStore interface {
	GetProfile(ctx context.Context, email string) (*access.Profile, error)
	UpsertProfile(ctx context.Context, profile *access.Profile) error
	DeleteProfile(ctx context.Context, email string) error
	ListProfiles(ctx context.Context, limit, offset int) ([]*access.Profile, int64, error)
}

// DocumentStore persists the indexed document corpus.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, docKey string) (*Document, error)
	// GetDocumentRequirement returns only the permission metadata for a
	// document, without loading its content. Implementations may cache it.
	GetDocumentRequirement(ctx context.Context, docKey string) (*access.Requirement, error)
	DeleteDocument(ctx context.Context, docKey string) error
	SearchDocuments(ctx context.Context, query string, limit int) ([]*Document, error)
	ListDocumentETags(ctx context.Context) (map[string]string, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// TicketStore persists support tickets.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *Ticket) error
	ListTicketsByUser(ctx context.Context, email string, limit, offset int) ([]*Ticket, int64, error)
	DeleteTicketsByUser(ctx context.Context, email string) (int64, error)
}

// FeedbackStore persists message feedback.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *Feedback) error
	ListFeedbackByUser(ctx context.Context, email string, limit, offset int) ([]*Feedback, int64, error)
	DeleteFeedbackByUser(ctx context.Context, email string) (int64, error)
}

// Store is the unified persistence interface implemented by each backend.
// All methods accept context.Context for cancellation, timeouts, and tracing.
type Store interface {
	ProfileStore
	DocumentStore
	TicketStore
	FeedbackStore

	HealthCheck(ctx context.Context) error
	Close() error
}

// Config for storage backend
type Config struct {
	Type string // "sqlite", "postgres"

	// SQLite config
	SQLitePath string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // comma-separated read replica URLs
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// S3 config (document corpus source)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "sqlite",
		SQLitePath:       "/var/lib/lantern/lantern.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		S3Region:         "us-east-1",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"profile":     15 * time.Minute,
			"requirement": 1 * time.Hour,
			"search":      2 * time.Minute,
			"ratelimit":   1 * time.Minute,
		},
	}
}
