// Package storage provides pluggable persistence backends for Lantern.
//
// # Overview
//
// This package defines the storage abstraction layer for Lantern, enabling
// multiple backend implementations (SQLite, PostgreSQL, with optional Redis
// caching and S3 as the document corpus source) behind a unified interface.
// It manages user access profiles, the indexed document corpus, support
// tickets, and message feedback.
//
// # Architecture
//
// The storage layer uses interface segregation to compose focused capabilities:
//
//   - ProfileStore: User access profiles (GetProfile, UpsertProfile, DeleteProfile, ListProfiles)
//   - DocumentStore: Indexed corpus documents (UpsertDocument, SearchDocuments, ListDocumentETags)
//   - TicketStore: Support tickets (CreateTicket, ListTicketsByUser, DeleteTicketsByUser)
//   - FeedbackStore: Message feedback (CreateFeedback, DeleteFeedbackByUser)
//
// These interfaces compose into the unified Store interface:
//
//	type Store interface {
//		ProfileStore
//		DocumentStore
//		TicketStore
//		FeedbackStore
//
//		HealthCheck(ctx context.Context) error
//		Close() error
//	}
//
// All methods accept context.Context as the first parameter, enabling:
//   - Request cancellation propagation from HTTP handlers
//   - Timeout enforcement to prevent hanging operations
//   - Distributed tracing through OpenTelemetry
//
// # Backend Implementations
//
// sqlite.Store: Stores everything in a single SQLite database file.
// Best for development, single-node deployments, and evaluation setups.
//
//	store, err := sqlite.New(storage.Config{SQLitePath: "/var/lib/lantern/lantern.db"})
//
// postgres.Store: Stores records in PostgreSQL with optional read replicas,
// Redis caching, and an S3 corpus client. Best for production deployments.
//
//	config := storage.DefaultConfig()
//	config.Type = "postgres"
//	config.PostgresURL = "postgres://localhost/lantern"
//	config.PostgresReplicaURLs = "postgres://replica1/lantern,postgres://replica2/lantern"
//	config.RedisURL = "redis://localhost:6379"
//	store, err := postgres.New(config)
//
// # Records and Referential Integrity
//
// Profiles are keyed by email (user_access_profiles.user_email). Tickets and
// feedback reference the profile with ON DELETE CASCADE so that removing a
// user leaves no dangling rows. DeleteTicketsByUser and DeleteFeedbackByUser
// exist so callers can run the cascade explicitly and report what was removed
// before the profile row itself goes away.
//
// Documents are keyed by doc_key, the normalized relative source path. Each
// row carries the permission metadata derived from that path; the
// Document.Requirement method reconstructs it for access evaluation.
//
// # Not Found
//
// All Get operations return ErrNotFound (possibly wrapped) when the record
// does not exist:
//
//	profile, err := store.GetProfile(ctx, email)
//	if errors.Is(err, storage.ErrNotFound) {
//		// distinct from "access denied"
//	}
//
// # Caching
//
// The PostgreSQL backend caches profiles in Redis with per-class TTLs from
// Config.CacheTTL. Writes invalidate the affected keys before returning.
// When no RedisURL is configured the backend degrades to uncached reads.
package storage
