package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Store implements storage.Store on PostgreSQL. Writes go to the primary,
// reads to the replicas. Redis caching and the S3 corpus client are optional
// and enabled through the config.
type Store struct {
	conns  *ConnectionManager
	s3     *S3Client
	redis  *RedisClient
	config storage.Config
}

// New connects to PostgreSQL, applies the schema, and wires up the optional
// Redis and S3 clients.
func New(config storage.Config) (*Store, error) {
	conns, err := NewConnectionManager(NewConnectionConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := EnsureSchema(ctx, conns.Primary()); err != nil {
		conns.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	var s3Client *S3Client
	if config.S3Bucket != "" {
		s3Client, err = NewS3Client(config)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	var redisClient *RedisClient
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err = NewRedisClient(config)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
	}

	return &Store{
		conns:  conns,
		s3:     s3Client,
		redis:  redisClient,
		config: config,
	}, nil
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, email string) (*access.Profile, error) {
	// Check cache first
	if s.redis != nil {
		if profile, err := s.redis.GetProfile(ctx, email); err == nil && profile != nil {
			return profile, nil
		}
	}

	query := `
		SELECT user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at
		FROM user_access_profiles
		WHERE user_email = $1
	`

	var (
		profile     access.Profile
		departments []byte
		projects    []byte
		roles       []byte
	)
	err := s.conns.Replica().QueryRowContext(ctx, query, email).Scan(
		&profile.Email,
		&profile.HierarchyLevel,
		&departments,
		&projects,
		&roles,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", email, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := unmarshalProfileFields(&profile, departments, projects, roles); err != nil {
		return nil, err
	}

	// Cache result
	if s.redis != nil {
		s.redis.SetProfile(ctx, &profile)
	}

	return &profile, nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile *access.Profile) error {
	departments, projects, roles, err := marshalProfileFields(profile)
	if err != nil {
		return err
	}

	tx, err := s.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the row so concurrent upserts of the same user serialize, and
	// keep the original creation timestamp across updates.
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM user_access_profiles WHERE user_email = $1 FOR UPDATE`,
		profile.Email,
	).Scan(&createdAt)

	now := time.Now().UTC()
	if err == sql.ErrNoRows {
		createdAt = now
	} else if err != nil {
		return fmt.Errorf("failed to lock profile row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_access_profiles (user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_email) DO UPDATE SET
			hierarchy_level  = EXCLUDED.hierarchy_level,
			departments      = EXCLUDED.departments,
			projects         = EXCLUDED.projects,
			contextual_roles = EXCLUDED.contextual_roles,
			updated_at       = EXCLUDED.updated_at
	`, profile.Email, profile.HierarchyLevel, departments, projects, roles, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile upsert: %w", err)
	}

	profile.CreatedAt = createdAt
	profile.UpdatedAt = now

	// Invalidate cache
	if s.redis != nil {
		s.redis.InvalidateProfile(ctx, profile.Email)
	}

	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, email string) error {
	result, err := s.conns.Primary().ExecContext(ctx,
		`DELETE FROM user_access_profiles WHERE user_email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", email, storage.ErrNotFound)
	}

	if s.redis != nil {
		s.redis.InvalidateProfile(ctx, email)
	}

	return nil
}

func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]*access.Profile, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := s.conns.Replica()

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_access_profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at
		FROM user_access_profiles
		ORDER BY user_email
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*access.Profile
	for rows.Next() {
		var (
			profile     access.Profile
			departments []byte
			projects    []byte
			roles       []byte
		)
		err := rows.Scan(
			&profile.Email,
			&profile.HierarchyLevel,
			&departments,
			&projects,
			&roles,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan profile: %w", err)
		}
		if err := unmarshalProfileFields(&profile, departments, projects, roles); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, &profile)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, total, nil
}

// Documents

func (s *Store) UpsertDocument(ctx context.Context, doc *storage.Document) error {
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}

	_, err := s.conns.Primary().ExecContext(ctx, `
		INSERT INTO documents (doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (doc_key) DO UPDATE SET
			source_path         = EXCLUDED.source_path,
			title               = EXCLUDED.title,
			content_text        = EXCLUDED.content_text,
			department_tag      = EXCLUDED.department_tag,
			project_tag         = EXCLUDED.project_tag,
			min_hierarchy_level = EXCLUDED.min_hierarchy_level,
			required_role       = EXCLUDED.required_role,
			role_context        = EXCLUDED.role_context,
			source_etag         = EXCLUDED.source_etag,
			size_bytes          = EXCLUDED.size_bytes,
			indexed_at          = EXCLUDED.indexed_at
	`, doc.DocKey, doc.SourcePath, doc.Title, doc.ContentText, doc.Department, doc.Project,
		doc.MinHierarchyLevel, doc.RequiredRole, doc.RoleContext, doc.SourceETag, doc.SizeBytes, doc.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// Search cache entries are left to expire on their own TTL; invalidating
	// them per document would hammer Redis during a corpus sync.
	if s.redis != nil {
		s.redis.InvalidateRequirement(ctx, doc.DocKey)
	}

	return nil
}

func (s *Store) GetDocument(ctx context.Context, docKey string) (*storage.Document, error) {
	query := `
		SELECT doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at
		FROM documents
		WHERE doc_key = $1
	`

	var doc storage.Document
	err := s.conns.Replica().QueryRowContext(ctx, query, docKey).Scan(
		&doc.DocKey, &doc.SourcePath, &doc.Title, &doc.ContentText, &doc.Department, &doc.Project,
		&doc.MinHierarchyLevel, &doc.RequiredRole, &doc.RoleContext, &doc.SourceETag, &doc.SizeBytes, &doc.IndexedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docKey, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

func (s *Store) GetDocumentRequirement(ctx context.Context, docKey string) (*access.Requirement, error) {
	// Check cache first
	if s.redis != nil {
		if req, err := s.redis.GetRequirement(ctx, docKey); err == nil && req != nil {
			return req, nil
		}
	}

	query := `
		SELECT source_path, department_tag, project_tag, min_hierarchy_level, required_role, role_context
		FROM documents
		WHERE doc_key = $1
	`

	var req access.Requirement
	err := s.conns.Replica().QueryRowContext(ctx, query, docKey).Scan(
		&req.SourcePath, &req.Department, &req.Project,
		&req.MinHierarchyLevel, &req.RequiredRole, &req.RoleContext,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docKey, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get document requirement: %w", err)
	}

	// Cache result
	if s.redis != nil {
		s.redis.SetRequirement(ctx, docKey, &req)
	}

	return &req, nil
}

// DeleteDocument removes a document from the index. Deleting an absent
// document is not an error; corpus sync relies on the delete being
// idempotent.
func (s *Store) DeleteDocument(ctx context.Context, docKey string) error {
	_, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM documents WHERE doc_key = $1`, docKey)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if s.redis != nil {
		s.redis.InvalidateRequirement(ctx, docKey)
	}

	return nil
}

func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]*storage.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	// Candidate sets are permission-agnostic, so one cache entry serves all
	// viewers. Access filtering happens downstream per request.
	if s.redis != nil {
		if docs, err := s.redis.GetSearchResults(ctx, query, limit); err == nil && docs != nil {
			return docs, nil
		}
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.conns.Replica().QueryContext(ctx, `
		SELECT doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at
		FROM documents
		WHERE title ILIKE $1 ESCAPE '\' OR content_text ILIKE $1 ESCAPE '\'
		ORDER BY source_path
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var docs []*storage.Document
	for rows.Next() {
		var doc storage.Document
		err := rows.Scan(
			&doc.DocKey, &doc.SourcePath, &doc.Title, &doc.ContentText, &doc.Department, &doc.Project,
			&doc.MinHierarchyLevel, &doc.RequiredRole, &doc.RoleContext, &doc.SourceETag, &doc.SizeBytes, &doc.IndexedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	if s.redis != nil && len(docs) > 0 {
		s.redis.SetSearchResults(ctx, query, limit, docs)
	}

	return docs, nil
}

func (s *Store) ListDocumentETags(ctx context.Context) (map[string]string, error) {
	rows, err := s.conns.Replica().QueryContext(ctx, `SELECT doc_key, source_etag FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list document etags: %w", err)
	}
	defer rows.Close()

	etags := make(map[string]string)
	for rows.Next() {
		var docKey, etag string
		if err := rows.Scan(&docKey, &etag); err != nil {
			return nil, fmt.Errorf("failed to scan document etag: %w", err)
		}
		etags[docKey] = etag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document etags: %w", err)
	}

	return etags, nil
}

func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := s.conns.Replica().QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Tickets

func (s *Store) CreateTicket(ctx context.Context, ticket *storage.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("ticket id is required")
	}
	if ticket.Status == "" {
		ticket.Status = storage.TicketStatusOpen
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}

	_, err := s.conns.Primary().ExecContext(ctx, `
		INSERT INTO tickets (id, creator_email, title, description, suggested_team, selected_team, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ticket.ID, ticket.CreatorEmail, ticket.Title, ticket.Description,
		ticket.SuggestedTeam, ticket.SelectedTeam, ticket.Status, ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

func (s *Store) ListTicketsByUser(ctx context.Context, email string, limit, offset int) ([]*storage.Ticket, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := s.conns.Replica()

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE creator_email = $1`, email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, creator_email, title, description, suggested_team, selected_team, status, created_at
		FROM tickets
		WHERE creator_email = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, email, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*storage.Ticket
	for rows.Next() {
		var ticket storage.Ticket
		err := rows.Scan(
			&ticket.ID, &ticket.CreatorEmail, &ticket.Title, &ticket.Description,
			&ticket.SuggestedTeam, &ticket.SelectedTeam, &ticket.Status, &ticket.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, &ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, total, nil
}

func (s *Store) DeleteTicketsByUser(ctx context.Context, email string) (int64, error) {
	result, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM tickets WHERE creator_email = $1`, email)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tickets: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	return rows, nil
}

// Feedback

func (s *Store) CreateFeedback(ctx context.Context, fb *storage.Feedback) error {
	if fb.ID == "" {
		return fmt.Errorf("feedback id is required")
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.conns.Primary().ExecContext(ctx, `
		INSERT INTO feedback (id, user_email, message_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fb.ID, fb.UserEmail, fb.MessageID, fb.Rating, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

func (s *Store) ListFeedbackByUser(ctx context.Context, email string, limit, offset int) ([]*storage.Feedback, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := s.conns.Replica()

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE user_email = $1`, email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, user_email, message_id, rating, comment, created_at
		FROM feedback
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, email, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var entries []*storage.Feedback
	for rows.Next() {
		var fb storage.Feedback
		err := rows.Scan(&fb.ID, &fb.UserEmail, &fb.MessageID, &fb.Rating, &fb.Comment, &fb.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan feedback: %w", err)
		}
		entries = append(entries, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating feedback: %w", err)
	}

	return entries, total, nil
}

func (s *Store) DeleteFeedbackByUser(ctx context.Context, email string) (int64, error) {
	result, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM feedback WHERE user_email = $1`, email)
	if err != nil {
		return 0, fmt.Errorf("failed to delete feedback: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	return rows, nil
}

// Health and lifecycle

func (s *Store) HealthCheck(ctx context.Context) error {
	// Check PostgreSQL
	if err := s.conns.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}

	// Check S3
	if s.s3 != nil {
		if err := s.s3.HealthCheck(ctx); err != nil {
			return fmt.Errorf("s3 unhealthy: %w", err)
		}
	}

	// Check Redis
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// DB returns the primary database connection, for collaborators that manage
// their own tables (audit logging).
func (s *Store) DB() *sql.DB {
	return s.conns.Primary()
}

// Redis returns the Redis client (may be nil if not configured)
func (s *Store) Redis() *RedisClient {
	return s.redis
}

// Corpus returns the S3 corpus client (may be nil if not configured)
func (s *Store) Corpus() *S3Client {
	return s.s3
}

// Connections returns the underlying connection manager, for pool stats and
// background replica health checks.
func (s *Store) Connections() *ConnectionManager {
	return s.conns
}

// Close closes all connections
func (s *Store) Close() error {
	if s.conns != nil {
		s.conns.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	return nil
}

// Profile field codecs. Nil slices and maps are stored as empty JSON
// containers so the columns stay NOT NULL.

func marshalProfileFields(profile *access.Profile) (departments, projects, roles []byte, err error) {
	deps := profile.Departments
	if deps == nil {
		deps = []string{}
	}
	departments, err = json.Marshal(deps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode departments: %w", err)
	}

	projs := profile.Projects
	if projs == nil {
		projs = []string{}
	}
	projects, err = json.Marshal(projs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode projects: %w", err)
	}

	ctxRoles := profile.ContextualRoles
	if ctxRoles == nil {
		ctxRoles = map[string][]string{}
	}
	roles, err = json.Marshal(ctxRoles)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode contextual roles: %w", err)
	}

	return departments, projects, roles, nil
}

func unmarshalProfileFields(profile *access.Profile, departments, projects, roles []byte) error {
	if len(departments) > 0 {
		if err := json.Unmarshal(departments, &profile.Departments); err != nil {
			return fmt.Errorf("failed to decode departments: %w", err)
		}
	}
	if len(projects) > 0 {
		if err := json.Unmarshal(projects, &profile.Projects); err != nil {
			return fmt.Errorf("failed to decode projects: %w", err)
		}
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &profile.ContextualRoles); err != nil {
			return fmt.Errorf("failed to decode contextual roles: %w", err)
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards in user-supplied search terms.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
