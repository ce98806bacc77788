// Package sqlite implements storage.Store on an embedded SQLite database.
// It backs single-node deployments where running PostgreSQL, Redis, and S3
// is more operational surface than the install needs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Store implements storage.Store on a local SQLite file. There is no cache
// layer; reads are already local.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the SQLite database at config.SQLitePath and applies
// the schema.
func New(config storage.Config) (*Store, error) {
	if config.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", config.SQLitePath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases
	// coherent across the pool.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{db: db, path: config.SQLitePath}, nil
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, email string) (*access.Profile, error) {
	query := `
		SELECT user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at
		FROM user_access_profiles
		WHERE user_email = ?
	`

	var (
		profile     access.Profile
		departments []byte
		projects    []byte
		roles       []byte
	)
	err := s.db.QueryRowContext(ctx, query, email).Scan(
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

	return &profile, nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile *access.Profile) error {
	departments, projects, roles, err := marshalProfileFields(profile)
	if err != nil {
		return err
	}

	// The transaction takes the database write lock, so the read of the
	// creation timestamp and the upsert are already serialized.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM user_access_profiles WHERE user_email = ?`,
		profile.Email,
	).Scan(&createdAt)

	now := time.Now().UTC()
	if err == sql.ErrNoRows {
		createdAt = now
	} else if err != nil {
		return fmt.Errorf("failed to read profile row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_access_profiles (user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_email) DO UPDATE SET
			hierarchy_level  = excluded.hierarchy_level,
			departments      = excluded.departments,
			projects         = excluded.projects,
			contextual_roles = excluded.contextual_roles,
			updated_at       = excluded.updated_at
	`, profile.Email, profile.HierarchyLevel, departments, projects, roles, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile upsert: %w", err)
	}

	profile.CreatedAt = createdAt
	profile.UpdatedAt = now

	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_access_profiles WHERE user_email = ?`, email)
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

	return nil
}

func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]*access.Profile, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_access_profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_email, hierarchy_level, departments, projects, contextual_roles, created_at, updated_at
		FROM user_access_profiles
		ORDER BY user_email
		LIMIT ? OFFSET ?
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (doc_key) DO UPDATE SET
			source_path         = excluded.source_path,
			title               = excluded.title,
			content_text        = excluded.content_text,
			department_tag      = excluded.department_tag,
			project_tag         = excluded.project_tag,
			min_hierarchy_level = excluded.min_hierarchy_level,
			required_role       = excluded.required_role,
			role_context        = excluded.role_context,
			source_etag         = excluded.source_etag,
			size_bytes          = excluded.size_bytes,
			indexed_at          = excluded.indexed_at
	`, doc.DocKey, doc.SourcePath, doc.Title, doc.ContentText, doc.Department, doc.Project,
		doc.MinHierarchyLevel, doc.RequiredRole, doc.RoleContext, doc.SourceETag, doc.SizeBytes, doc.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

func (s *Store) GetDocument(ctx context.Context, docKey string) (*storage.Document, error) {
	query := `
		SELECT doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at
		FROM documents
		WHERE doc_key = ?
	`

	var doc storage.Document
	err := s.db.QueryRowContext(ctx, query, docKey).Scan(
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
	query := `
		SELECT source_path, department_tag, project_tag, min_hierarchy_level, required_role, role_context
		FROM documents
		WHERE doc_key = ?
	`

	var req access.Requirement
	err := s.db.QueryRowContext(ctx, query, docKey).Scan(
		&req.SourcePath, &req.Department, &req.Project,
		&req.MinHierarchyLevel, &req.RequiredRole, &req.RoleContext,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docKey, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get document requirement: %w", err)
	}

	return &req, nil
}

// DeleteDocument removes a document from the index. Deleting an absent
// document is not an error; corpus sync relies on the delete being
// idempotent.
func (s *Store) DeleteDocument(ctx context.Context, docKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_key = ?`, docKey)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]*storage.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	// SQLite's LIKE is only case-insensitive for ASCII, so both sides are
	// folded explicitly.
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_key, source_path, title, content_text, department_tag, project_tag,
			min_hierarchy_level, required_role, role_context, source_etag, size_bytes, indexed_at
		FROM documents
		WHERE LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content_text) LIKE ? ESCAPE '\'
		ORDER BY source_path
		LIMIT ?
	`, pattern, pattern, limit)
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

	return docs, nil
}

func (s *Store) ListDocumentETags(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc_key, source_etag FROM documents`)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, creator_email, title, description, suggested_team, selected_team, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE creator_email = ?`, email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator_email, title, description, suggested_team, selected_team, status, created_at
		FROM tickets
		WHERE creator_email = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
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
	result, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE creator_email = ?`, email)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_email, message_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
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

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE user_email = ?`, email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, message_id, rating, comment, created_at
		FROM feedback
		WHERE user_email = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
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
	result, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE user_email = ?`, email)
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
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite unhealthy: %w", err)
	}
	return nil
}

// DB returns the underlying database handle, for collaborators that manage
// their own tables (audit logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Profile field codecs, identical to the PostgreSQL backend except the JSON
// lands in TEXT columns.

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

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
