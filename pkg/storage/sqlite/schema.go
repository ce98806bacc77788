package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are applied in order on startup. Statements are idempotent
// so restarting against an existing database is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_access_profiles (
		user_email       TEXT PRIMARY KEY,
		hierarchy_level  INTEGER NOT NULL DEFAULT 0,
		departments      TEXT NOT NULL DEFAULT '[]',
		projects         TEXT NOT NULL DEFAULT '[]',
		contextual_roles TEXT NOT NULL DEFAULT '{}',
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		doc_key             TEXT PRIMARY KEY,
		source_path         TEXT NOT NULL,
		title               TEXT NOT NULL DEFAULT '',
		content_text        TEXT NOT NULL DEFAULT '',
		department_tag      TEXT NOT NULL DEFAULT '',
		project_tag         TEXT NOT NULL DEFAULT '',
		min_hierarchy_level INTEGER NOT NULL DEFAULT 0,
		required_role       TEXT NOT NULL DEFAULT '',
		role_context        TEXT NOT NULL DEFAULT '',
		source_etag         TEXT NOT NULL DEFAULT '',
		size_bytes          INTEGER NOT NULL DEFAULT 0,
		indexed_at          TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id             TEXT PRIMARY KEY,
		creator_email  TEXT NOT NULL REFERENCES user_access_profiles(user_email) ON DELETE CASCADE,
		title          TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		suggested_team TEXT NOT NULL DEFAULT '',
		selected_team  TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'open',
		created_at     TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id         TEXT PRIMARY KEY,
		user_email TEXT NOT NULL REFERENCES user_access_profiles(user_email) ON DELETE CASCADE,
		message_id TEXT NOT NULL DEFAULT '',
		rating     TEXT NOT NULL DEFAULT '',
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_department ON documents(department_tag)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_tag)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_creator ON tickets(creator_email)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_email)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
