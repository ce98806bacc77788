package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are executed in order by EnsureSchema. Tickets and
// feedback reference the profile row with ON DELETE CASCADE so removing a
// user cannot leave dangling rows behind.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_access_profiles (
		user_email       TEXT PRIMARY KEY,
		hierarchy_level  INTEGER NOT NULL DEFAULT 0,
		departments      JSONB NOT NULL DEFAULT '[]',
		projects         JSONB NOT NULL DEFAULT '[]',
		contextual_roles JSONB NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
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
		size_bytes          BIGINT NOT NULL DEFAULT 0,
		indexed_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id             UUID PRIMARY KEY,
		creator_email  TEXT NOT NULL REFERENCES user_access_profiles(user_email) ON DELETE CASCADE,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		suggested_team TEXT NOT NULL DEFAULT '',
		selected_team  TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'open',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id         UUID PRIMARY KEY,
		user_email TEXT NOT NULL REFERENCES user_access_profiles(user_email) ON DELETE CASCADE,
		message_id TEXT NOT NULL,
		rating     TEXT NOT NULL,
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_department ON documents (department_tag)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents (project_tag)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_creator ON tickets (creator_email)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback (user_email)`,
}

// EnsureSchema creates the Lantern tables and indexes if they do not exist.
// It runs against the primary and is safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
