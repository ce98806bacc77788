package storage

import (
	"time"

	"github.com/lanternhq/lantern/pkg/access"
)

// Ticket status values.
const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Document is an indexed corpus document together with the permission
// metadata derived from its source path at sync time.
type Document struct {
	DocKey            string    `json:"doc_key"`
	SourcePath        string    `json:"source_path"`
	Title             string    `json:"title"`
	ContentText       string    `json:"content_text,omitempty"`
	Department        string    `json:"department_tag,omitempty"`
	Project           string    `json:"project_tag,omitempty"`
	MinHierarchyLevel int       `json:"min_hierarchy_level"`
	RequiredRole      string    `json:"required_role,omitempty"`
	RoleContext       string    `json:"role_context,omitempty"`
	SourceETag        string    `json:"source_etag,omitempty"`
	SizeBytes         int64     `json:"size_bytes"`
	IndexedAt         time.Time `json:"indexed_at"`
}

// Requirement reconstructs the access requirement that was derived from the
// document's source path when it was indexed.
func (d *Document) Requirement() access.Requirement {
	return access.Requirement{
		Department:        d.Department,
		Project:           d.Project,
		MinHierarchyLevel: d.MinHierarchyLevel,
		RequiredRole:      d.RequiredRole,
		RoleContext:       d.RoleContext,
		SourcePath:        d.SourcePath,
	}
}

// Ticket is a support request raised by a user.
type Ticket struct {
	ID            string    `json:"id"`
	CreatorEmail  string    `json:"creator_email"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	SuggestedTeam string    `json:"suggested_team,omitempty"`
	SelectedTeam  string    `json:"selected_team,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Feedback records a user's rating of an answer or search result.
type Feedback struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	MessageID string    `json:"message_id"`
	Rating    string    `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
