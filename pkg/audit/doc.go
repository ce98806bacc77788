// Package audit records security-relevant events for compliance and forensics.
//
// # Overview
//
// This package tracks authentication, access evaluations, permission
// administration, corpus sync activity, and ticket/feedback submissions,
// with before/after values for permission changes and request context for
// every event.
//
// # Event Types
//
// Authentication: login, login_failed
// Access: check, denied, document_read, search
// Admin: permission_view, permission_update, user_remove, user_list
// Sync: run, document_index, document_delete
// Support: ticket.create, feedback.record
//
// # Usage Example
//
// Log a permission change with before/after:
//
//	logger.LogAdminAction(ctx, audit.EventTypeAdminPermissionUpdate,
//		admin.Email, target.Email,
//		&audit.ChangeDetails{Before: oldProfile, After: newProfile},
//		"permissions replaced")
//
// Log an access denial:
//
//	logger.LogAuthorization(ctx, audit.EventTypeAccessDenied,
//		user.Email, audit.ResourceTypeDocument, doc.Key,
//		audit.EventStatusDenied, "no grant clause satisfied")
//
// Search audit logs:
//
//	results, err := store.Search(ctx, audit.SearchFilter{
//		StartTime:  &start,
//		EndTime:    &end,
//		ActorEmail: "alice@example.com",
//		EventTypes: []audit.EventType{audit.EventTypeAccessDenied},
//	})
//
// # Sinks
//
// DBLogger writes to PostgreSQL and backs the search/export API. FileLogger
// writes JSON lines with size-based rotation for single-node installs.
// MultiLogger fans out to both, asynchronously by default so audit writes
// stay off the request path.
//
// # Retention Policy
//
// Default: 90 days active retention
// Export: JSON, CSV, NDJSON formats for external analysis
//
// # Related Packages
//
//   - pkg/auth: Authentication events
//   - pkg/access: Access evaluation events
//   - pkg/middleware: HTTP request logging
package audit
