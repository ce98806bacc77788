// Package cli provides the Lantern command-line interface for access
// administration.
//
// # Overview
//
// This package implements the `lanternctl` tool for administrators to manage
// user permissions, evaluate document access, and run corpus syncs from the
// terminal.
//
// # Commands
//
// whoami: Show the profile your token resolves to
//
//	lanternctl whoami
//
// check: Evaluate access to a document path
//
//	lanternctl check /FINANCE/EXECUTIVE/report.pdf
//
// Admins can evaluate for another user:
//
//	lanternctl check -user staff.hr@example.com /HR/policies.pdf
//
// users: Manage user access profiles
//
//	lanternctl users list
//	lanternctl users view alice@example.com
//	lanternctl users set alice@example.com \
//		-level 2 \
//		-departments IT,FINANCE \
//		-roles PROJECT_ALPHA:LEAD
//	lanternctl users remove alice@example.com
//	lanternctl users bulk-import -file users.json
//
// bulk-import also accepts a plain text file with one email per line;
// those users are created with default permissions and existing users
// are skipped.
//
// seed-samples: Create the built-in sample users
//
//	lanternctl seed-samples
//
// derive: Derive the requirement a path carries, without a server
//
//	lanternctl derive /IT/projects/project_alpha/lead_docs/spec.md
//
// sync: Run one corpus sync against the configured storage
//
//	lanternctl sync -source filesystem -root ./docs
//
// # Configuration
//
// Service URL:
//
//	export LANTERN_REGISTRY_URL="https://lantern.example.com"
//	# Or use the -registry flag
//
// Authentication, in order of precedence:
//
//	-token flag
//	export LANTERN_TOKEN="..."
//	export LANTERN_OAUTH_CLIENT_ID, LANTERN_OAUTH_CLIENT_SECRET,
//	       LANTERN_OAUTH_TOKEN_URL   # OAuth2 client credentials
//
// The sync command reads the same LANTERN_* environment as the service
// and the sync daemon.
//
// # Related Packages
//
//   - pkg/api: request and response types for service calls
//   - pkg/access: local requirement derivation for the derive command
//   - pkg/corpus: the sync pipeline behind the sync command
package cli
