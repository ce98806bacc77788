// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. The server binary loads a .env file first,
// so any of these can also live there.
//
// # Configuration Structure
//
// Server settings:
//
//	LANTERN_HOST="0.0.0.0"
//	LANTERN_PORT="8080"
//	LANTERN_HEALTH_PORT="9090"
//	LANTERN_READ_TIMEOUT="15s"
//	LANTERN_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	LANTERN_STORAGE_TYPE="sqlite"  # sqlite, postgres
//	LANTERN_SQLITE_PATH="/var/lib/lantern/lantern.db"
//	LANTERN_POSTGRES_URL="postgres://localhost/lantern"
//	LANTERN_POSTGRES_REPLICA_URLS="postgres://replica1,postgres://replica2"
//	LANTERN_REDIS_URL="redis://localhost:6379"
//	LANTERN_CACHE_ENABLED="true"
//
// Corpus settings:
//
//	LANTERN_CORPUS_SOURCE="s3"  # s3, filesystem; empty disables sync
//	LANTERN_S3_BUCKET="corp-docs"
//	LANTERN_S3_PREFIX="published/"
//	LANTERN_S3_REGION="us-east-1"
//	LANTERN_CORPUS_ROOT="/srv/docs"  # filesystem source
//	LANTERN_SYNC_SCHEDULE="@every 10m"
//
// Auth settings:
//
//	LANTERN_AUTH_MODE="disabled"  # oidc, static, disabled
//	LANTERN_OIDC_ISSUER="https://login.example.com"
//	LANTERN_OIDC_CLIENT_ID="lantern-api"
//	LANTERN_STATIC_TOKENS="token:user@example.com,..."
//	LANTERN_ADMIN_TOKEN="..."  # paired with LANTERN_ADMIN_EMAIL
//	LANTERN_ADMIN_EMAIL="root@example.com"
//
// Vocabulary settings:
//
//	LANTERN_VOCABULARY_PATH="/etc/lantern/vocabulary.yaml"  # empty uses built-in defaults
//
// Observability settings:
//
//	LANTERN_LOG_LEVEL="info"  # debug, info, warn, error
//	LANTERN_METRICS_ENABLED="true"
//	LANTERN_OTEL_ENABLED="false"
//	LANTERN_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//	fmt.Printf("Auth mode: %s\n", cfg.Auth.Mode)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/corpus: Uses corpus configuration
//   - pkg/auth: Uses auth configuration
//   - pkg/observability: Uses observability configuration
package config
