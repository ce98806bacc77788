package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Corpus configuration (document source and sync)
	Corpus CorpusConfig

	// Auth configuration
	Auth AuthConfig

	// Vocabulary configuration
	Vocabulary VocabularyConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CorpusConfig holds document corpus source and sync settings
type CorpusConfig struct {
	// Source selects where documents are read from: "s3" or "filesystem".
	// Empty disables corpus sync entirely.
	Source string

	// Root is the local directory walked when Source is "filesystem".
	Root string

	// StateFile persists the last-sync snapshot between runs. Empty means
	// every run diffs against the document index instead.
	StateFile string

	// ManifestName is the per-directory metadata override filename.
	ManifestName string

	// Extensions lists the indexable document suffixes.
	Extensions []string

	// Workers bounds the parallel indexing fan-out.
	Workers int

	// TaskTimeout is the per-document budget for a source read plus an
	// index write.
	TaskTimeout time.Duration

	// SyncSchedule is the cron expression the sync daemon runs on.
	SyncSchedule string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	// Mode selects the authenticator: "oidc", "static", or "disabled".
	// Disabled mode trusts the X-User-Email header and is for development
	// and trusted-proxy deployments only.
	Mode string

	// OIDC settings
	OIDCIssuerURL       string
	OIDCClientID        string
	OIDCSkipIssuerCheck bool

	// StaticTokens maps bearer tokens to the emails they authenticate.
	StaticTokens map[string]string

	// AdminEmail is granted administrator rank at startup when set.
	AdminEmail string
}

// VocabularyConfig holds tag vocabulary settings
type VocabularyConfig struct {
	// Path points at a YAML vocabulary definition. Empty uses the
	// built-in default vocabulary.
	Path string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Corpus:        loadCorpusConfig(),
		Auth:          loadAuthConfig(),
		Vocabulary:    loadVocabularyConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LANTERN_HOST", "0.0.0.0"),
		Port:            getEnv("LANTERN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LANTERN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LANTERN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LANTERN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LANTERN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("LANTERN_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Storage driver
	if storageType := getEnv("LANTERN_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// SQLite config
	if sqlitePath := getEnv("LANTERN_SQLITE_PATH", ""); sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}

	// PostgreSQL config
	if pgURL := getEnv("LANTERN_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("LANTERN_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("LANTERN_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("LANTERN_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("LANTERN_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 config (corpus source)
	if s3Endpoint := getEnv("LANTERN_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("LANTERN_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("LANTERN_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3Prefix := getEnv("LANTERN_S3_PREFIX", ""); s3Prefix != "" {
		cfg.S3Prefix = s3Prefix
	}
	if s3AccessKey := getEnv("LANTERN_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("LANTERN_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("LANTERN_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	// Redis config
	if redisURL := getEnv("LANTERN_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("LANTERN_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("LANTERN_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("LANTERN_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("LANTERN_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("LANTERN_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if ttl := getEnvDuration("LANTERN_CACHE_PROFILE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["profile"] = ttl
	}
	if ttl := getEnvDuration("LANTERN_CACHE_REQUIREMENT_TTL", 0); ttl > 0 {
		cfg.CacheTTL["requirement"] = ttl
	}
	if ttl := getEnvDuration("LANTERN_CACHE_SEARCH_TTL", 0); ttl > 0 {
		cfg.CacheTTL["search"] = ttl
	}

	return cfg
}

// loadCorpusConfig loads corpus source configuration from environment
func loadCorpusConfig() CorpusConfig {
	cfg := CorpusConfig{
		Source:       getEnv("LANTERN_CORPUS_SOURCE", ""),
		Root:         getEnv("LANTERN_CORPUS_ROOT", ""),
		StateFile:    getEnv("LANTERN_CORPUS_STATE_FILE", ""),
		ManifestName: getEnv("LANTERN_CORPUS_MANIFEST_NAME", "metadata.json"),
		Extensions:   splitList(getEnv("LANTERN_CORPUS_EXTENSIONS", ".txt,.pdf,.md")),
		Workers:      getEnvInt("LANTERN_CORPUS_WORKERS", 4),
		TaskTimeout:  getEnvDuration("LANTERN_CORPUS_TASK_TIMEOUT", 2*time.Minute),
		SyncSchedule: getEnv("LANTERN_SYNC_SCHEDULE", "@every 10m"),
	}

	return cfg
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig() AuthConfig {
	cfg := AuthConfig{
		Mode:                getEnv("LANTERN_AUTH_MODE", "disabled"),
		OIDCIssuerURL:       getEnv("LANTERN_OIDC_ISSUER", ""),
		OIDCClientID:        getEnv("LANTERN_OIDC_CLIENT_ID", ""),
		OIDCSkipIssuerCheck: getEnvBool("LANTERN_OIDC_SKIP_ISSUER_CHECK", false),
		StaticTokens:        parseStaticTokens(getEnv("LANTERN_STATIC_TOKENS", "")),
		AdminEmail:          getEnv("LANTERN_ADMIN_EMAIL", ""),
	}

	// A single admin credential can be configured without the full token
	// list. It participates in static mode like any other token.
	if token := getEnv("LANTERN_ADMIN_TOKEN", ""); token != "" && cfg.AdminEmail != "" {
		cfg.StaticTokens[token] = cfg.AdminEmail
	}

	return cfg
}

// loadVocabularyConfig loads vocabulary configuration from environment
func loadVocabularyConfig() VocabularyConfig {
	return VocabularyConfig{
		Path: getEnv("LANTERN_VOCABULARY_PATH", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("LANTERN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("LANTERN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LANTERN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LANTERN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LANTERN_OTEL_SERVICE_NAME", "lantern"),
		OTelServiceVersion: getEnv("LANTERN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("LANTERN_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on driver
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be sqlite or postgres)", c.Storage.Type)
	}

	// Validate corpus config when sync is enabled
	switch c.Corpus.Source {
	case "":
		// Corpus sync disabled
	case "filesystem":
		if c.Corpus.Root == "" {
			return fmt.Errorf("corpus root is required for filesystem corpus source")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 corpus source")
		}
	default:
		return fmt.Errorf("invalid corpus source: %s (must be s3 or filesystem)", c.Corpus.Source)
	}

	// Validate auth config based on mode
	switch c.Auth.Mode {
	case "disabled":
		// Header-trust mode, nothing to check
	case "static":
		if len(c.Auth.StaticTokens) == 0 {
			return fmt.Errorf("at least one static token is required for static auth")
		}
	case "oidc":
		if c.Auth.OIDCIssuerURL == "" {
			return fmt.Errorf("OIDC issuer is required for oidc auth")
		}
		if c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC client ID is required for oidc auth")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be oidc, static, or disabled)", c.Auth.Mode)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseStaticTokens parses comma-separated "token:email" pairs.
// Malformed pairs are skipped.
func parseStaticTokens(value string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		tokens[parts[0]] = parts[1]
	}
	return tokens
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
