package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/api"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/auth"
	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/feedback"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/profiles"
	"github.com/lanternhq/lantern/pkg/search"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/postgres"
	"github.com/lanternhq/lantern/pkg/storage/sqlite"
	"github.com/lanternhq/lantern/pkg/tickets"
	"github.com/lanternhq/lantern/pkg/vocab"
)

var (
	envFile  = flag.String("env-file", ".env", "Optional dotenv file loaded before configuration")
	auditDir = flag.String("audit-dir", "", "Audit log directory for sqlite installs (default: next to the database file)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	ctx := context.Background()
	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
				log.Printf("OpenTelemetry shutdown: %v", err)
			}
		}()
	}

	var v *vocab.Vocabulary
	if cfg.Vocabulary.Path != "" {
		v, err = vocab.Load(cfg.Vocabulary.Path)
		if err != nil {
			log.Fatalf("Failed to load vocabulary from %s: %v", cfg.Vocabulary.Path, err)
		}
		log.Printf("Vocabulary loaded from %s", cfg.Vocabulary.Path)
	} else {
		v = vocab.Default()
		log.Println("Using built-in vocabulary")
	}

	// Storage. The audit trail follows the backend: PostgreSQL installs
	// get the queryable database trail, sqlite installs get the JSON-lines
	// file sink.
	var (
		store       storage.Store
		db          *sql.DB
		redisClient *postgres.RedisClient
		auditLogger audit.Logger
		auditStore  audit.Store
	)
	switch cfg.Storage.Type {
	case "postgres":
		pgStore, err := postgres.New(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
		redisClient = pgStore.Redis()

		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			log.Fatalf("Failed to initialize audit trail: %v", err)
		}
		auditLogger = dbLogger
		auditStore = audit.NewDBStore(dbLogger)
		log.Println("Connected to PostgreSQL")
	default:
		liteStore, err := sqlite.New(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to open sqlite database: %v", err)
		}
		store = liteStore
		db = liteStore.DB()

		if cfg.Storage.CacheEnabled && cfg.Storage.RedisURL != "" {
			redisClient, err = postgres.NewRedisClient(cfg.Storage)
			if err != nil {
				log.Fatalf("Failed to connect to redis: %v", err)
			}
			defer redisClient.Close()
		}

		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = *auditDir
		if fileCfg.BasePath == "" {
			fileCfg.BasePath = filepath.Join(filepath.Dir(liteStore.Path()), "audit")
		}
		fileLogger, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			log.Fatalf("Failed to open audit log in %s: %v", fileCfg.BasePath, err)
		}
		defer fileLogger.Close()
		auditLogger = fileLogger
		log.Printf("Using sqlite database at %s", liteStore.Path())
	}
	defer store.Close()

	profileSvc := profiles.NewService(store, v, auditLogger)
	profileSvc.RegisterCascadeHook("tickets", store.DeleteTicketsByUser)
	profileSvc.RegisterCascadeHook("feedback", store.DeleteFeedbackByUser)

	if cfg.Auth.AdminEmail != "" {
		if err := ensureAdmin(ctx, store, v, cfg.Auth.AdminEmail); err != nil {
			log.Fatalf("Failed to provision administrator %s: %v", cfg.Auth.AdminEmail, err)
		}
		log.Printf("Administrator rank ensured for %s", cfg.Auth.AdminEmail)
	}

	var (
		authenticator auth.Authenticator
		trustHeader   bool
	)
	switch cfg.Auth.Mode {
	case "oidc":
		authenticator, err = auth.NewOIDCAuthenticator(ctx, auth.OIDCConfig{
			IssuerURL:       cfg.Auth.OIDCIssuerURL,
			ClientID:        cfg.Auth.OIDCClientID,
			SkipIssuerCheck: cfg.Auth.OIDCSkipIssuerCheck,
		})
		if err != nil {
			log.Fatalf("Failed to configure OIDC: %v", err)
		}
		log.Printf("Authenticating against %s", cfg.Auth.OIDCIssuerURL)
	case "static":
		authenticator = auth.NewStaticAuthenticator(cfg.Auth.StaticTokens)
		log.Printf("Using static token authentication (%d tokens)", len(cfg.Auth.StaticTokens))
	default:
		trustHeader = true
		log.Println("Authentication disabled: trusting the X-User-Email header")
	}

	searchSvc, err := search.NewService(store, v, search.Config{Logger: logger, Metrics: metrics})
	if err != nil {
		log.Fatalf("Failed to build search service: %v", err)
	}
	ticketSvc, err := tickets.NewService(store, tickets.Config{Audit: auditLogger, Logger: logger, Metrics: metrics})
	if err != nil {
		log.Fatalf("Failed to build ticket service: %v", err)
	}
	feedbackSvc, err := feedback.NewService(store, feedback.Config{Audit: auditLogger, Logger: logger, Metrics: metrics})
	if err != nil {
		log.Fatalf("Failed to build feedback service: %v", err)
	}

	var redisConn *redis.Client
	if redisClient != nil {
		redisConn = redisClient.GetClient()
	}
	health := observability.NewHealthChecker(db, redisConn)

	server, err := api.NewServer(api.Config{
		Profiles:        profileSvc,
		Vocabulary:      v,
		Documents:       store,
		Search:          searchSvc,
		Tickets:         ticketSvc,
		Feedback:        feedbackSvc,
		AuditStore:      auditStore,
		Audit:           auditLogger,
		Authenticator:   authenticator,
		TrustUserHeader: trustHeader,
		Redis:           redisConn,
		Health:          health,
		Logger:          logger,
		Metrics:         metrics,
		Registry:        registry,
	})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	// Probes and metrics also answer on a private port so the public
	// listener can sit behind an ingress that never exposes them.
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", health.Liveness)
	healthMux.HandleFunc("/ready", health.Readiness)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Health listener failed: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		log.Printf("Lantern listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Health listener shutdown: %v", err)
	}
	log.Println("Lantern stopped")
}

// ensureAdmin raises the configured bootstrap account to administrator
// rank, creating the profile if it does not exist yet. Profiles already
// at or above the rank are left alone.
func ensureAdmin(ctx context.Context, store storage.ProfileStore, v *vocab.Vocabulary, email string) error {
	profile, err := store.GetProfile(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return store.UpsertProfile(ctx, &access.Profile{
			Email:           email,
			HierarchyLevel:  v.AdminRank(),
			Departments:     []string{},
			Projects:        []string{},
			ContextualRoles: map[string][]string{},
		})
	}
	if err != nil {
		return err
	}
	if profile.HierarchyLevel >= v.AdminRank() {
		return nil
	}
	profile.HierarchyLevel = v.AdminRank()
	return store.UpsertProfile(ctx, profile)
}
