package api

import (
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/auth"
	"github.com/lanternhq/lantern/pkg/feedback"
	"github.com/lanternhq/lantern/pkg/httputil"
	"github.com/lanternhq/lantern/pkg/middleware"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/profiles"
	"github.com/lanternhq/lantern/pkg/search"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/swagger"
	"github.com/lanternhq/lantern/pkg/tickets"
	"github.com/lanternhq/lantern/pkg/vocab"
)

// maxRequestBody caps request bodies under /api/v1. The largest
// legitimate payload is a full permissions replacement, well under 1 MB.
const maxRequestBody = 1 << 20

// Config carries the server's dependencies. Profiles, Vocabulary and an
// authentication source are required; everything else is optional and
// its routes simply do not register when absent.
type Config struct {
	Profiles   *profiles.Service
	Vocabulary *vocab.Vocabulary

	// Documents backs access checks against the synced index. When nil,
	// checks fall back to deriving the requirement from the path.
	Documents storage.DocumentStore

	Search   *search.Service
	Tickets  *tickets.Service
	Feedback *feedback.Service

	// AuditStore enables the admin audit-trail routes.
	AuditStore audit.Store

	// Audit receives authentication, authorization and request events.
	// Nil disables auditing.
	Audit audit.Logger

	// Authenticator verifies bearer tokens. Required unless
	// TrustUserHeader is set.
	Authenticator   auth.Authenticator
	TrustUserHeader bool

	// Redis backs distributed rate limiting. Nil means per-process
	// limiting only.
	Redis *redis.Client

	Health   *observability.HealthChecker
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// Server is the HTTP front of the access-control service. It owns the
// router, the middleware chain and the handler wiring; transport
// lifecycle (listen, TLS, shutdown) belongs to the caller.
type Server struct {
	router  *mux.Router
	apiV1   *mux.Router
	handler http.Handler

	profiles  *profiles.Service
	evaluator *access.Evaluator
	deriver   *access.Deriver
	documents storage.DocumentStore
	audit     audit.Logger
	health    *observability.HealthChecker
	logger    *observability.Logger
	metrics   *observability.Metrics
	registry  *prometheus.Registry
}

// NewServer wires the router, middleware chain and all handlers.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("profiles service is required")
	}
	if cfg.Vocabulary == nil {
		return nil, fmt.Errorf("vocabulary is required")
	}
	if cfg.Authenticator == nil && !cfg.TrustUserHeader {
		return nil, fmt.Errorf("an authenticator is required unless TrustUserHeader is set")
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNoOpLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Health == nil {
		cfg.Health = observability.NewHealthChecker(nil, nil)
	}

	s := &Server{
		router:    mux.NewRouter(),
		profiles:  cfg.Profiles,
		evaluator: access.NewEvaluator(cfg.Vocabulary),
		deriver:   access.NewDeriver(cfg.Vocabulary),
		documents: cfg.Documents,
		audit:     cfg.Audit,
		health:    cfg.Health,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		registry:  cfg.Registry,
	}
	s.setupRoutes(cfg)

	// otelhttp sits outside the router so the server span wraps the
	// whole chain, including request logging.
	s.handler = otelhttp.NewHandler(s.router, "lantern.api")
	return s, nil
}

// setupRoutes configures the middleware chain and every route group.
func (s *Server) setupRoutes(cfg Config) {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	logging := middleware.NewLoggingMiddleware(cfg.Logger, cfg.Audit, cfg.Metrics)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recovery(cfg.Logger))
	s.router.Use(logging.Handler)

	// Operational endpoints stay outside authentication.
	s.router.HandleFunc("/health", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/ready", s.health.Readiness).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}
	swagger.NewHandlers().RegisterRoutes(s.router)

	authn := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Authenticator:   cfg.Authenticator,
		Profiles:        cfg.Profiles,
		Audit:           cfg.Audit,
		Logger:          cfg.Logger,
		TrustUserHeader: cfg.TrustUserHeader,
	})
	limiter := middleware.NewRateLimitMiddleware(cfg.Redis, cfg.Logger)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(authn.Handler)
	api.Use(limiter.Handler)
	api.Use(httputil.ContentTypeMiddleware)
	api.Use(httputil.MaxBytesMiddleware(maxRequestBody))
	s.apiV1 = api

	api.HandleFunc("/me", s.me).Methods("GET")
	api.HandleFunc("/access/check", s.checkAccess).Methods("POST")

	// Admin profile routes authorize inside the profiles service, so a
	// denial is audited with the attempted action.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/users", s.listUsers).Methods("GET")
	admin.HandleFunc("/users/{email}/permissions", s.viewUser).Methods("GET")
	admin.HandleFunc("/users/{email}/permissions", s.upsertUser).Methods("PUT")
	admin.HandleFunc("/users/{email}", s.removeUser).Methods("DELETE")

	// The audit handlers do not authorize callers themselves, so their
	// subrouter carries the admin gate.
	if cfg.AuditStore != nil {
		adminAudit := api.PathPrefix("/admin").Subrouter()
		adminAudit.Use(s.requireAdmin)
		audit.NewHandlers(cfg.AuditStore).RegisterRoutes(adminAudit)
	}

	if cfg.Search != nil {
		search.NewHandlers(cfg.Search).RegisterRoutes(api)
	}
	if cfg.Tickets != nil {
		tickets.NewHandlers(cfg.Tickets).RegisterRoutes(api)
	}
	if cfg.Feedback != nil {
		feedback.NewHandlers(cfg.Feedback).RegisterRoutes(api)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is implemented by handler groups that attach their own
// routes to a router.
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes attaches an additional handler group under /api/v1,
// inside the authentication and rate-limit chain. Call before serving.
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.apiV1)
}

// requireAdmin gates a route group on the administrator rank. Denials
// are audited; the service-level checks remain authoritative for routes
// that carry their own authorization.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerProfile(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !s.profiles.IsAdmin(*caller) {
			_ = s.audit.LogAuthorization(r.Context(), audit.EventTypeAccessDenied, caller.Email,
				audit.ResourceTypeAuditLog, r.URL.Path, audit.EventStatusDenied,
				"administrator rank required")
			httputil.WriteForbidden(w, "administrator rank required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
