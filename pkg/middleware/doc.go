// Package middleware provides the HTTP request-processing chain: request
// IDs, panic recovery, logging, authentication, and rate limiting.
//
// # Overview
//
// Every middleware wraps an http.Handler and threads data to downstream
// handlers through the request context (see pkg/contextkeys). The server
// applies them outermost-first in this order:
//
//	RequestID -> Recovery -> Logging -> Auth -> RateLimit
//
// RequestID runs first so every later log line carries the ID, Recovery
// sits above Logging so a panic still produces a request log, and
// RateLimit runs after Auth because the user tier is keyed by the
// authenticated email.
//
// # Middleware Components
//
// RequestID: assign or propagate a request correlation ID
//
//	router.Use(middleware.RequestID)
//	// Honors an inbound X-Request-ID, otherwise mints a UUID.
//
// Recovery: convert panics into 500 responses
//
//	router.Use(middleware.Recovery(logger))
//
// LoggingMiddleware: structured request logs, metrics, and audit trail
//
//	logging := middleware.NewLoggingMiddleware(logger, auditLogger, metrics)
//	router.Use(logging.Handler)
//
// AuthMiddleware: resolve the caller to an access profile
//
//	authn := middleware.NewAuthMiddleware(middleware.AuthConfig{
//	    Authenticator: authenticator,
//	    Profiles:      profilesSvc,
//	})
//	router.Use(authn.Handler)
//	// Verifies the Bearer token (or X-User-Email when TrustUserHeader
//	// is set), ensures a profile exists, and stores it in the context.
//
// RateLimitMiddleware: two-tier rate limiting
//
//	limiter := middleware.NewRateLimitMiddleware(redisClient, logger)
//	router.Use(limiter.Handler)
//	// Authenticated requests share a per-user window (1000/min, 50
//	// burst); anonymous requests share a per-IP window (100/min, 10
//	// burst). Counters live in Redis when a client is configured and
//	// fall back to an in-process LRU of token buckets when Redis is
//	// unreachable or absent.
//
// # Related Packages
//
//   - pkg/auth: credential verification
//   - pkg/profiles: profile provisioning on first login
//   - pkg/contextkeys: typed context accessors
package middleware
