package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/auth"
	"github.com/lanternhq/lantern/pkg/contextkeys"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/profiles"
)

// AuthConfig configures the authentication middleware.
type AuthConfig struct {
	// Authenticator verifies bearer tokens. Required unless
	// TrustUserHeader is set.
	Authenticator auth.Authenticator

	// Profiles resolves identities to access profiles and provisions
	// the first-login default. Required.
	Profiles *profiles.Service

	// Audit receives failed-authentication events. Defaults to the
	// no-op logger.
	Audit audit.Logger

	// Logger for rejected requests. Defaults to an info-level logger
	// on stdout.
	Logger *observability.Logger

	// TrustUserHeader resolves the caller from the X-User-Email
	// header without any credential. Development only.
	TrustUserHeader bool
}

// AuthMiddleware resolves the caller of every request to an access
// profile and stores identity, email and profile in the request
// context. Handlers downstream read the profile via
// contextkeys.ProfileKey.
type AuthMiddleware struct {
	authenticator auth.Authenticator
	profiles      *profiles.Service
	audit         audit.Logger
	logger        *observability.Logger
	trustHeader   bool
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNoOpLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AuthMiddleware{
		authenticator: cfg.Authenticator,
		profiles:      cfg.Profiles,
		audit:         cfg.Audit,
		logger:        cfg.Logger,
		trustHeader:   cfg.TrustUserHeader,
	}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.resolveIdentity(r)
		if err != nil {
			_ = m.audit.LogAuthentication(r.Context(), audit.EventTypeAuthLoginFailed,
				"", audit.EventStatusFailure, err.Error())
			m.unauthorized(w, err.Error())
			return
		}

		profile, err := m.profiles.EnsureProfile(r.Context(), ident.Email)
		if err != nil {
			m.logger.WithError(err).WithField("email", ident.Email).
				Error("failed to resolve caller profile")
			m.serverError(w, "failed to resolve caller profile")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), ident)
		ctx = contextkeys.WithUserEmail(ctx, profile.Email)
		ctx = contextkeys.WithProfile(ctx, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveIdentity authenticates the request. In header-trust mode the
// X-User-Email header is the identity; otherwise the bearer token is
// verified by the configured authenticator.
func (m *AuthMiddleware) resolveIdentity(r *http.Request) (*auth.Identity, error) {
	if m.trustHeader {
		email := strings.TrimSpace(r.Header.Get("X-User-Email"))
		if email == "" {
			return nil, errors.New("missing X-User-Email header")
		}
		return &auth.Identity{Email: strings.ToLower(email)}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	ident, err := m.authenticator.Authenticate(r.Context(), parts[1])
	if err != nil {
		m.logger.WithError(err).Debug("bearer token rejected")
		return nil, errors.New("invalid or expired token")
	}
	return ident, nil
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func (m *AuthMiddleware) serverError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
