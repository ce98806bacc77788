package auth

import (
	"context"
	"errors"
	"strings"
)

// Identity is an authenticated caller as resolved from a credential.
// Email is the stable key linking the caller to an access profile.
type Identity struct {
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
}

// ErrInvalidToken is returned when a credential fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator verifies a bearer credential and resolves the identity
// behind it. Issuing credentials is not part of this interface; tokens
// come from the configured identity provider.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
