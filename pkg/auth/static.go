package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// StaticAuthenticator resolves bearer tokens against a fixed
// token-to-email map. Development and testing only: tokens live in
// configuration, with no expiry and no revocation short of a restart.
type StaticAuthenticator struct {
	byHash map[string]string
}

// NewStaticAuthenticator builds the authenticator from a token-to-email
// map. Tokens are hashed at construction; the plaintext map is not
// retained.
func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	byHash := make(map[string]string, len(tokens))
	for token, email := range tokens {
		if token == "" {
			continue
		}
		byHash[hashToken(token)] = normalizeEmail(email)
	}
	return &StaticAuthenticator{byHash: byHash}
}

// Authenticate looks the token up by its hash.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	email, ok := a.byHash[hashToken(token)]
	if !ok || email == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Email: email}, nil
}

// hashToken computes the SHA256 hex digest used as the lookup key.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
