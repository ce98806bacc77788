// Package auth resolves API callers from bearer credentials.
//
// The package deliberately stops at verification. It answers "who is
// presenting this token" with an Identity and leaves issuing tokens,
// login redirects and sessions to the identity provider. Two
// implementations are provided:
//
//   - OIDCAuthenticator verifies OIDC ID tokens against a discovered
//     issuer (production).
//   - StaticAuthenticator resolves tokens from a fixed map in
//     configuration (development and tests).
//
// A third mode for local development, trusting the X-User-Email header
// without any credential, lives in the auth middleware rather than
// here: it trusts a transport header instead of verifying a
// credential, so it has no Authenticator to implement.
//
//	authn, err := auth.NewOIDCAuthenticator(ctx, auth.OIDCConfig{
//		IssuerURL: "https://login.example.com",
//		ClientID:  "lantern-api",
//	})
//	if err != nil {
//		return err
//	}
//	ident, err := authn.Authenticate(ctx, rawToken)
//
// The middleware maps the Identity's email to an access profile,
// provisioning a first-login default when none exists.
package auth
