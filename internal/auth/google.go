package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// googleIssuer is Google's OIDC issuer; its discovery document points at
// the JWKS used to check credential signatures.
const googleIssuer = "https://accounts.google.com"

// GoogleClaims is the subset of the verified ID-token payload the auth
// service acts on.
type GoogleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`

	// Audience is the client ID the credential was issued for, taken from
	// the token's aud claim. The service rejects credentials minted for a
	// different application.
	Audience string `json:"-"`
}

// GoogleVerifier validates a Google sign-in credential (an ID token posted
// by the browser) and returns its claims. The production implementation is
// GoogleProvider; tests substitute a fake.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (*GoogleClaims, error)
}

// GoogleProvider verifies credentials against Google's published keys.
//
// Verification is delegated entirely to go-oidc: signature, expiry, issuer
// and audience are all checked there. This service never performs an OAuth
// code exchange — the browser obtains the credential itself (Google
// Identity Services) and posts it to /api/auth/google.
type GoogleProvider struct {
	verifier *oidc.IDTokenVerifier
	clientID string
}

// NewGoogleProvider builds a verifier for credentials issued to clientID.
// It fetches Google's OIDC discovery document once at startup.
func NewGoogleProvider(ctx context.Context, clientID string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("auth: creating Google OIDC provider: %w", err)
	}

	return &GoogleProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		clientID: clientID,
	}, nil
}

// Verify checks the credential's signature, expiry, issuer and audience,
// and extracts the profile claims. It does NOT decide whether the email is
// usable — the missing-email and unverified-email rules live in the auth
// service, next to the account-creation logic they guard.
func (g *GoogleProvider) Verify(ctx context.Context, credential string) (*GoogleClaims, error) {
	idToken, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying Google credential: %w", err)
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: decoding Google credential claims: %w", err)
	}

	if len(idToken.Audience) > 0 {
		claims.Audience = idToken.Audience[0]
	}

	return &claims, nil
}
