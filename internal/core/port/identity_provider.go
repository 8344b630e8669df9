package port

import "context"

// ProviderProfile is the identity asserted by the external auth
// provider for a verified session token.
type ProviderProfile struct {
	ProviderUserID string
	Email          string
	FirstName      string
	LastName       string
	AvatarURL      string
}

// IdentityProvider verifies session tokens minted by the hosted auth
// provider. Any verification failure is reported uniformly.
type IdentityProvider interface {
	VerifySessionToken(ctx context.Context, token string) (*ProviderProfile, error)
}
