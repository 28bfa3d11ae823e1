package auth

import "context"

// Authenticator defines the interface for admin authentication.
// This abstraction allows swapping the shared passphrase for another
// method (per-user accounts, SSO, etc.) without changing the HTTP layer.
type Authenticator interface {
	// Authenticate verifies the credential presented at the login form.
	// Returns ErrInvalidCredentials if it does not match.
	Authenticate(ctx context.Context, credential string) error
}
