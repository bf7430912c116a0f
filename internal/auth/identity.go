// internal/auth/identity.go
package auth

import "context"

// Identity is the resolved result of a login-code exchange.
type Identity struct {
	OpenID    string
	Nickname  string
	AvatarURL string
}

// IdentityProvider exchanges an opaque login credential for a stable
// external identity. The production provider talks to the platform's
// identity service; it is deliberately outside this repository.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (Identity, error)
}

// StaticProvider treats the login code itself as the openId. Useful for
// development and tests where no external identity service is reachable.
type StaticProvider struct{}

func (StaticProvider) Exchange(_ context.Context, code string) (Identity, error) {
	return Identity{OpenID: code}, nil
}
