package proxy

import "context"

// TokenProvider supplies the bearer token attached to proxied requests. It is
// the narrow interface this layer consumes from the authentication
// collaborator; token issuance itself is out of scope.
type TokenProvider interface {
	// IDToken returns the current token, or "" when none is available (the
	// request is then sent unauthenticated). forceRefresh asks the provider
	// to mint a fresh token instead of serving a cached one.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token; the zero value
// sends unauthenticated requests.
type StaticToken string

// IDToken implements TokenProvider.
func (t StaticToken) IDToken(context.Context, bool) (string, error) {
	return string(t), nil
}
