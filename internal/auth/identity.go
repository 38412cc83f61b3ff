// AngelaMos | 2026
// identity.go

package auth

import (
	"context"

	"github.com/carterperez-dev/templates/auth-backend/internal/session"
)

const (
	SourceToken   = "token"
	SourceSession = "session"
)

// Credentials are whatever the caller presented on a request.
type Credentials struct {
	AccessToken string
	Session     *session.Handle
}

type Identity struct {
	UserID string
	Role   string
	Source string
}

type IdentityResolver interface {
	Resolve(ctx context.Context, creds Credentials) (*Identity, bool)
}

type TokenResolver struct {
	tokens *TokenManager
}

func NewTokenResolver(tokens *TokenManager) *TokenResolver {
	return &TokenResolver{tokens: tokens}
}

func (r *TokenResolver) Resolve(
	ctx context.Context,
	creds Credentials,
) (*Identity, bool) {
	if creds.AccessToken == "" {
		return nil, false
	}

	claims, ok := r.tokens.ValidateAccessToken(ctx, creds.AccessToken)
	if !ok {
		return nil, false
	}

	return &Identity{
		UserID: claims.UserID,
		Role:   claims.Role,
		Source: SourceToken,
	}, true
}

type SessionResolver struct{}

func (SessionResolver) Resolve(
	_ context.Context,
	creds Credentials,
) (*Identity, bool) {
	if creds.Session == nil || !creds.Session.Authenticated() {
		return nil, false
	}

	var role string
	if snap := creds.Session.User(); snap != nil {
		role = snap.Role
	}

	return &Identity{
		UserID: creds.Session.UserID(),
		Role:   role,
		Source: SourceSession,
	}, true
}

// ChainResolver returns the first identity any of its resolvers produces.
type ChainResolver []IdentityResolver

func (c ChainResolver) Resolve(
	ctx context.Context,
	creds Credentials,
) (*Identity, bool) {
	for _, r := range c {
		if id, ok := r.Resolve(ctx, creds); ok {
			return id, true
		}
	}
	return nil, false
}

// NewDefaultResolver checks the access token first and falls back to the
// session.
func NewDefaultResolver(tokens *TokenManager) ChainResolver {
	return ChainResolver{
		NewTokenResolver(tokens),
		SessionResolver{},
	}
}
