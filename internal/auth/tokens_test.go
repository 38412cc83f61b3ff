// AngelaMos | 2026
// tokens_test.go

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/auth-backend/internal/auth"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

func TestAccessTokenRoundTripAndExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, err := h.tokens.IssueAccessToken("user-1", "alice@x.io", "user")
	require.NoError(t, err)

	claims, ok := h.tokens.ValidateAccessToken(ctx, token)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@x.io", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)

	h.clock.Advance(14 * time.Minute)
	_, ok = h.tokens.ValidateAccessToken(ctx, token)
	assert.True(t, ok)

	h.clock.Advance(2 * time.Minute)
	_, ok = h.tokens.ValidateAccessToken(ctx, token)
	assert.False(t, ok)
}

func TestTokensMintedInSameSecondDiffer(t *testing.T) {
	h := newHarness(t)

	a, err := h.tokens.IssueAccessToken("user-1", "alice@x.io", "user")
	require.NoError(t, err)
	b, err := h.tokens.IssueAccessToken("user-1", "alice@x.io", "user")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")

	_, ok := h.tokens.ValidateAccessToken(ctx, res.Tokens.RefreshToken)
	assert.False(t, ok)

	_, ok = h.tokens.ValidateRefreshToken(ctx, res.Tokens.AccessToken)
	assert.False(t, ok)
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	h := newHarness(t)

	cfg := jwtConfig()
	cfg.Secret = "another-secret-0123456789abcdef0123"
	other, err := auth.NewJWTManager(cfg)
	require.NoError(t, err)

	token, _, err := other.Sign("user-1", "alice@x.io", "user", auth.TokenTypeAccess)
	require.NoError(t, err)

	_, err = h.jwt.Verify(token, auth.TokenTypeAccess)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	_, ok := h.tokens.ValidateAccessToken(context.Background(), token)
	assert.False(t, ok)
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	cfg := jwtConfig()
	cfg.Secret = ""

	_, err := auth.NewJWTManager(cfg)
	require.Error(t, err)
}

func TestRefreshTokenRequiresLiveRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")

	v, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, res.User.ID, v.Claims.UserID)
	assert.NotEmpty(t, v.RecordID)

	require.NoError(t, auth.NewRepository(h.db).DeleteAllForUser(ctx, res.User.ID))

	_, ok = h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	assert.False(t, ok, "signature alone must not be enough")
}

func TestRotateRefreshTokenTwiceFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")

	v, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	require.True(t, ok)

	_, err := h.tokens.RotateRefreshToken(ctx, v.RecordID, res.User.ID, "alice@x.io", "user")
	require.NoError(t, err)

	before, err := h.tokens.CountActive(ctx)
	require.NoError(t, err)

	_, err = h.tokens.RotateRefreshToken(ctx, v.RecordID, res.User.ID, "alice@x.io", "user")
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	after, err := h.tokens.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed rotation must not leave a record behind")
}

func TestRevokeAllForUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, _ := h.register(t, "alice@x.io", "secret123")
	bob, _ := h.register(t, "bob@x.io", "secret123")

	second, err := h.tokens.IssueRefreshToken(ctx, alice.User.ID, "alice@x.io", "user")
	require.NoError(t, err)

	require.NoError(t, h.tokens.RevokeAllForUser(ctx, alice.User.ID))

	for _, token := range []string{alice.Tokens.RefreshToken, second} {
		_, ok := h.tokens.ValidateRefreshToken(ctx, token)
		assert.False(t, ok)
	}

	_, ok := h.tokens.ValidateRefreshToken(ctx, bob.Tokens.RefreshToken)
	assert.True(t, ok)
}
