// AngelaMos | 2026
// service_test.go

package auth_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/auth-backend/internal/auth"
	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

func TestAliceRegistersLogsInAndVerifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, creds := h.register(t, "Alice@X.io", "secret123")

	assert.Equal(t, "alice@x.io", res.User.Email)
	assert.Equal(t, user.RoleUser, res.User.Role)
	assert.False(t, res.User.EmailVerified)
	assert.True(t, creds.Session.Authenticated())
	assert.Equal(t, res.User.ID, creds.Session.UserID())
	assert.True(t, h.mr.Exists(cache.SessionKey(creds.Session.ID())))

	mail := h.notifier.lastVerification(t)
	assert.Equal(t, "alice@x.io", mail.To)
	assert.Len(t, mail.Token, 64)

	stored, err := user.NewRepository(h.db).GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.Equal(t, core.HashToken(mail.Token), *stored.VerificationToken)
	assert.NotEqual(t, "secret123", stored.PasswordHash)

	claims, ok := h.tokens.ValidateAccessToken(ctx, res.Tokens.AccessToken)
	require.True(t, ok)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = h.svc.Register(ctx, freshCreds(), auth.RegisterRequest{
		Email:    "alice@x.io",
		Password: "other-password",
	})
	requireAppError(t, err, http.StatusConflict, "user already exists")

	login, err := h.svc.Login(ctx, freshCreds(), auth.LoginRequest{
		Email:    "alice@x.io",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	require.NoError(t, h.svc.VerifyEmail(ctx, mail.Token))

	verified, err := h.svc.IsEmailVerified(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, verified)

	profile, err := h.svc.GetProfile(ctx, auth.Credentials{AccessToken: login.Tokens.AccessToken})
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)

	err = h.svc.VerifyEmail(ctx, mail.Token)
	requireAppError(t, err, http.StatusBadRequest, "invalid or expired verification token")
}

func TestLoginFailuresShareOneMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "alice@x.io", "secret123")

	_, err := h.svc.Login(ctx, freshCreds(), auth.LoginRequest{
		Email:    "alice@x.io",
		Password: "wrong-password",
	})
	requireAppError(t, err, http.StatusUnauthorized, "invalid credentials")

	_, err = h.svc.Login(ctx, freshCreds(), auth.LoginRequest{
		Email:    "nobody@x.io",
		Password: "secret123",
	})
	requireAppError(t, err, http.StatusUnauthorized, "invalid credentials")
}

func TestRegisterSucceedsWhenEmailDeliveryFails(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("smtp down")

	res, _ := h.register(t, "alice@x.io", "secret123")
	assert.NotEmpty(t, res.Tokens.AccessToken)
}

func TestRefreshRotationIsOneTimeUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")

	next, err := h.svc.RefreshTokens(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, next.RefreshToken)

	_, ok := h.tokens.ValidateAccessToken(ctx, next.AccessToken)
	assert.True(t, ok)

	_, err = h.svc.RefreshTokens(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	requireAppError(t, err, http.StatusUnauthorized, "")

	old, err := auth.NewRepository(h.db).FindByToken(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, next.RefreshToken, *old.ReplacedBy)

	_, err = h.svc.RefreshTokens(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshWithoutTokenIsUnauthorized(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RefreshTokens(context.Background(), "")
	requireAppError(t, err, http.StatusUnauthorized, "refresh token not found")
	assert.NotErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefreshTokenExpires(t *testing.T) {
	h := newHarness(t)

	res, _ := h.register(t, "alice@x.io", "secret123")
	h.clock.Advance(8 * 24 * time.Hour)

	_, err := h.svc.RefreshTokens(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestLogoutRevokesTokensAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, creds := h.register(t, "alice@x.io", "secret123")
	sessionID := creds.Session.ID()

	require.NoError(t, h.svc.Logout(ctx, creds))

	assert.True(t, creds.Session.Cleared())
	assert.False(t, h.mr.Exists(cache.SessionKey(sessionID)))

	_, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	assert.False(t, ok)

	active, err := h.tokens.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, active)

	require.NoError(t, h.svc.Logout(ctx, creds))
	require.NoError(t, h.svc.Logout(ctx, freshCreds()))
	require.NoError(t, h.svc.Logout(ctx, auth.Credentials{}))
}

func TestLogoutPropagatesSessionStoreFailure(t *testing.T) {
	h := newHarness(t)

	_, creds := h.register(t, "alice@x.io", "secret123")
	h.mr.Close()

	err := h.svc.Logout(context.Background(), creds)
	require.Error(t, err)
}

func TestChangePasswordWrongCurrentLeavesStateIntact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, creds := h.register(t, "alice@x.io", "secret123")
	before := h.storedHash(t, res.User.ID)

	err := h.svc.ChangePassword(ctx, creds, auth.ChangePasswordRequest{
		CurrentPassword: "not-my-password",
		NewPassword:     "new-secret-456",
	})
	requireAppError(t, err, http.StatusBadRequest, "current password is incorrect")

	assert.Equal(t, before, h.storedHash(t, res.User.ID))

	_, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	assert.True(t, ok)
}

func TestPasswordsOverBcryptLimitAreBadRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// 30 characters, 90 bytes
	long := strings.Repeat("€", 30)

	_, err := h.svc.Register(ctx, freshCreds(), auth.RegisterRequest{
		Email:    "euro@x.io",
		Password: long,
	})
	requireAppError(t, err, http.StatusBadRequest, "password must be at most 72 bytes")

	_, err = h.users.GetByEmail(ctx, "euro@x.io")
	require.ErrorIs(t, err, core.ErrNotFound)

	res, creds := h.register(t, "alice@x.io", "secret123")
	before := h.storedHash(t, res.User.ID)

	err = h.svc.ChangePassword(ctx, creds, auth.ChangePasswordRequest{
		CurrentPassword: "secret123",
		NewPassword:     long,
	})
	requireAppError(t, err, http.StatusBadRequest, "password must be at most 72 bytes")

	assert.Equal(t, before, h.storedHash(t, res.User.ID))
	_, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	assert.True(t, ok)
}

func TestChangePasswordRevokesRefreshTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, creds := h.register(t, "alice@x.io", "secret123")

	require.NoError(t, h.svc.ChangePassword(ctx, creds, auth.ChangePasswordRequest{
		CurrentPassword: "secret123",
		NewPassword:     "new-secret-456",
	}))

	_, ok := h.tokens.ValidateRefreshToken(ctx, res.Tokens.RefreshToken)
	assert.False(t, ok)

	_, err := h.svc.Login(ctx, freshCreds(), auth.LoginRequest{
		Email:    "alice@x.io",
		Password: "secret123",
	})
	requireAppError(t, err, http.StatusUnauthorized, "invalid credentials")

	_, err = h.svc.Login(ctx, freshCreds(), auth.LoginRequest{
		Email:    "alice@x.io",
		Password: "new-secret-456",
	})
	require.NoError(t, err)
}

func TestPromoteToAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, _ := h.register(t, "alice@x.io", "secret123")
	bob, _ := h.register(t, "bob@x.io", "secret123")

	_, err := h.svc.PromoteToAdmin(ctx, bob.User.ID, alice.User.ID)
	requireAppError(t, err, http.StatusForbidden, "only admins can promote users")

	_, err = h.svc.PromoteToAdmin(ctx, bob.User.ID, "missing-requester")
	requireAppError(t, err, http.StatusUnauthorized, "")

	h.makeAdmin(t, alice.User.ID)

	_, err = h.svc.PromoteToAdmin(ctx, "missing-target", alice.User.ID)
	requireAppError(t, err, http.StatusNotFound, "")

	cached, err := h.users.GetByID(ctx, bob.User.ID)
	require.NoError(t, err)
	require.Equal(t, user.RoleUser, cached.Role)

	promoted, err := h.svc.PromoteToAdmin(ctx, bob.User.ID, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, promoted.Role)

	assert.False(t, h.mr.Exists(cache.UserIDKey(bob.User.ID)))
	assert.False(t, h.mr.Exists(cache.UserEmailKey("bob@x.io")))

	reloaded, err := h.users.GetByID(ctx, bob.User.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAdmin())
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, creds := h.register(t, "alice@x.io", "secret123")

	err := h.svc.DeleteAccount(ctx, creds, auth.DeleteAccountRequest{
		Password:     "secret123",
		Confirmation: "delete",
	})
	requireAppError(t, err, http.StatusBadRequest, "")

	err = h.svc.DeleteAccount(ctx, creds, auth.DeleteAccountRequest{
		Password:     "wrong-password",
		Confirmation: auth.DeleteConfirmation,
	})
	requireAppError(t, err, http.StatusBadRequest, "password is incorrect")

	require.NoError(t, h.svc.DeleteAccount(ctx, creds, auth.DeleteAccountRequest{
		Password:     "secret123",
		Confirmation: auth.DeleteConfirmation,
	}))

	_, err = h.users.GetByID(ctx, res.User.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = auth.NewRepository(h.db).FindByToken(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, core.ErrNotFound)

	assert.True(t, creds.Session.Cleared())

	_, err = h.svc.GetProfile(ctx, auth.Credentials{AccessToken: res.Tokens.AccessToken})
	requireAppError(t, err, http.StatusUnauthorized, "authentication required")
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")
	mail := h.notifier.lastVerification(t)

	require.NoError(t, user.NewRepository(h.db).SetVerificationToken(
		ctx,
		res.User.ID,
		core.HashToken(mail.Token),
		time.Now().Add(-time.Minute),
	))

	err := h.svc.VerifyEmail(ctx, mail.Token)
	requireAppError(t, err, http.StatusBadRequest, "invalid or expired verification token")

	err = h.svc.VerifyEmail(ctx, "")
	requireAppError(t, err, http.StatusBadRequest, "invalid or expired verification token")

	err = h.svc.VerifyEmail(ctx, "unknown-token")
	requireAppError(t, err, http.StatusBadRequest, "invalid or expired verification token")
}

func TestResendVerificationReplacesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, creds := h.register(t, "alice@x.io", "secret123")
	first := h.notifier.lastVerification(t)

	require.NoError(t, h.svc.ResendVerification(ctx, creds))
	second := h.notifier.lastVerification(t)
	require.NotEqual(t, first.Token, second.Token)

	err := h.svc.VerifyEmail(ctx, first.Token)
	requireAppError(t, err, http.StatusBadRequest, "")

	require.NoError(t, h.svc.VerifyEmail(ctx, second.Token))

	err = h.svc.ResendVerification(ctx, creds)
	requireAppError(t, err, http.StatusBadRequest, "email is already verified")
}

func TestVerificationExpiryIsStoredInUTC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plus5 := time.FixedZone("UTC+5", 5*60*60)
	svc := auth.NewService(auth.Deps{
		DB:       h.db,
		Users:    h.users,
		Tokens:   h.tokens,
		Sessions: h.sessions,
		Notifier: h.notifier,
		Now:      func() time.Time { return time.Now().In(plus5) },
	})

	name := "Alice"
	creds := freshCreds()
	res, err := svc.Register(ctx, creds, auth.RegisterRequest{
		Email:    "alice@x.io",
		Password: "secret123",
		Name:     &name,
	})
	require.NoError(t, err)

	for _, step := range []string{"register", "resend"} {
		if step == "resend" {
			require.NoError(t, svc.ResendVerification(ctx, creds))
		}

		u, err := user.NewRepository(h.db).GetByID(ctx, res.User.ID)
		require.NoError(t, err)
		require.NotNil(t, u.VerificationTokenExpires, step)

		_, offset := u.VerificationTokenExpires.Zone()
		assert.Zero(t, offset, step)
	}

	require.NoError(t, svc.VerifyEmail(ctx, h.notifier.lastVerification(t).Token))
}

func TestRequireVerifiedEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, _ := h.register(t, "alice@x.io", "secret123")

	err := h.svc.RequireVerifiedEmail(ctx, res.User.ID)
	requireAppError(t, err, http.StatusForbidden, "email verification required")

	err = h.svc.RequireVerifiedEmail(ctx, "missing")
	requireAppError(t, err, http.StatusNotFound, "")

	require.NoError(t, h.svc.VerifyEmail(ctx, h.notifier.lastVerification(t).Token))
	require.NoError(t, h.svc.RequireVerifiedEmail(ctx, res.User.ID))
}

func TestGetProfileWithoutIdentity(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetProfile(context.Background(), freshCreds())
	requireAppError(t, err, http.StatusUnauthorized, "authentication required")

	_, err = h.svc.GetProfile(context.Background(), auth.Credentials{AccessToken: "garbage"})
	requireAppError(t, err, http.StatusUnauthorized, "authentication required")
}

func TestUpdateProfileThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "bob@x.io", "secret123")
	_, creds := h.register(t, "alice@x.io", "secret123")

	taken := "bob@x.io"
	_, err := h.svc.UpdateProfile(ctx, creds, user.UpdateProfileRequest{Email: &taken})
	requireAppError(t, err, http.StatusConflict, "")

	name := "Alice Liddell"
	updated, err := h.svc.UpdateProfile(ctx, creds, user.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated.Name)
	assert.Equal(t, name, *updated.Name)
}

func TestResolveIdentityPrefersToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, aliceCreds := h.register(t, "alice@x.io", "secret123")
	bob, _ := h.register(t, "bob@x.io", "secret123")

	id, ok := h.svc.ResolveIdentity(ctx, auth.Credentials{
		AccessToken: bob.Tokens.AccessToken,
		Session:     aliceCreds.Session,
	})
	require.True(t, ok)
	assert.Equal(t, bob.User.ID, id.UserID)
	assert.Equal(t, auth.SourceToken, id.Source)

	id, ok = h.svc.ResolveIdentity(ctx, auth.Credentials{
		AccessToken: "garbage",
		Session:     aliceCreds.Session,
	})
	require.True(t, ok)
	assert.Equal(t, aliceCreds.Session.UserID(), id.UserID)
	assert.Equal(t, auth.SourceSession, id.Source)

	_, ok = h.svc.ResolveIdentity(ctx, freshCreds())
	assert.False(t, ok)
}

func TestPurgeExpiredTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "alice@x.io", "secret123")
	h.register(t, "bob@x.io", "secret123")

	n, err := h.svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(8 * 24 * time.Hour)

	n, err = h.svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
