// AngelaMos | 2026
// harness_test.go

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/auth-backend/internal/auth"
	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/session"
	"github.com/carterperez-dev/templates/auth-backend/internal/testutil"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

const (
	testJWTSecret     = "test-jwt-secret-0123456789abcdef0123"
	testSessionSecret = "test-session-secret-0123456789abcdef"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEmail struct {
	To    string
	Token string
}

type captureNotifier struct {
	mu            sync.Mutex
	verifications []sentEmail
	resets        []sentEmail
	err           error
}

func (n *captureNotifier) SendVerificationEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, sentEmail{To: to, Token: token})
	return n.err
}

func (n *captureNotifier) SendPasswordResetEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentEmail{To: to, Token: token})
	return n.err
}

func (n *captureNotifier) lastVerification(t *testing.T) sentEmail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.verifications)
	return n.verifications[len(n.verifications)-1]
}

type harness struct {
	db       *sqlx.DB
	mr       *miniredis.Miniredis
	users    *user.Directory
	jwt      *auth.JWTManager
	tokens   *auth.TokenManager
	sessions *session.Manager
	notifier *captureNotifier
	clock    *fakeClock
	svc      *auth.Service
}

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             testJWTSecret,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "auth-backend",
		Audience:           "auth-backend-api",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, testutil.NewSQLite(t))
}

func newHarnessOn(t *testing.T, db *sqlx.DB) *harness {
	t.Helper()

	logger := testutil.DiscardLogger()
	mr, client := testutil.NewRedis(t)

	kv := cache.NewRedisStore(client)
	users := user.NewDirectory(db, cache.New(kv, nil, logger), 300*time.Second, logger)

	clock := newFakeClock()
	jwtManager, err := auth.NewJWTManager(jwtConfig())
	require.NoError(t, err)
	jwtManager.WithClock(clock.Now)

	tokens := auth.NewTokenManager(db, jwtManager, logger)
	sessions := session.NewManager(
		session.NewStore(kv, 24*time.Hour),
		testSessionSecret,
		session.CookieConfig{Name: "sessionId", Path: "/api"},
		logger,
	)
	notifier := &captureNotifier{}

	svc := auth.NewService(auth.Deps{
		DB:       db,
		Users:    users,
		Tokens:   tokens,
		Sessions: sessions,
		Notifier: notifier,
		Logger:   logger,
	})

	return &harness{
		db:       db,
		mr:       mr,
		users:    users,
		jwt:      jwtManager,
		tokens:   tokens,
		sessions: sessions,
		notifier: notifier,
		clock:    clock,
		svc:      svc,
	}
}

func freshCreds() auth.Credentials {
	return auth.Credentials{Session: &session.Handle{}}
}

func (h *harness) register(t *testing.T, email, password string) (*auth.AuthResult, auth.Credentials) {
	t.Helper()

	name := "Test User"
	creds := freshCreds()
	res, err := h.svc.Register(context.Background(), creds, auth.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     &name,
	})
	require.NoError(t, err)
	return res, creds
}

func (h *harness) makeAdmin(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, user.NewRepository(h.db).UpdateRole(context.Background(), id, user.RoleAdmin))
}

func (h *harness) storedHash(t *testing.T, id string) string {
	t.Helper()
	u, err := user.NewRepository(h.db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.PasswordHash
}

func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()

	require.Error(t, err)
	appErr, ok := core.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, status, appErr.StatusCode)
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}
