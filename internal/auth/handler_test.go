// AngelaMos | 2026
// handler_test.go

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/auth-backend/internal/auth"
	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newAPI(t *testing.T, h *harness) *apiClient {
	t.Helper()

	handler := auth.NewHandler(
		h.svc,
		auth.NewCookieWriter(config.CookieConfig{
			APIPath:     "/api",
			RefreshPath: "/api/auth/refresh",
		}, 15*time.Minute, 7*24*time.Hour),
		h.sessions,
	)

	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(h.sessions.Middleware)
		handler.RegisterRoutes(
			r,
			passthrough,
			middleware.Authenticator(h.svc),
			middleware.RequireAdmin,
		)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &apiClient{
		t:      t,
		server: srv,
		client: &http.Client{Jar: jar},
	}
}

func (c *apiClient) do(method, path string, body any, cookies ...*http.Cookie) (*http.Response, envelope) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	client := c.client
	if len(cookies) > 0 {
		client = &http.Client{}
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
	}

	resp, err := client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var aliceBody = map[string]string{
	"email":    "alice@x.io",
	"password": "secret123",
	"name":     "Alice",
}

func TestHandlerRegisterSetsCookiesAndHidesSecrets(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, env := api.do(http.MethodPost, "/api/auth/register", aliceBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice@x.io", data["email"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "verification_token")
	assert.NotContains(t, data, "access_token")

	access := cookieNamed(resp, auth.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "/api", access.Path)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	refresh := cookieNamed(resp, auth.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "/api/auth/refresh", refresh.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), refresh.MaxAge)

	sess := cookieNamed(resp, "sessionId")
	require.NotNil(t, sess)
	assert.Equal(t, "/api", sess.Path)
	assert.Equal(t, http.SameSiteLaxMode, sess.SameSite)
}

func TestHandlerFullCookieFlow(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, _ := api.do(http.MethodPost, "/api/auth/register", aliceBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := api.do(http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, _ = api.do(http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, cookieNamed(resp, auth.AccessTokenCookie))
	assert.NotNil(t, cookieNamed(resp, auth.RefreshTokenCookie))

	resp, env = api.do(http.MethodGet, "/api/auth/email-status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email_verified":false}`, string(env.Data))

	resp, _ = api.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie, "sessionId"} {
		c := cookieNamed(resp, name)
		require.NotNil(t, c, name)
		assert.Negative(t, c.MaxAge, name)
	}

	resp, env = api.do(http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication required", env.Error.Message)
}

func TestHandlerSessionCookieAloneAuthenticates(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, _ := api.do(http.MethodPost, "/api/auth/register", aliceBody)
	sess := cookieNamed(resp, "sessionId")
	require.NotNil(t, sess)

	resp, _ = api.do(http.MethodGet, "/api/auth/profile", nil, sess)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerRefreshWithBadCookieClearsIt(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, env := api.do(http.MethodPost, "/api/auth/refresh", nil,
		&http.Cookie{Name: auth.RefreshTokenCookie, Value: "forged"},
	)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	cleared := cookieNamed(resp, auth.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestHandlerValidatesInput(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, env := api.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestHandlerRegisterRejectsMultibytePasswordOverLimit(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, env := api.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "euro@x.io",
		"password": strings.Repeat("€", 30),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	assert.Nil(t, cookieNamed(resp, auth.AccessTokenCookie))
}

func TestHandlerAdminProfileRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	api := newAPI(t, h)

	resp, env := api.do(http.MethodPost, "/api/auth/register", aliceBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	resp, _ = api.do(http.MethodGet, "/api/auth/admin-profile", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.makeAdmin(t, data.ID)
	h.users.Invalidate(context.Background(), data.ID, "alice@x.io")

	resp, _ = api.do(http.MethodGet, "/api/auth/admin-profile", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
