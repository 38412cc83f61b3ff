// AngelaMos | 2026
// handler_test.go

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/auth-backend/internal/health"
)

func healthy(context.Context) error { return nil }

func newRouter(h *health.Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, path string) (int, health.ReadinessResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body health.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestReadinessAllHealthy(t *testing.T) {
	h := health.NewHandler(
		health.NamedChecker{Name: "database", Checker: health.CheckerFunc(healthy)},
		health.NamedChecker{Name: "redis", Checker: health.CheckerFunc(healthy)},
	)

	code, body := get(t, newRouter(h), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Checks, 2)
	assert.Equal(t, "database", body.Checks[0].Name)
	assert.Equal(t, "redis", body.Checks[1].Name)
}

func TestReadinessDegradedWhenDependencyFails(t *testing.T) {
	h := health.NewHandler(
		health.NamedChecker{Name: "database", Checker: health.CheckerFunc(healthy)},
		health.NamedChecker{Name: "redis", Checker: health.CheckerFunc(func(context.Context) error {
			return errors.New("connection refused")
		})},
		health.NamedChecker{Name: "queue"},
	)

	code, body := get(t, newRouter(h), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Checks[1].Healthy)
	assert.Equal(t, "ping failed", body.Checks[1].Message)
	assert.Equal(t, "queue checker not configured", body.Checks[2].Message)
}

func TestShutdownFailsLivenessAndReadiness(t *testing.T) {
	h := health.NewHandler()
	r := newRouter(h)

	code, _ := get(t, r, "/livez")
	assert.Equal(t, http.StatusOK, code)

	h.SetShutdown(true)

	code, body := get(t, r, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting_down", body.Status)

	code, _ = get(t, r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
