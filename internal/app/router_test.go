package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/rbac"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/jobs"
	_ "github.com/odyssey-erp/procureflow/testing"
)

type tokenSessions map[string]int64

func (s tokenSessions) TokenFromRequest(r *http.Request) string {
	return r.Header.Get("Authorization")
}

func (s tokenSessions) Lookup(ctx context.Context, token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, shared.ErrSessionNotFound
}

type staticActors map[int64]shared.Actor

func (a staticActors) LoadActor(ctx context.Context, id int64) (shared.Actor, error) {
	if actor, ok := a[id]; ok {
		return actor, nil
	}
	return shared.Actor{}, rbac.ErrNotFound
}

func testRouter(ready map[string]Pinger) http.Handler {
	mw := &rbac.Middleware{
		Sessions: tokenSessions{"ops": 1, "clerk": 2},
		Actors: staticActors{
			1: shared.NewActor(1, "ops", shared.CapJobsView),
			2: shared.NewActor(2, "clerk"),
		},
	}
	return NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test", CORSAllowedOrigins: []string{"http://localhost:5173"}},
		RBACMiddleware: mw,
		JobHandler:     jobs.NewHandler(nil, nil),
		Metrics:        observability.NewMetrics(),
		Ready:          ready,
	})
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := get(testRouter(nil), "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestReadiness(t *testing.T) {
	h := testRouter(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("refused") }),
	})
	rr := get(h, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, map[string]string{"postgres": "up", "redis": "down"}, body)
}

func TestJobsHealthRequiresCapability(t *testing.T) {
	h := testRouter(nil)
	require.Equal(t, http.StatusUnauthorized, get(h, "/api/v1/jobs/health", "").Code)
	require.Equal(t, http.StatusForbidden, get(h, "/api/v1/jobs/health", "clerk").Code)
	require.Equal(t, http.StatusOK, get(h, "/api/v1/jobs/health", "ops").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := testRouter(nil)
	get(h, "/healthz", "")
	rr := get(h, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `procureflow_http_requests_total{code="200",route="/healthz"}`)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/purchase-orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	testRouter(nil).ServeHTTP(rr, req)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.NumberMaxAttempts)
	require.Equal(t, "dashboard", cfg.BroadcastChannel)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	pool := cfg.PoolOptions("procureflow-worker")
	require.EqualValues(t, 10, pool.MaxConns)
	require.Equal(t, "procureflow-worker", pool.ApplicationName)
	require.Equal(t, cfg.RedisAddr, cfg.CacheOptions().Addr)

	t.Setenv("NUMBER_MAX_ATTEMPTS", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}
