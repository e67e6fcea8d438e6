package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pointbarre/quoteapi/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func ready(t *testing.T, h health.Handler) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	return rec
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyProbes(t *testing.T) {
	h := health.Handler{Checker: stubChecker{}, DBTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
	rec := ready(t, h)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "ok", status["redis"])
}

func TestReadyDependencyFailure(t *testing.T) {
	h := health.Handler{Checker: stubChecker{dbErr: errors.New("db down")}}
	require.Equal(t, http.StatusServiceUnavailable, ready(t, h).Code)

	h = health.Handler{Checker: stubChecker{redisErr: errors.New("redis down")}}
	require.Equal(t, http.StatusServiceUnavailable, ready(t, h).Code)
}

func TestReadyWithoutChecker(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, ready(t, health.Handler{}).Code)
}

func TestReadinessGateDuringShutdown(t *testing.T) {
	h := health.Handler{Checker: stubChecker{}}

	health.SetReady(true)
	require.Equal(t, http.StatusOK, ready(t, h).Code)

	health.SetReady(false)
	rec := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "shutting down")

	health.SetReady(true)
}
