package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func doRequest(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	checker := NewChecker(t.TempDir(), nil, nil, "test")

	rec, body := doRequest(t, checker.LivenessHandler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestReadinessBeforeStartup(t *testing.T) {
	checker := NewChecker(t.TempDir(), nil, nil, "test")

	rec, body := doRequest(t, checker.ReadinessHandler)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, body.Status)
}

func TestHealthDegradedWhenOptionalDepsMissing(t *testing.T) {
	checker := NewChecker(t.TempDir(), nil, nil, "test")
	checker.SetReady(true)

	rec, body := doRequest(t, checker.ReadinessHandler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, body.Status)
	assert.Equal(t, StatusHealthy, body.Checks["data_dir"].Status)
	assert.Equal(t, StatusDegraded, body.Checks["totp_provider"].Status)
	assert.Equal(t, StatusDegraded, body.Checks["database"].Status)
}

func TestHealthHealthyWhenAllChecksPass(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	checker := NewChecker(t.TempDir(), ok, ok, "test")
	checker.SetReady(true)

	rec, body := doRequest(t, checker.HealthHandler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, body.Status)
}

func TestHealthDegradedOnPingFailure(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	failing := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	checker := NewChecker(t.TempDir(), failing, ok, "test")

	rec, body := doRequest(t, checker.HealthHandler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, body.Status)
	assert.Equal(t, "connection refused", body.Checks["totp_provider"].Message)
}

func TestHealthUnhealthyWhenDataDirUnwritable(t *testing.T) {
	checker := NewChecker("/proc/no-such-dir", nil, nil, "test")

	rec, body := doRequest(t, checker.HealthHandler)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, StatusUnhealthy, body.Checks["data_dir"].Status)
}
