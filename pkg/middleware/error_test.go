package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/lukmanhidayah/siasn-sync/pkg/context"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func invokeErrorHandler(t *testing.T, err error, decorate func(r *http.Request) *http.Request) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	if decorate != nil {
		req = decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Error(testLogger())(err, c)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorHandlerDefaultsToInternalServerError(t *testing.T) {
	rec, body := invokeErrorHandler(t, errors.New("boom"), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Empty(t, body.RunID)
}

func TestErrorHandlerMapsHTTPErrors(t *testing.T) {
	err := httperror.NewHTTPErrorf(http.StatusNotFound, "run not found")
	rec, body := invokeErrorHandler(t, err, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body.Message, "run not found")
}

func TestErrorHandlerIncludesRequestAndRunIDs(t *testing.T) {
	decorate := func(r *http.Request) *http.Request {
		ctx := appctx.SetRequestID(r.Context(), "req-123")
		ctx = appctx.SetRunID(ctx, "run-456")
		return r.WithContext(ctx)
	}

	_, body := invokeErrorHandler(t, errors.New("boom"), decorate)

	assert.Equal(t, "req-123", body.RequestID)
	assert.Equal(t, "run-456", body.RunID)
}

func TestErrorHandlerOmitsRunIDOutsideCycles(t *testing.T) {
	decorate := func(r *http.Request) *http.Request {
		return r.WithContext(appctx.SetRequestID(r.Context(), "req-789"))
	}

	rec, body := invokeErrorHandler(t, errors.New("boom"), decorate)

	assert.Equal(t, "req-789", body.RequestID)
	assert.Empty(t, body.RunID)
	assert.NotContains(t, rec.Body.String(), "run_id")
}
