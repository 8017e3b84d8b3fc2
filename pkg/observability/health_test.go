package observability_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/payment-core/pkg/observability"
)

func TestHealthChecker_NilPoolIsNotConfigured(t *testing.T) {
	h := observability.NewHealthChecker(nil)

	report := h.Check(context.Background())

	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "not configured", report.Checks["database"])
	assert.False(t, report.Timestamp.IsZero())
}

func TestHealthHandler_ServesJSONReport(t *testing.T) {
	h := observability.NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report observability.HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "healthy", report.Status)
}
