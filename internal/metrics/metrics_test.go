package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveReconcile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveReconcile(3, 1, 8, 0)
	m.ObserveReconcile(1, 0, 0, 2)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ReconcileOutcomes.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileOutcomes.WithLabelValues("update")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.ReconcileOutcomes.WithLabelValues("unchanged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileOutcomes.WithLabelValues("delete")))
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ProjectionsGenerated.WithLabelValues("expense").Add(12)
	m.ObserveHTTP("GET /api/projections", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	assert.True(t, strings.Contains(text, `forecast_projections_generated_total{kind="expense"} 12`))
	assert.True(t, strings.Contains(text, "forecast_http_request_duration_seconds_bucket"))
}
