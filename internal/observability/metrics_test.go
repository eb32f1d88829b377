package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRunAndSegmentation(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordRun("completed", 2*time.Second)
	m.RecordRun("failed", time.Second)
	m.RecordRun("completed", time.Second)
	m.RecordSegmentation(120, 2, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.PingsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TripsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TripsDiscarded))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordHTTP("GET", "/api/v1/trips", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tripwatch_http_requests_total{method="GET",route="/api/v1/trips",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
