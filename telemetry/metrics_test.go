package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordBeforeInitIsSafe(t *testing.T) {
	// No instruments registered yet: every Record* must be a no-op.
	RecordCacheLookup("page", true)
	RecordCacheEviction("resource", 1024)
	UpdateCacheState("page", 2048, 2)
	RecordResourceBytesSaved(512)
	RecordPrerenderStart()
	RecordPrerenderPromotion()
	RecordPrerenderEviction()
	RecordSnapshotCompress(100, 40, time.Millisecond, "success")
	RecordSnapshotDecompress(time.Millisecond, "success")
	RecordBlock("ad")
	RecordHTTP(context.Background(), "/stats", 200, 12, time.Millisecond)
}

func TestInitMetricsAndRecord(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitMetrics(ctx, MetricsConfig{
		ServiceName:      "instant-nav-test",
		EnablePrometheus: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(ctx) })

	RecordCacheLookup("page", true)
	RecordCacheLookup("page", false)
	RecordCacheEviction("page", 4096)
	UpdateCacheState("resource", 1024, 1)
	RecordResourceBytesSaved(1024)
	RecordPrerenderStart()
	RecordPrerenderPromotion()
	RecordSnapshotCompress(1000, 300, 2*time.Millisecond, "success")
	RecordSnapshotDecompress(time.Millisecond, "success")
	RecordBlock("tracker")

	// Prometheus endpoint should expose the recorded instruments.
	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "instant_nav_cache_lookups_total")
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", StatusClass(204))
	require.Equal(t, "3xx", StatusClass(304))
	require.Equal(t, "4xx", StatusClass(404))
	require.Equal(t, "5xx", StatusClass(503))
	require.Equal(t, "unknown", StatusClass(99))
}
