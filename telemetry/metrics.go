// Package telemetry provides OpenTelemetry metric instruments for the
// caching engine: cache lookups and evictions, prerender lifecycle,
// snapshot compression, content blocking, and the diagnostics HTTP surface.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const (
	meterName = "github.com/wolfeidau/instant-nav"
)

// MetricsConfig configures the metrics system.
type MetricsConfig struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus /metrics endpoint.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Metrics holds the OpenTelemetry metric instruments.
type Metrics struct {
	cacheLookupsTotal    metric.Int64Counter
	cacheEvictionsTotal  metric.Int64Counter
	cacheEvictionBytes   metric.Int64Counter
	cacheBytes           metric.Int64Gauge
	cacheEntries         metric.Int64Gauge
	resourceBytesSaved   metric.Int64Counter
	prerenderStartsTotal metric.Int64Counter
	prerenderPromotions  metric.Int64Counter
	prerenderEvictions   metric.Int64Counter

	snapshotOpsTotal        metric.Int64Counter
	snapshotOriginalBytes   metric.Int64Counter
	snapshotCompressedBytes metric.Int64Counter
	snapshotDuration        metric.Float64Histogram

	blocksTotal metric.Int64Counter

	requestsTotal      metric.Int64Counter
	responseBytesTotal metric.Int64Counter
	requestDuration    metric.Float64Histogram

	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
	initErr       error
)

// InitMetrics initializes the OpenTelemetry metrics system.
// Returns a shutdown function that should be called on application exit.
// Uses sync.Once to ensure single initialisation.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (shutdown func(context.Context) error, err error) {
	initOnce.Do(func() {
		initErr = doInitMetrics(ctx, cfg)
	})

	if initErr != nil {
		return nil, initErr
	}

	return shutdownMetrics, nil
}

func doInitMetrics(ctx context.Context, cfg MetricsConfig) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "instant-nav"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader
	var promHandler http.Handler

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// If no exporters configured, use a no-op periodic reader to still collect metrics
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)

	cacheLookupsTotal, err := meter.Int64Counter(
		"instant_nav_cache_lookups_total",
		metric.WithDescription("Total cache lookups by store and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	cacheEvictionsTotal, err := meter.Int64Counter(
		"instant_nav_cache_evictions_total",
		metric.WithDescription("Total entries evicted by store"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	cacheEvictionBytes, err := meter.Int64Counter(
		"instant_nav_cache_eviction_bytes_total",
		metric.WithDescription("Total bytes freed by eviction, by store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	cacheBytes, err := meter.Int64Gauge(
		"instant_nav_cache_bytes",
		metric.WithDescription("Current tracked bytes in each store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	cacheEntries, err := meter.Int64Gauge(
		"instant_nav_cache_entries",
		metric.WithDescription("Current entries in each store"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	resourceBytesSaved, err := meter.Int64Counter(
		"instant_nav_resource_bytes_saved_total",
		metric.WithDescription("Bytes of refetch bandwidth avoided by resource cache hits"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	prerenderStartsTotal, err := meter.Int64Counter(
		"instant_nav_prerender_starts_total",
		metric.WithDescription("Total speculative navigations started"),
		metric.WithUnit("{start}"),
	)
	if err != nil {
		return err
	}

	prerenderPromotions, err := meter.Int64Counter(
		"instant_nav_prerender_promotions_total",
		metric.WithDescription("Total prerender slots promoted into the page cache"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return err
	}

	prerenderEvictions, err := meter.Int64Counter(
		"instant_nav_prerender_evictions_total",
		metric.WithDescription("Total prerender slots evicted on pool overflow"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return err
	}

	snapshotOpsTotal, err := meter.Int64Counter(
		"instant_nav_snapshot_ops_total",
		metric.WithDescription("Total snapshot compress/decompress operations by outcome"),
		metric.WithUnit("{op}"),
	)
	if err != nil {
		return err
	}

	snapshotOriginalBytes, err := meter.Int64Counter(
		"instant_nav_snapshot_original_bytes_total",
		metric.WithDescription("Total uncompressed bytes handed to the snapshot store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	snapshotCompressedBytes, err := meter.Int64Counter(
		"instant_nav_snapshot_compressed_bytes_total",
		metric.WithDescription("Total compressed bytes produced by the snapshot store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	snapshotDuration, err := meter.Float64Histogram(
		"instant_nav_snapshot_duration_seconds",
		metric.WithDescription("Duration of snapshot compress/decompress operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return err
	}

	blocksTotal, err := meter.Int64Counter(
		"instant_nav_blocks_total",
		metric.WithDescription("Total requests blocked by the classifier, by reason"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	requestsTotal, err := meter.Int64Counter(
		"instant_nav_http_requests_total",
		metric.WithDescription("Total diagnostics HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	responseBytesTotal, err := meter.Int64Counter(
		"instant_nav_http_response_bytes_total",
		metric.WithDescription("Total bytes sent in diagnostics HTTP responses"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	requestDuration, err := meter.Float64Histogram(
		"instant_nav_http_request_duration_seconds",
		metric.WithDescription("Diagnostics HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return err
	}

	globalMetrics = &Metrics{
		cacheLookupsTotal:       cacheLookupsTotal,
		cacheEvictionsTotal:     cacheEvictionsTotal,
		cacheEvictionBytes:      cacheEvictionBytes,
		cacheBytes:              cacheBytes,
		cacheEntries:            cacheEntries,
		resourceBytesSaved:      resourceBytesSaved,
		prerenderStartsTotal:    prerenderStartsTotal,
		prerenderPromotions:     prerenderPromotions,
		prerenderEvictions:      prerenderEvictions,
		snapshotOpsTotal:        snapshotOpsTotal,
		snapshotOriginalBytes:   snapshotOriginalBytes,
		snapshotCompressedBytes: snapshotCompressedBytes,
		snapshotDuration:        snapshotDuration,
		blocksTotal:             blocksTotal,
		requestsTotal:           requestsTotal,
		responseBytesTotal:      responseBytesTotal,
		requestDuration:         requestDuration,
		meterProvider:           mp,
		promHandler:             promHandler,
	}

	return nil
}

// shutdownMetrics shuts down the metrics provider and clears the global state.
func shutdownMetrics(ctx context.Context) error {
	if globalMetrics == nil {
		return nil
	}
	err := globalMetrics.meterProvider.Shutdown(ctx)
	globalMetrics = nil
	return err
}

// RecordCacheLookup records a lookup against a store ("page" or "resource").
func RecordCacheLookup(store string, hit bool) {
	if globalMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	globalMetrics.cacheLookupsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("result", result),
	))
}

// RecordCacheEviction records an eviction from a store.
func RecordCacheEviction(store string, bytes int64) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("store", store))
	globalMetrics.cacheEvictionsTotal.Add(context.Background(), 1, attrs)
	globalMetrics.cacheEvictionBytes.Add(context.Background(), bytes, attrs)
}

// UpdateCacheState updates the byte and entry gauges for a store.
func UpdateCacheState(store string, bytes int64, entries int) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("store", store))
	globalMetrics.cacheBytes.Record(context.Background(), bytes, attrs)
	globalMetrics.cacheEntries.Record(context.Background(), int64(entries), attrs)
}

// RecordResourceBytesSaved records refetch bandwidth avoided by a resource
// cache hit.
func RecordResourceBytesSaved(bytes int64) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.resourceBytesSaved.Add(context.Background(), bytes)
}

// RecordPrerenderStart records a speculative navigation start.
func RecordPrerenderStart() {
	if globalMetrics == nil {
		return
	}
	globalMetrics.prerenderStartsTotal.Add(context.Background(), 1)
}

// RecordPrerenderPromotion records a slot promoted into the page cache.
func RecordPrerenderPromotion() {
	if globalMetrics == nil {
		return
	}
	globalMetrics.prerenderPromotions.Add(context.Background(), 1)
}

// RecordPrerenderEviction records a slot evicted on pool overflow.
func RecordPrerenderEviction() {
	if globalMetrics == nil {
		return
	}
	globalMetrics.prerenderEvictions.Add(context.Background(), 1)
}

// RecordSnapshotCompress records one compression operation.
func RecordSnapshotCompress(original, compressed int64, duration time.Duration, outcome string) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", "compress"),
		attribute.String("outcome", outcome),
	)
	globalMetrics.snapshotOpsTotal.Add(context.Background(), 1, attrs)
	globalMetrics.snapshotDuration.Record(context.Background(), duration.Seconds(), attrs)
	if original > 0 {
		globalMetrics.snapshotOriginalBytes.Add(context.Background(), original)
	}
	if compressed > 0 {
		globalMetrics.snapshotCompressedBytes.Add(context.Background(), compressed)
	}
}

// RecordSnapshotDecompress records one decompression operation.
func RecordSnapshotDecompress(duration time.Duration, outcome string) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", "decompress"),
		attribute.String("outcome", outcome),
	)
	globalMetrics.snapshotOpsTotal.Add(context.Background(), 1, attrs)
	globalMetrics.snapshotDuration.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordBlock records a classifier block decision by reason.
func RecordBlock(reason string) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.blocksTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordHTTP records diagnostics HTTP request metrics.
// Call this from the logging middleware after the request completes.
func RecordHTTP(ctx context.Context, endpoint string, status int, bytesSent int64, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status_class", StatusClass(status)),
	)
	globalMetrics.requestsTotal.Add(ctx, 1, attrs)
	globalMetrics.responseBytesTotal.Add(ctx, bytesSent, attrs)
	globalMetrics.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns a handler that returns 404 if Prometheus export is not enabled,
// allowing safe registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if globalMetrics == nil || globalMetrics.promHandler == nil {
			http.NotFound(w, r)
			return
		}
		globalMetrics.promHandler.ServeHTTP(w, r)
	})
}

// StatusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx).
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(_ sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
