package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the service-level metrics. Per-stage inference metrics
// live in the intelligence layer and share the same registry.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC layer
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Prediction service
	PredictionsTotal   CounterVec
	PredictionDuration HistogramVec
	BatchSize          HistogramVec

	// Infrastructure
	HistoryWritesTotal   CounterVec
	DBQueryDuration      HistogramVec
	EventsPublishedTotal CounterVec
	ArtifactsLoaded      GaugeVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets       = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPredictionDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultBatchSizeBuckets          = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}
	DefaultSizeBuckets               = []float64{100, 1000, 10000, 100000, 1000000}
	DefaultDBDurationBuckets         = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers every service metric with collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "method")

	m.PredictionsTotal = collector.RegisterCounter("predictions_total", "Recipe predictions by branch and outcome", "mode", "branch", "status")
	m.PredictionDuration = collector.RegisterHistogram("prediction_duration_seconds", "End-to-end prediction duration", DefaultPredictionDurationBuckets, "mode")
	m.BatchSize = collector.RegisterHistogram("prediction_batch_size", "Number of inputs per batch request", DefaultBatchSizeBuckets, "source")

	m.HistoryWritesTotal = collector.RegisterCounter("history_writes_total", "Prediction history writes", "status")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.EventsPublishedTotal = collector.RegisterCounter("events_published_total", "Prediction events published", "event_type", "status")
	m.ArtifactsLoaded = collector.RegisterGauge("artifacts_loaded", "Artifacts resident in the registry", "kind")

	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Helpers. All of them accept a nil *AppMetrics.

func RecordHTTPRequest(metrics *AppMetrics, method, route string, statusCode int, duration time.Duration, respSize int64) {
	if metrics == nil {
		return
	}
	metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	metrics.HTTPResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

func RecordGRPCRequest(metrics *AppMetrics, method, code string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	metrics.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPrediction counts one prediction. branch is empty for failed runs.
func RecordPrediction(metrics *AppMetrics, mode, branch string, success bool, duration time.Duration) {
	if metrics == nil {
		return
	}
	if branch == "" {
		branch = "none"
	}
	metrics.PredictionsTotal.WithLabelValues(mode, branch, status(success)).Inc()
	metrics.PredictionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordBatchSize(metrics *AppMetrics, source string, n int) {
	if metrics == nil {
		return
	}
	metrics.BatchSize.WithLabelValues(source).Observe(float64(n))
}

func RecordHistoryWrite(metrics *AppMetrics, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.HistoryWritesTotal.WithLabelValues(status(err == nil)).Inc()
	RecordDBQuery(metrics, "postgres", "insert_prediction", duration, err)
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordEvent(metrics *AppMetrics, eventType string, err error) {
	if metrics == nil {
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(eventType, status(err == nil)).Inc()
}

func SetArtifactsLoaded(metrics *AppMetrics, kind string, n int) {
	if metrics == nil {
		return
	}
	metrics.ArtifactsLoaded.WithLabelValues(kind).Set(float64(n))
}

func SetHealth(metrics *AppMetrics, component string, up bool) {
	if metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	metrics.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func SetUptime(metrics *AppMetrics, service string, started time.Time) {
	if metrics == nil {
		return
	}
	metrics.ServiceUptime.WithLabelValues(service).Set(time.Since(started).Seconds())
}

func RecordError(metrics *AppMetrics, component, code string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}
