package common

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// IntelligenceMetrics is the metrics API of the model-serving layer. The
// pipeline, the registry and the batch processor record through it so the
// backing implementation (Prometheus, in-memory, noop) can be swapped without
// touching them.
type IntelligenceMetrics interface {
	// RecordInference records one stage evaluation.
	RecordInference(ctx context.Context, params *InferenceMetricParams)

	// RecordBatchProcessing records a batch processing event.
	RecordBatchProcessing(ctx context.Context, params *BatchMetricParams)

	// RecordCacheAccess records a result-cache hit or miss for a stage.
	RecordCacheAccess(ctx context.Context, hit bool, stage string)

	// RecordPipelineRun records one end-to-end recipe prediction.
	RecordPipelineRun(ctx context.Context, branch string, durationMs float64, success bool)

	// RecordModelLoad records an artifact load.
	RecordModelLoad(ctx context.Context, artifact, version string, durationMs float64, success bool)

	// GetInferenceLatencyHistogram returns the stage latency histogram.
	GetInferenceLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time statistics snapshot.
	GetCurrentStats() *IntelligenceStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	// Observe records a latency sample in milliseconds.
	Observe(durationMs float64)

	// Percentile returns the value at the given percentile (0–100).
	Percentile(p float64) float64

	// Count returns the total number of observed samples.
	Count() int64

	// Sum returns the sum of all observed values.
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// InferenceMetricParams carries the data for a single stage evaluation.
type InferenceMetricParams struct {
	Stage        string  `json:"stage"`
	ModelKey     string  `json:"model_key"`
	ModelVersion string  `json:"model_version"`
	Task         string  `json:"task"`
	DurationMs   float64 `json:"duration_ms"`
	Success      bool    `json:"success"`
	Cached       bool    `json:"cached"`
}

// BatchMetricParams carries the data for a batch processing event.
type BatchMetricParams struct {
	BatchName         string  `json:"batch_name"`
	TotalItems        int     `json:"total_items"`
	SuccessItems      int     `json:"success_items"`
	FailedItems       int     `json:"failed_items"`
	TimeoutItems      int     `json:"timeout_items"`
	CancelledItems    int     `json:"cancelled_items"`
	Chunks            int     `json:"chunks"`
	TotalDurationMs   float64 `json:"total_duration_ms"`
	AvgItemDurationMs float64 `json:"avg_item_duration_ms"`
	MaxConcurrency    int     `json:"max_concurrency"`
}

// IntelligenceStats is a point-in-time snapshot of serving metrics.
type IntelligenceStats struct {
	TotalInferences       int64            `json:"total_inferences"`
	SuccessfulInferences  int64            `json:"successful_inferences"`
	FailedInferences      int64            `json:"failed_inferences"`
	AvgInferenceLatencyMs float64          `json:"avg_inference_latency_ms"`
	P50LatencyMs          float64          `json:"p50_latency_ms"`
	P95LatencyMs          float64          `json:"p95_latency_ms"`
	P99LatencyMs          float64          `json:"p99_latency_ms"`
	CacheHitRate          float64          `json:"cache_hit_rate"`
	PipelineRuns          int64            `json:"pipeline_runs"`
	PipelineFailures      int64            `json:"pipeline_failures"`
	BranchCounts          map[string]int64 `json:"branch_counts"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsPrefix = "adsorpnet_intelligence_"

var defaultLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

type prometheusIntelligenceMetrics struct {
	stageLatency            *prometheus.HistogramVec
	stageTotal              *prometheus.CounterVec
	batchProcessingDuration *prometheus.HistogramVec
	batchItemsTotal         *prometheus.CounterVec
	cacheAccessTotal        *prometheus.CounterVec
	pipelineTotal           *prometheus.CounterVec
	pipelineDuration        *prometheus.HistogramVec
	artifactLoadDuration    *prometheus.HistogramVec

	// in-memory tracking for GetCurrentStats / GetInferenceLatencyHistogram
	latencyHist  *latencyHistogram
	totalInf     atomic.Int64
	successInf   atomic.Int64
	failedInf    atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	runs         atomic.Int64
	runFailures  atomic.Int64
	branchCounts sync.Map // branch -> *atomic.Int64
}

// NewPrometheusIntelligenceMetrics creates a Prometheus-backed collector and
// registers all metrics with registerer.
func NewPrometheusIntelligenceMetrics(registerer prometheus.Registerer) (IntelligenceMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusIntelligenceMetrics{
		latencyHist: newLatencyHistogram(),
	}

	m.stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "stage_duration_milliseconds",
		Help:    "Histogram of pipeline stage latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"stage", "task", "cached"})

	m.stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "stage_total",
		Help: "Total number of pipeline stage evaluations.",
	}, []string{"stage", "status"})

	m.batchProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "batch_processing_duration_milliseconds",
		Help:    "Histogram of batch processing duration in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"batch_name"})

	m.batchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batch_items_total",
		Help: "Total number of items processed in batches.",
	}, []string{"batch_name", "status"})

	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "cache_access_total",
		Help: "Total number of result-cache lookups.",
	}, []string{"stage", "result"})

	m.pipelineTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "pipeline_runs_total",
		Help: "Total number of recipe predictions by metal branch.",
	}, []string{"branch", "status"})

	m.pipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "pipeline_duration_milliseconds",
		Help:    "Histogram of end-to-end recipe prediction latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"branch"})

	m.artifactLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "artifact_load_duration_milliseconds",
		Help:    "Histogram of artifact load duration in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"artifact", "version", "status"})

	collectors := []prometheus.Collector{
		m.stageLatency,
		m.stageTotal,
		m.batchProcessingDuration,
		m.batchItemsTotal,
		m.cacheAccessTotal,
		m.pipelineTotal,
		m.pipelineDuration,
		m.artifactLoadDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *prometheusIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	cached := "false"
	if p.Cached {
		cached = "true"
	}
	m.stageLatency.WithLabelValues(p.Stage, p.Task, cached).Observe(p.DurationMs)
	m.stageTotal.WithLabelValues(p.Stage, statusLabel(p.Success)).Inc()

	m.latencyHist.Observe(p.DurationMs)
	m.totalInf.Add(1)
	if p.Success {
		m.successInf.Add(1)
	} else {
		m.failedInf.Add(1)
	}
}

func (m *prometheusIntelligenceMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.batchProcessingDuration.WithLabelValues(p.BatchName).Observe(p.TotalDurationMs)
	m.batchItemsTotal.WithLabelValues(p.BatchName, "success").Add(float64(p.SuccessItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "failed").Add(float64(p.FailedItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "timeout").Add(float64(p.TimeoutItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "cancelled").Add(float64(p.CancelledItems))
}

func (m *prometheusIntelligenceMetrics) RecordCacheAccess(_ context.Context, hit bool, stage string) {
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheAccessTotal.WithLabelValues(stage, result).Inc()
}

func (m *prometheusIntelligenceMetrics) RecordPipelineRun(_ context.Context, branch string, durationMs float64, success bool) {
	m.pipelineTotal.WithLabelValues(branch, statusLabel(success)).Inc()
	m.pipelineDuration.WithLabelValues(branch).Observe(durationMs)
	m.runs.Add(1)
	if !success {
		m.runFailures.Add(1)
	}
	v, _ := m.branchCounts.LoadOrStore(branch, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (m *prometheusIntelligenceMetrics) RecordModelLoad(_ context.Context, artifact, version string, durationMs float64, success bool) {
	m.artifactLoadDuration.WithLabelValues(artifact, version, statusLabel(success)).Observe(durationMs)
}

func (m *prometheusIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *prometheusIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	total := m.totalInf.Load()

	var avgLatency float64
	if total > 0 {
		avgLatency = m.latencyHist.Sum() / float64(total)
	}

	branches := make(map[string]int64)
	m.branchCounts.Range(func(key, value any) bool {
		branches[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return &IntelligenceStats{
		TotalInferences:       total,
		SuccessfulInferences:  m.successInf.Load(),
		FailedInferences:      m.failedInf.Load(),
		AvgInferenceLatencyMs: avgLatency,
		P50LatencyMs:          m.latencyHist.Percentile(50),
		P95LatencyMs:          m.latencyHist.Percentile(95),
		P99LatencyMs:          m.latencyHist.Percentile(99),
		CacheHitRate:          hitRate(m.cacheHits.Load(), m.cacheMisses.Load()),
		PipelineRuns:          m.runs.Load(),
		PipelineFailures:      m.runFailures.Load(),
		BranchCounts:          branches,
	}
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopIntelligenceMetrics struct{}

// NewNoopIntelligenceMetrics returns a no-op metrics implementation.
func NewNoopIntelligenceMetrics() IntelligenceMetrics {
	return &noopIntelligenceMetrics{}
}

func (n *noopIntelligenceMetrics) RecordInference(context.Context, *InferenceMetricParams)        {}
func (n *noopIntelligenceMetrics) RecordBatchProcessing(context.Context, *BatchMetricParams)      {}
func (n *noopIntelligenceMetrics) RecordCacheAccess(context.Context, bool, string)                {}
func (n *noopIntelligenceMetrics) RecordPipelineRun(context.Context, string, float64, bool)       {}
func (n *noopIntelligenceMetrics) RecordModelLoad(context.Context, string, string, float64, bool) {}

func (n *noopIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return newLatencyHistogram()
}

func (n *noopIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	return &IntelligenceStats{BranchCounts: map[string]int64{}}
}

// ---------------------------------------------------------------------------
// In-memory implementation (for testing)
// ---------------------------------------------------------------------------

// InMemoryIntelligenceMetrics keeps every recorded event for inspection in
// tests.
type InMemoryIntelligenceMetrics struct {
	mu sync.Mutex

	inferences  []*InferenceMetricParams
	batches     []*BatchMetricParams
	cacheHits   int64
	cacheMisses int64
	runs        []PipelineRunRecord
	loads       []ModelLoadRecord
	latencyHist *latencyHistogram
}

// ModelLoadRecord is one recorded artifact load.
type ModelLoadRecord struct {
	Artifact   string
	Version    string
	DurationMs float64
	Success    bool
	Timestamp  time.Time
}

// PipelineRunRecord is one recorded pipeline run.
type PipelineRunRecord struct {
	Branch     string
	DurationMs float64
	Success    bool
}

// NewInMemoryIntelligenceMetrics returns an in-memory metrics implementation
// suitable for unit tests.
func NewInMemoryIntelligenceMetrics() *InMemoryIntelligenceMetrics {
	return &InMemoryIntelligenceMetrics{
		latencyHist: newLatencyHistogram(),
	}
}

func (m *InMemoryIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.inferences = append(m.inferences, &cp)
	m.latencyHist.Observe(p.DurationMs)
}

func (m *InMemoryIntelligenceMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.batches = append(m.batches, &cp)
}

func (m *InMemoryIntelligenceMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *InMemoryIntelligenceMetrics) RecordPipelineRun(_ context.Context, branch string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, PipelineRunRecord{Branch: branch, DurationMs: durationMs, Success: success})
}

func (m *InMemoryIntelligenceMetrics) RecordModelLoad(_ context.Context, artifact, version string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, ModelLoadRecord{
		Artifact:   artifact,
		Version:    version,
		DurationMs: durationMs,
		Success:    success,
		Timestamp:  time.Now(),
	})
}

func (m *InMemoryIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *InMemoryIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := int64(len(m.inferences))
	var success, failed int64
	var sumLatency float64
	for _, inf := range m.inferences {
		if inf.Success {
			success++
		} else {
			failed++
		}
		sumLatency += inf.DurationMs
	}

	var avgLatency float64
	if total > 0 {
		avgLatency = sumLatency / float64(total)
	}

	branches := make(map[string]int64)
	var runFailures int64
	for _, r := range m.runs {
		branches[r.Branch]++
		if !r.Success {
			runFailures++
		}
	}

	return &IntelligenceStats{
		TotalInferences:       total,
		SuccessfulInferences:  success,
		FailedInferences:      failed,
		AvgInferenceLatencyMs: avgLatency,
		P50LatencyMs:          m.latencyHist.Percentile(50),
		P95LatencyMs:          m.latencyHist.Percentile(95),
		P99LatencyMs:          m.latencyHist.Percentile(99),
		CacheHitRate:          hitRate(m.cacheHits, m.cacheMisses),
		PipelineRuns:          int64(len(m.runs)),
		PipelineFailures:      runFailures,
		BranchCounts:          branches,
	}
}

// Inferences returns a copy of all recorded stage evaluations.
func (m *InMemoryIntelligenceMetrics) Inferences() []InferenceMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InferenceMetricParams, len(m.inferences))
	for i, p := range m.inferences {
		out[i] = *p
	}
	return out
}

// Batches returns a copy of all recorded batch events.
func (m *InMemoryIntelligenceMetrics) Batches() []BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BatchMetricParams, len(m.batches))
	for i, p := range m.batches {
		out[i] = *p
	}
	return out
}

// CacheHits returns the number of cache hits recorded.
func (m *InMemoryIntelligenceMetrics) CacheHits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits
}

// CacheMisses returns the number of cache misses recorded.
func (m *InMemoryIntelligenceMetrics) CacheMisses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheMisses
}

// PipelineRuns returns a copy of all recorded pipeline runs.
func (m *InMemoryIntelligenceMetrics) PipelineRuns() []PipelineRunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PipelineRunRecord(nil), m.runs...)
}

// ModelLoads returns a copy of all artifact load records.
func (m *InMemoryIntelligenceMetrics) ModelLoads() []ModelLoadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelLoadRecord(nil), m.loads...)
}

// ---------------------------------------------------------------------------
// latencyHistogram: in-memory, percentile-capable, safe for concurrent use
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.RWMutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{
		samples: make([]float64, 0, 1024),
	}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

// Percentile returns the value at percentile p (0–100) using linear
// interpolation between the two nearest ranks.
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n == 0 {
		return 0
	}
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}
	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}

	// PERCENTILE.INC: rank = p/100 * (n-1)
	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[upper]-h.samples[lower])
}

func (h *latencyHistogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// compile-time interface checks
var (
	_ IntelligenceMetrics = (*prometheusIntelligenceMetrics)(nil)
	_ IntelligenceMetrics = (*noopIntelligenceMetrics)(nil)
	_ IntelligenceMetrics = (*InMemoryIntelligenceMetrics)(nil)
	_ LatencyHistogram    = (*latencyHistogram)(nil)
)
