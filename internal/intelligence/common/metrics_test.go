package common

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusIntelligenceMetrics_Success(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewPrometheusIntelligenceMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusIntelligenceMetrics(registry)
	assert.NoError(t, err)

	_, err = NewPrometheusIntelligenceMetrics(registry)
	assert.Error(t, err)
}

func TestPrometheus_RecordInference(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordInference(ctx, &InferenceMetricParams{Stage: "ligand", Task: "classification", DurationMs: 4, Success: true})
	m.RecordInference(ctx, &InferenceMetricParams{Stage: "ligand", Task: "classification", DurationMs: 8, Success: false})
	m.RecordInference(ctx, nil)

	pm := m.(*prometheusIntelligenceMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("ligand", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("ligand", "failure")))

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalInferences)
	assert.Equal(t, int64(1), stats.FailedInferences)
	assert.InDelta(t, 6.0, stats.AvgInferenceLatencyMs, 1e-9)
	assert.Equal(t, int64(2), m.GetInferenceLatencyHistogram().Count())
}

func TestPrometheus_PipelineAndCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusIntelligenceMetrics(registry)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordPipelineRun(ctx, "Cu-Al-Fe", 12, true)
	m.RecordPipelineRun(ctx, "Cu-Al-Fe", 15, true)
	m.RecordPipelineRun(ctx, "La-Zn-Zr", 9, false)
	m.RecordCacheAccess(ctx, true, "ligand")
	m.RecordCacheAccess(ctx, false, "ligand")
	m.RecordCacheAccess(ctx, false, "tsyn")
	m.RecordModelLoad(ctx, "model/ligand", "v1", 3, true)

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(3), stats.PipelineRuns)
	assert.Equal(t, int64(1), stats.PipelineFailures)
	assert.Equal(t, map[string]int64{"Cu-Al-Fe": 2, "La-Zn-Zr": 1}, stats.BranchCounts)
	assert.InDelta(t, 1.0/3.0, stats.CacheHitRate, 1e-9)

	pm := m.(*prometheusIntelligenceMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheAccessTotal.WithLabelValues("tsyn", "miss")))

	n, err := testutil.GatherAndCount(registry, metricsPrefix+"artifact_load_duration_milliseconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInMemory_RecordsEverything(t *testing.T) {
	m := NewInMemoryIntelligenceMetrics()
	ctx := context.Background()

	m.RecordInference(ctx, &InferenceMetricParams{Stage: "tsyn", ModelKey: "tsyn", DurationMs: 10, Success: true})
	m.RecordInference(ctx, &InferenceMetricParams{Stage: "tsyn", DurationMs: 30, Success: true, Cached: true})
	m.RecordBatchProcessing(ctx, &BatchMetricParams{BatchName: "recipes", TotalItems: 3, SuccessItems: 2})
	m.RecordCacheAccess(ctx, true, "tsyn")
	m.RecordPipelineRun(ctx, "La-Zn-Zr", 40, true)
	m.RecordModelLoad(ctx, "scaler/tsyn", "v1", 1.5, true)

	require.Len(t, m.Inferences(), 2)
	assert.Equal(t, "tsyn", m.Inferences()[0].ModelKey)
	assert.True(t, m.Inferences()[1].Cached)
	require.Len(t, m.Batches(), 1)
	assert.Equal(t, "recipes", m.Batches()[0].BatchName)
	assert.Equal(t, int64(1), m.CacheHits())
	assert.Zero(t, m.CacheMisses())
	assert.Equal(t, []PipelineRunRecord{{Branch: "La-Zn-Zr", DurationMs: 40, Success: true}}, m.PipelineRuns())
	require.Len(t, m.ModelLoads(), 1)
	assert.Equal(t, "scaler/tsyn", m.ModelLoads()[0].Artifact)

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalInferences)
	assert.InDelta(t, 20.0, stats.AvgInferenceLatencyMs, 1e-9)
	assert.InDelta(t, 20.0, stats.P50LatencyMs, 1e-9)
	assert.Equal(t, 1.0, stats.CacheHitRate)
	assert.Equal(t, int64(1), stats.BranchCounts["La-Zn-Zr"])
}

func TestNoop_AllMethods_NoPanic(t *testing.T) {
	m := NewNoopIntelligenceMetrics()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordInference(ctx, &InferenceMetricParams{})
		m.RecordBatchProcessing(ctx, &BatchMetricParams{})
		m.RecordCacheAccess(ctx, true, "ligand")
		m.RecordPipelineRun(ctx, "Cu-Al-Fe", 1, true)
		m.RecordModelLoad(ctx, "model/ligand", "v1", 1, true)
	})
	assert.NotNil(t, m.GetCurrentStats())
	assert.NotNil(t, m.GetInferenceLatencyHistogram())
}

func TestLatencyHistogram_Percentile(t *testing.T) {
	h := newLatencyHistogram()
	assert.Zero(t, h.Percentile(50))

	for _, v := range []float64{5, 1, 4, 2, 3} {
		h.Observe(v)
	}
	assert.Equal(t, int64(5), h.Count())
	assert.Equal(t, 15.0, h.Sum())
	assert.Equal(t, 1.0, h.Percentile(0))
	assert.Equal(t, 3.0, h.Percentile(50))
	assert.Equal(t, 5.0, h.Percentile(100))
	assert.InDelta(t, 4.6, h.Percentile(90), 1e-9)
}
