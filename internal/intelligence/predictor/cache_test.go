package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
)

func TestFingerprint_KnownDigests(t *testing.T) {
	m := synthesis.Measurements{
		SurfaceArea:        1200,
		LimitingAdsorption: 10.5,
		NitrogenEnergy:     6.5,
		TotalPoreVolume:    0.45,
		MesoporeSurface:    200,
	}
	// md5 of [["E_kDg_moll", 6.5], ["SBAT_m2_gr", 1200.0], ["Sme_m2_gr", 200.0], ["Ws_cm3_gr", 0.45], ["a0_mmoll_gr", 10.5]]
	assert.Equal(t, "40493b780ab92b135c33c9bb639624ad", Fingerprint(m.Inputs()))
	assert.Equal(t, "160081dc8960f6ea591ac32408818e44", Fingerprint(map[string]float64{"Молярка": 1}))
	assert.Equal(t, "d751713988987e9331980363e24189ce", Fingerprint(nil))
}

func TestFingerprint_SensitiveToValues(t *testing.T) {
	a := map[string]float64{"x": 1, "y": 2}
	b := map[string]float64{"y": 2, "x": 1}
	c := map[string]float64{"x": 1, "y": 2.0000001}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestReprFloat(t *testing.T) {
	for in, want := range map[float64]string{
		1200:     "1200.0",
		10.5:     "10.5",
		0.45:     "0.45",
		-3:       "-3.0",
		0.0001:   "0.0001",
		0.00001:  "1e-05",
		1e16:     "1e+16",
		1.5e300:  "1.5e+300",
		123456.7: "123456.7",
	} {
		assert.Equal(t, want, reprFloat(in), "%v", in)
	}
}

func result(value string) *CachedResult {
	conf := 0.9
	return &CachedResult{
		Prediction: synthesis.StagePrediction{
			Stage:         synthesis.StageLigand,
			Value:         value,
			Confidence:    &conf,
			Alternatives:  []synthesis.Alternative{{Label: value, Probability: conf}},
			Probabilities: map[string]float64{value: conf},
		},
		Version: "v1",
	}
}

func TestMemoryCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	_, ok := c.Get(ctx, "k", synthesis.StageLigand)
	assert.False(t, ok)

	c.Put(ctx, "k", synthesis.StageLigand, result("BTC"), time.Hour)
	got, ok := c.Get(ctx, "k", synthesis.StageLigand)
	require.True(t, ok)
	assert.Equal(t, "BTC", got.Prediction.Value)

	// stages do not share entries
	_, ok = c.Get(ctx, "k", synthesis.StageSolvent)
	assert.False(t, ok)

	// returned values are copies
	*got.Prediction.Confidence = 0
	got.Prediction.Probabilities["BTC"] = 0
	again, _ := c.Get(ctx, "k", synthesis.StageLigand)
	assert.Equal(t, 0.9, *again.Prediction.Confidence)
	assert.Equal(t, 0.9, again.Prediction.Probabilities["BTC"])

	st := c.Stats()
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, int64(1), st.Entries)

	c.Put(ctx, "k", synthesis.StageLigand, nil, time.Hour)
	assert.Equal(t, int64(1), c.Stats().Entries)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(0)
	c.now = func() time.Time { return now }

	c.Put(ctx, "short", synthesis.StageVsyn, result("1"), time.Minute)
	c.Put(ctx, "forever", synthesis.StageVsyn, result("2"), 0)

	now = now.Add(59 * time.Second)
	_, ok := c.Get(ctx, "short", synthesis.StageVsyn)
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "short", synthesis.StageVsyn)
	assert.False(t, ok)

	now = now.Add(1000 * time.Hour)
	_, ok = c.Get(ctx, "forever", synthesis.StageVsyn)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Entries)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(2)
	c.now = func() time.Time { return now }

	c.Put(ctx, "a", synthesis.StageTsyn, result("a"), time.Hour)
	c.Put(ctx, "b", synthesis.StageTsyn, result("b"), 2*time.Hour)
	// overwriting an existing key never evicts
	c.Put(ctx, "b", synthesis.StageTsyn, result("b2"), 2*time.Hour)
	assert.Equal(t, int64(0), c.Stats().Evictions)

	c.Put(ctx, "c", synthesis.StageTsyn, result("c"), 3*time.Hour)
	_, ok := c.Get(ctx, "a", synthesis.StageTsyn)
	assert.False(t, ok, "entry closest to expiry is evicted")
	got, ok := c.Get(ctx, "b", synthesis.StageTsyn)
	require.True(t, ok)
	assert.Equal(t, "b2", got.Prediction.Value)

	// expired entries go first
	now = now.Add(150 * time.Minute)
	c.Put(ctx, "d", synthesis.StageTsyn, result("d"), time.Minute)
	_, ok = c.Get(ctx, "c", synthesis.StageTsyn)
	assert.True(t, ok)
	_, ok = c.Get(ctx, "d", synthesis.StageTsyn)
	assert.True(t, ok)
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	c.Put(ctx, "a", synthesis.StageTdry, result("60"), time.Hour)
	require.NoError(t, c.Clear(ctx))
	_, ok := c.Get(ctx, "a", synthesis.StageTdry)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Entries)
}

func TestCacheStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, CacheStats{}.HitRate())
	assert.Equal(t, 0.75, CacheStats{Hits: 3, Misses: 1}.HitRate())
}
