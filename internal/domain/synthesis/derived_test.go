package synthesis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, f *FeatureFrame, name string) float64 {
	t.Helper()
	v, ok := f.Get(name)
	require.True(t, ok, "column %q missing", name)
	return v
}

func TestComputeDerived_ReferenceScenario(t *testing.T) {
	m := Measurements{SurfaceArea: 1200, LimitingAdsorption: 10.5, NitrogenEnergy: 6.5, TotalPoreVolume: 0.45, MesoporeSurface: 200}
	f := ComputeDerived(m)

	assert.InDelta(t, 0.3643, get(t, f, ColMicroporeVolume), 1e-4)
	assert.InDelta(t, 19.697, get(t, f, ColBenzeneEnergy), 1e-3)
	assert.InDelta(t, 0.609, get(t, f, ColPoreHalfWidth), 1e-3)
	assert.InDelta(t, 0.0857, get(t, f, ColMesoporeVolume), 1e-4)

	assert.Equal(t, BaseFeatures, f.Names())
}

func TestComputeDerived_CompositeFeatures(t *testing.T) {
	m := Measurements{SurfaceArea: 1200, LimitingAdsorption: 10.5, NitrogenEnergy: 6.5, TotalPoreVolume: 0.45, MesoporeSurface: 200}
	f := ComputeDerived(m)

	rt := 8.314 / 1000 * 298.15
	w0 := 0.034692 * 10.5
	e0 := 6.5 / 0.33
	assert.InDelta(t, 6.5*0.45, get(t, f, ColAdsorptionPotential), 1e-12)
	assert.InDelta(t, 10.5/1200, get(t, f, ColCapacityDensity), 1e-12)
	assert.InDelta(t, math.Exp(6.5/rt), get(t, f, ColKEquilibrium), 1e-9)
	assert.InDelta(t, -6.5, get(t, f, ColDeltaG), 1e-9)
	assert.InDelta(t, 1200/w0, get(t, f, ColSurfaceMicroVolRatio), 1e-9)
	assert.InDelta(t, 0.33, get(t, f, ColAdsorptionEnergyRatio), 1e-12)
	assert.InDelta(t, 1200*6.5, get(t, f, ColSBETxE), 1e-9)
	assert.InDelta(t, 12/e0*w0, get(t, f, ColX0W0), 1e-12)
	assert.InDelta(t, math.Pow(2.3*8.314/6.5, 2), get(t, f, ColBMicropore), 1e-12)
}

func TestComputeDerived_Identities(t *testing.T) {
	inputs := []Measurements{
		{SurfaceArea: 100, LimitingAdsorption: 0, NitrogenEnergy: 0, TotalPoreVolume: 0, MesoporeSurface: 0},
		{SurfaceArea: 350, LimitingAdsorption: 3.2, NitrogenEnergy: 11.1, TotalPoreVolume: 0.05, MesoporeSurface: 12},
		{SurfaceArea: 2500, LimitingAdsorption: 42, NitrogenEnergy: 25, TotalPoreVolume: 2.1, MesoporeSurface: 900},
	}
	for _, m := range inputs {
		f := ComputeDerived(m)
		w0 := get(t, f, ColMicroporeVolume)
		assert.Equal(t, 0.034692*m.LimitingAdsorption, w0)
		assert.Equal(t, m.TotalPoreVolume-w0, get(t, f, ColMesoporeVolume))
	}
}

func TestComputeDerived_ZeroEnergyUsesEpsilon(t *testing.T) {
	f := ComputeDerived(Measurements{SurfaceArea: 500, LimitingAdsorption: 4, NitrogenEnergy: 0, TotalPoreVolume: 0.3})

	assert.Equal(t, EnergyEpsilon, get(t, f, ColBenzeneEnergy))
	x0 := get(t, f, ColPoreHalfWidth)
	assert.False(t, math.IsInf(x0, 0) || math.IsNaN(x0))
	assert.Equal(t, 12/EnergyEpsilon, x0)
	assert.True(t, math.IsInf(get(t, f, ColBMicropore), 1))
}

func TestComputeDerived_NegativeMesoporeVolumeAllowed(t *testing.T) {
	f := ComputeDerived(Measurements{SurfaceArea: 800, LimitingAdsorption: 20, NitrogenEnergy: 5, TotalPoreVolume: 0.1})
	assert.Less(t, get(t, f, ColMesoporeVolume), 0.0)
}

func TestComputeDerived_Deterministic(t *testing.T) {
	m := Measurements{SurfaceArea: 1234.5, LimitingAdsorption: 7.7, NitrogenEnergy: 9.9, TotalPoreVolume: 0.61, MesoporeSurface: 88}
	a, b := ComputeDerived(m), ComputeDerived(m)
	for _, n := range BaseFeatures {
		assert.Equal(t, math.Float64bits(get(t, a, n)), math.Float64bits(get(t, b, n)), n)
	}
}

func TestApproximateTotalPoreVolume(t *testing.T) {
	assert.InDelta(t, 1.2*0.034692*10.5, ApproximateTotalPoreVolume(10.5), 1e-15)
	assert.Equal(t, 0.0, ApproximateTotalPoreVolume(0))
}

func TestMeasurements_Inputs(t *testing.T) {
	m := Measurements{SurfaceArea: 1, LimitingAdsorption: 2, NitrogenEnergy: 3, TotalPoreVolume: 4, MesoporeSurface: 5}
	assert.Equal(t, map[string]float64{
		"SBAT_m2_gr": 1, "a0_mmoll_gr": 2, "E_kDg_moll": 3, "Ws_cm3_gr": 4, "Sme_m2_gr": 5,
	}, m.Inputs())
}
