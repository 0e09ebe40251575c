package synthesis

import "math"

// Measurements are the five raw adsorption characteristics a prediction starts
// from.
type Measurements struct {
	SurfaceArea        float64 `json:"sbet"` // SБЭТ, m²/g
	LimitingAdsorption float64 `json:"a0"`   // a0, mmol/g
	NitrogenEnergy     float64 `json:"e"`    // E, kJ/mol
	TotalPoreVolume    float64 `json:"ws"`   // Ws, cm³/g
	MesoporeSurface    float64 `json:"sme"`  // Sme, m²/g
}

// Fingerprint keys of the raw inputs.
const (
	InputSurfaceArea        = "SBAT_m2_gr"
	InputLimitingAdsorption = "a0_mmoll_gr"
	InputNitrogenEnergy     = "E_kDg_moll"
	InputTotalPoreVolume    = "Ws_cm3_gr"
	InputMesoporeSurface    = "Sme_m2_gr"
)

// Inputs returns the raw values keyed by their fingerprint names.
func (m Measurements) Inputs() map[string]float64 {
	return map[string]float64{
		InputSurfaceArea:        m.SurfaceArea,
		InputLimitingAdsorption: m.LimitingAdsorption,
		InputNitrogenEnergy:     m.NitrogenEnergy,
		InputTotalPoreVolume:    m.TotalPoreVolume,
		InputMesoporeSurface:    m.MesoporeSurface,
	}
}

// MicroporeVolume returns W0 = 0.034692 · a0.
func MicroporeVolume(a0 float64) float64 { return MicroporeVolumeFactor * a0 }

// BenzeneEnergy returns E0 = E / 0.33, substituting EnergyEpsilon when E ≤ 0.
// The substitution is part of the trained feature definition; do not change
// it without retraining.
func BenzeneEnergy(e float64) float64 {
	if e <= 0 {
		return EnergyEpsilon
	}
	return e / BenzeneAffinity
}

// ApproximateTotalPoreVolume estimates Ws from a0 as 1.2 · W0 for callers
// that have no measured total pore volume.
func ApproximateTotalPoreVolume(a0 float64) float64 {
	return 1.2 * MicroporeVolume(a0)
}

// ComputeDerived builds the base feature frame from m. It is pure and never
// rejects its input: negative mesopore volume and infinite ratios (zero E or
// zero a0) are returned as computed. Range checks belong to Validate.
func ComputeDerived(m Measurements) *FeatureFrame {
	// Evaluated in float64, step by step, to reproduce the training features
	// bit for bit.
	r, t := float64(GasConstant), float64(ReferenceTemperature)
	rt := r / 1000 * t

	w0 := MicroporeVolume(m.LimitingAdsorption)
	e0 := BenzeneEnergy(m.NitrogenEnergy)
	x0 := 12 / e0
	wme := m.TotalPoreVolume - w0
	k := math.Exp(m.NitrogenEnergy / rt)

	f := NewFeatureFrame()
	f.Set(ColMicroporeVolume, w0)
	f.Set(ColBenzeneEnergy, e0)
	f.Set(ColPoreHalfWidth, x0)
	f.Set(ColLimitingAdsorption, m.LimitingAdsorption)
	f.Set(ColNitrogenEnergy, m.NitrogenEnergy)
	f.Set(ColSurfaceArea, m.SurfaceArea)
	f.Set(ColTotalPoreVolume, m.TotalPoreVolume)
	f.Set(ColMesoporeSurface, m.MesoporeSurface)
	f.Set(ColMesoporeVolume, wme)

	f.Set(ColAdsorptionPotential, m.NitrogenEnergy*m.TotalPoreVolume)
	f.Set(ColCapacityDensity, m.LimitingAdsorption/m.SurfaceArea)
	f.Set(ColKEquilibrium, k)
	f.Set(ColDeltaG, -r/1000*t*math.Log(k))
	f.Set(ColSurfaceMicroVolRatio, m.SurfaceArea/w0)
	f.Set(ColAdsorptionEnergyRatio, m.NitrogenEnergy/e0)
	f.Set(ColSBETxE, m.SurfaceArea*m.NitrogenEnergy)
	f.Set(ColX0W0, x0*w0)
	f.Set(ColBMicropore, math.Pow(2.3*r/m.NitrogenEnergy, 2))
	return f
}
