// Package synthesis holds the MOF synthesis domain: the physical constant
// tables, the per-stage feature schemas, the derived-feature calculator and
// the recipe aggregate produced by the prediction pipeline.
package synthesis

import (
	"sort"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Gas constant (J/(mol·K)) and reference temperature (K) used by the derived
// thermodynamic features.
const (
	GasConstant          = 8.314
	ReferenceTemperature = 298.15
)

// MicroporeVolumeFactor converts limiting adsorption a0 (mmol/g) into
// micropore volume W0 (cm³/g).
const MicroporeVolumeFactor = 0.034692

// BenzeneAffinity converts nitrogen adsorption energy into benzene
// adsorption energy: E0 = E / BenzeneAffinity.
const BenzeneAffinity = 0.33

// EnergyEpsilon replaces a non-positive nitrogen energy when computing E0.
const EnergyEpsilon = 1e-6

// MetalMolarMasses is the molar mass (g/mol) of the hydrated salt used as the
// metal source for each metal.
var MetalMolarMasses = map[string]float64{
	"Cu": 242,
	"Zn": 297,
	"Al": 375,
	"Fe": 404,
	"Zr": 233,
	"Mg": 256,
	"La": 433,
	"Ce": 434,
	"Y":  383,
}

// LigandMolarMasses is the molar mass (g/mol) of each linker acid.
var LigandMolarMasses = map[string]float64{
	"BTC":     207,
	"BDC":     164,
	"NH2-BDC": 179,
	"BTB":     435,
}

// MetalIonicRadius is the average ionic radius in Å.
var MetalIonicRadius = map[string]float64{
	"Cu": 0.73,
	"Zn": 0.74,
	"Al": 0.53,
	"Fe": 0.65,
	"Zr": 0.72,
	"Mg": 0.72,
	"La": 1.06,
	"Ce": 1.01,
	"Y":  0.90,
}

// MetalElectronegativity is the Pauling electronegativity.
var MetalElectronegativity = map[string]float64{
	"Cu": 1.90,
	"Zn": 1.65,
	"Al": 1.61,
	"Fe": 1.83,
	"Zr": 1.33,
	"Mg": 1.31,
	"La": 1.10,
	"Ce": 1.12,
	"Y":  1.22,
}

// MetalAtomicWeight is the standard atomic weight in g/mol.
var MetalAtomicWeight = map[string]float64{
	"Cu": 63.546,
	"Zn": 65.38,
	"Al": 26.9815385,
	"Fe": 55.845,
	"Zr": 91.224,
	"Mg": 24.305,
	"La": 138.90547,
	"Ce": 140.116,
	"Y":  88.90584,
}

// LigandSMILES are the reference structures of the deprotonated linkers.
var LigandSMILES = map[string]string{
	"BTC":     "C1(=CC(=CC(=C1)C(=O)[O-])C(=O)[O-])C(=O)[O-]",
	"BDC":     "O=C([O-])C1=CC=C(C=C1)C(=O)[O-]",
	"NH2-BDC": "NC1=C(C=CC(=C1)C(=O)[O-])C(=O)[O-]",
	"BTB":     "c1cc(ccc1c2cc(cc(c2)c3ccc(cc3)C(=O)[O-])c4ccc(cc4)C(=O)[O-])C(=O)[O-]",
}

// SolventSMILES are the reference structures of the single-component
// solvents. Mixtures are written as '/'-separated component names.
var SolventSMILES = map[string]string{
	"ДМФА":        "O=CN(C)C",
	"Этанол":      "CCO",
	"Вода":        "O",
	"ДМСО":        "CS(=O)C",
	"Ацетонитрил": "CC#N",
}

// SaltMolarMass returns the salt molar mass for metal or an
// ErrCodeUnknownSubstance error. There is no default.
func SaltMolarMass(metal string) (float64, error) {
	m, ok := MetalMolarMasses[metal]
	if !ok {
		return 0, errors.UnknownSubstance("metal", metal)
	}
	return m, nil
}

// AcidMolarMass returns the acid molar mass for ligand or an
// ErrCodeUnknownSubstance error.
func AcidMolarMass(ligand string) (float64, error) {
	m, ok := LigandMolarMasses[ligand]
	if !ok {
		return 0, errors.UnknownSubstance("ligand", ligand)
	}
	return m, nil
}

// KnownMetals lists the metals of the molar-mass table in sorted order.
func KnownMetals() []string { return sortedKeys(MetalMolarMasses) }

// KnownLigands lists the ligands of the molar-mass table in sorted order.
func KnownLigands() []string { return sortedKeys(LigandMolarMasses) }

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) { sort.Strings(s) }
