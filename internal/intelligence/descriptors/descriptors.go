// Package descriptors supplies the physico-chemical descriptor columns merged
// into the feature frame after the metal, ligand and solvent stages.
//
// A Provider never fails: an unknown substance yields a map whose values are
// all nil, and the first stage that needs one of those columns reports
// ErrCodeFeatureMissing.
package descriptors

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
)

// Provider computes descriptor columns for a substance name.
type Provider interface {
	// DescribeMetal returns the three "(metal)" columns.
	DescribeMetal(metal string) map[string]*float64
	// DescribeLigand returns the eleven "(ligand)" columns.
	DescribeLigand(name string) map[string]*float64
	// DescribeSolvent returns MolWt, LogP, NumHDonors and NumHAcceptors,
	// averaged over the '/'-separated components of a mixture.
	DescribeSolvent(name string) map[string]*float64
}

// MetalDescriptor holds the tabulated properties of one metal.
type MetalDescriptor struct {
	AtomicWeight      float64
	IonicRadius       float64
	Electronegativity float64
}

// LigandDescriptor holds the tabulated properties of one linker, computed
// from its deprotonated reference structure.
type LigandDescriptor struct {
	CarboxylGroups  float64
	AromaticRings   float64
	CarbonAtoms     float64
	OxygenAtoms     float64
	NitrogenAtoms   float64
	MolecularWeight float64
	AminoGroups     float64
	LogP            float64
	TPSA            float64
	HBondAcceptors  float64
	HBondDonors     float64
}

// SolventDescriptor holds the tabulated properties of one pure solvent.
type SolventDescriptor struct {
	MolWt         float64
	LogP          float64
	NumHDonors    float64
	NumHAcceptors float64
}

// StaticProvider serves descriptors from in-memory tables keyed by the
// reference structure tables of the synthesis package. It is safe for
// concurrent use; Add* calls may register further substances.
type StaticProvider struct {
	mu       sync.RWMutex
	metals   map[string]MetalDescriptor
	ligands  map[string]LigandDescriptor
	solvents map[string]SolventDescriptor
}

// NewStaticProvider returns a provider loaded with the built-in tables.
func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{
		metals:   make(map[string]MetalDescriptor),
		ligands:  make(map[string]LigandDescriptor),
		solvents: make(map[string]SolventDescriptor),
	}
	for metal, w := range synthesis.MetalAtomicWeight {
		p.metals[metal] = MetalDescriptor{
			AtomicWeight:      w,
			IonicRadius:       synthesis.MetalIonicRadius[metal],
			Electronegativity: synthesis.MetalElectronegativity[metal],
		}
	}
	for name, d := range builtinLigands {
		if _, ok := synthesis.LigandSMILES[name]; ok {
			p.ligands[name] = d
		}
	}
	for name, d := range builtinSolvents {
		if _, ok := synthesis.SolventSMILES[name]; ok {
			p.solvents[name] = d
		}
	}
	return p
}

// AddMetal registers or replaces a metal.
func (p *StaticProvider) AddMetal(name string, d MetalDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metals[key(name)] = d
}

// AddLigand registers or replaces a ligand.
func (p *StaticProvider) AddLigand(name string, d LigandDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ligands[key(name)] = d
}

// AddSolvent registers or replaces a pure solvent.
func (p *StaticProvider) AddSolvent(name string, d SolventDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solvents[key(name)] = d
}

func (p *StaticProvider) DescribeMetal(metal string) map[string]*float64 {
	p.mu.RLock()
	d, ok := p.metals[key(metal)]
	p.mu.RUnlock()
	if !ok {
		return nulls(synthesis.MetalDescriptorColumns)
	}
	return map[string]*float64{
		synthesis.ColMetalMolecularWeight:   ptr(d.AtomicWeight),
		synthesis.ColMetalIonicRadius:       ptr(d.IonicRadius),
		synthesis.ColMetalElectronegativity: ptr(d.Electronegativity),
	}
}

func (p *StaticProvider) DescribeLigand(name string) map[string]*float64 {
	p.mu.RLock()
	d, ok := p.ligands[key(name)]
	p.mu.RUnlock()
	if !ok {
		return nulls(synthesis.LigandDescriptorColumns)
	}
	values := []float64{
		d.CarboxylGroups, d.AromaticRings, d.CarbonAtoms, d.OxygenAtoms,
		d.NitrogenAtoms, d.MolecularWeight, d.AminoGroups, d.LogP, d.TPSA,
		d.HBondAcceptors, d.HBondDonors,
	}
	out := make(map[string]*float64, len(values))
	for i, col := range synthesis.LigandDescriptorColumns {
		out[col] = ptr(values[i])
	}
	return out
}

// DescribeSolvent averages over the known components of a mixture such as
// "ДМФА/Этанол/Вода". Unknown components are skipped; if none is known the
// result is all nil.
func (p *StaticProvider) DescribeSolvent(name string) map[string]*float64 {
	var sum SolventDescriptor
	n := 0
	p.mu.RLock()
	for _, part := range strings.Split(name, "/") {
		d, ok := p.solvents[key(part)]
		if !ok {
			continue
		}
		sum.MolWt += d.MolWt
		sum.LogP += d.LogP
		sum.NumHDonors += d.NumHDonors
		sum.NumHAcceptors += d.NumHAcceptors
		n++
	}
	p.mu.RUnlock()
	if n == 0 {
		return nulls(synthesis.SolventDescriptorColumns)
	}
	k := float64(n)
	return map[string]*float64{
		synthesis.ColSolventMolWt:      ptr(sum.MolWt / k),
		synthesis.ColSolventLogP:       ptr(sum.LogP / k),
		synthesis.ColSolventHDonors:    ptr(sum.NumHDonors / k),
		synthesis.ColSolventHAcceptors: ptr(sum.NumHAcceptors / k),
	}
}

// key is the lookup form of a substance name: trimmed and NFC-normalised,
// so "Й" typed as И plus a combining breve matches the table entry.
func key(name string) string { return norm.NFC.String(strings.TrimSpace(name)) }

func ptr(v float64) *float64 { return &v }

func nulls(columns []string) map[string]*float64 {
	out := make(map[string]*float64, len(columns))
	for _, c := range columns {
		out[c] = nil
	}
	return out
}

var _ Provider = (*StaticProvider)(nil)
