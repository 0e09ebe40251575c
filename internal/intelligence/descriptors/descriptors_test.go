package descriptors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
)

func TestDescribeMetal(t *testing.T) {
	p := NewStaticProvider()

	got := p.DescribeMetal("Cu")
	require.Len(t, got, 3)
	require.NotNil(t, got[synthesis.ColMetalMolecularWeight])
	assert.Equal(t, synthesis.MetalAtomicWeight["Cu"], *got[synthesis.ColMetalMolecularWeight])
	assert.Equal(t, synthesis.MetalIonicRadius["Cu"], *got[synthesis.ColMetalIonicRadius])
	assert.Equal(t, synthesis.MetalElectronegativity["Cu"], *got[synthesis.ColMetalElectronegativity])
}

func TestDescribeLigand_CoversEveryColumn(t *testing.T) {
	p := NewStaticProvider()
	for name := range synthesis.LigandSMILES {
		got := p.DescribeLigand(name)
		require.Len(t, got, len(synthesis.LigandDescriptorColumns), name)
		for _, col := range synthesis.LigandDescriptorColumns {
			assert.NotNil(t, got[col], "%s %s", name, col)
		}
	}

	bdc := p.DescribeLigand("BDC")
	assert.Equal(t, 8.0, *bdc["carbon_atoms (ligand)"])
	assert.Equal(t, 0.0, *bdc["nitrogen_atoms (ligand)"])
	amino := p.DescribeLigand("NH2-BDC")
	assert.Equal(t, 1.0, *amino["nitrogen_atoms (ligand)"])
}

func TestDescribeSolvent_AveragesMixture(t *testing.T) {
	p := NewStaticProvider()

	dmf := p.DescribeSolvent("ДМФА")
	assert.InDelta(t, 73.095, *dmf[synthesis.ColSolventMolWt], 1e-9)

	mix := p.DescribeSolvent("ДМФА/Этанол/Вода")
	assert.InDelta(t, (73.095+46.069+18.015)/3, *mix[synthesis.ColSolventMolWt], 1e-9)
	assert.InDelta(t, 1.0/3, *mix[synthesis.ColSolventHDonors], 1e-9)
	assert.InDelta(t, 2.0/3, *mix[synthesis.ColSolventHAcceptors], 1e-9)

	// unknown components are skipped
	partial := p.DescribeSolvent("ДМФА/Толуол")
	assert.InDelta(t, 73.095, *partial[synthesis.ColSolventMolWt], 1e-9)
}

func TestUnknownSubstances_YieldNulls(t *testing.T) {
	p := NewStaticProvider()

	for name, got := range map[string]map[string]*float64{
		"metal":   p.DescribeMetal("Unobtainium"),
		"ligand":  p.DescribeLigand("XYZ"),
		"solvent": p.DescribeSolvent("Толуол/Гексан"),
	} {
		require.NotEmpty(t, got, name)
		for col, v := range got {
			assert.Nil(t, v, "%s %s", name, col)
		}
	}
	assert.Len(t, p.DescribeLigand("XYZ"), len(synthesis.LigandDescriptorColumns))
}

func TestStaticProvider_Add(t *testing.T) {
	p := NewStaticProvider()
	p.AddSolvent("Толуол", SolventDescriptor{MolWt: 92.141, LogP: 2.3, NumHAcceptors: 0})
	p.AddLigand("NDC", LigandDescriptor{CarbonAtoms: 12})
	p.AddMetal("Co", MetalDescriptor{AtomicWeight: 58.933})

	assert.InDelta(t, 92.141, *p.DescribeSolvent("Толуол")[synthesis.ColSolventMolWt], 1e-9)
	assert.Equal(t, 12.0, *p.DescribeLigand("NDC")["carbon_atoms (ligand)"])
	assert.Equal(t, 58.933, *p.DescribeMetal(" Co ")[synthesis.ColMetalMolecularWeight])
}

func TestStaticProvider_NormalisesNames(t *testing.T) {
	p := NewStaticProvider()
	p.AddSolvent("Уксусный ангидрид", SolventDescriptor{MolWt: 102.09})

	// "й" spelled as "и" followed by a combining breve.
	decomposed := "Уксусны\u0438\u0306 ангидрид"
	got := p.DescribeSolvent(" " + decomposed + " ")
	require.NotNil(t, got[synthesis.ColSolventMolWt])
	assert.InDelta(t, 102.09, *got[synthesis.ColSolventMolWt], 1e-9)
}
