package descriptors

// Values were computed once from the reference SMILES (carboxylate form)
// with the same descriptor definitions the training set used. The amino
// group count matches explicit N-H hydrogens only, which a SMILES without
// explicit hydrogens never has, so it is 0 for every linker.
var builtinLigands = map[string]LigandDescriptor{
	"BDC": {
		CarboxylGroups: 4, AromaticRings: 1, CarbonAtoms: 8, OxygenAtoms: 4,
		MolecularWeight: 164.116, LogP: -2.0612, TPSA: 80.26,
		HBondAcceptors: 4,
	},
	"BTC": {
		CarboxylGroups: 6, AromaticRings: 1, CarbonAtoms: 9, OxygenAtoms: 6,
		MolecularWeight: 207.117, LogP: -3.2571, TPSA: 120.39,
		HBondAcceptors: 6,
	},
	"NH2-BDC": {
		CarboxylGroups: 4, AromaticRings: 1, CarbonAtoms: 8, OxygenAtoms: 4,
		NitrogenAtoms: 1, MolecularWeight: 179.131, LogP: -2.4789, TPSA: 106.28,
		HBondAcceptors: 5, HBondDonors: 1,
	},
	"BTB": {
		CarboxylGroups: 6, AromaticRings: 4, CarbonAtoms: 27, OxygenAtoms: 6,
		MolecularWeight: 435.411, LogP: 1.2815, TPSA: 120.39,
		HBondAcceptors: 6,
	},
}

var builtinSolvents = map[string]SolventDescriptor{
	"ДМФА":        {MolWt: 73.095, LogP: -0.3711, NumHDonors: 0, NumHAcceptors: 1},
	"Этанол":      {MolWt: 46.069, LogP: -0.0014, NumHDonors: 1, NumHAcceptors: 1},
	"Вода":        {MolWt: 18.015, LogP: -0.8247, NumHDonors: 0, NumHAcceptors: 0},
	"ДМСО":        {MolWt: 78.136, LogP: 0.3848, NumHDonors: 0, NumHAcceptors: 1},
	"Ацетонитрил": {MolWt: 41.053, LogP: 0.5221, NumHDonors: 0, NumHAcceptors: 1},
}
