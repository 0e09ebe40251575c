package synthesis

// Column names are the names the trained scalers and models were fit on and
// must match them byte for byte. Several contain Cyrillic letters that look
// like Latin ones (х0, а0, Т, °С) and the nitrogen energy column has two
// spaces after the comma.

// Raw measurement and derived-feature columns.
const (
	ColMicroporeVolume       = "W0, см3/г"    // micropore volume W0, cm³/g
	ColBenzeneEnergy         = "E0, кДж/моль" // benzene adsorption energy E0, kJ/mol
	ColPoreHalfWidth         = "х0, нм"       // pore half-width x0, nm
	ColLimitingAdsorption    = "а0, ммоль/г"  // limiting adsorption a0, mmol/g
	ColNitrogenEnergy        = "E,  кДж/моль" // nitrogen adsorption energy E, kJ/mol
	ColSurfaceArea           = "SБЭТ, м2/г"   // BET specific surface area, m²/g
	ColTotalPoreVolume       = "Ws, см3/г"    // total pore volume Ws, cm³/g
	ColMesoporeSurface       = "Sme, м2/г"    // mesopore surface area, m²/g
	ColMesoporeVolume        = "Wme, см3/г"   // mesopore volume Wme, cm³/g
	ColAdsorptionPotential   = "Adsorption_Potential"
	ColCapacityDensity       = "Capacity_Density"
	ColKEquilibrium          = "K_equilibrium"
	ColDeltaG                = "Delta_G"
	ColSurfaceMicroVolRatio  = "SurfaceArea_MicroVol_Ratio"
	ColAdsorptionEnergyRatio = "Adsorption_Energy_Ratio"
	ColSBETxE                = "S_BET_E"
	ColX0W0                  = "x0_W0"
	ColBMicropore            = "B_micropore"
)

// Enrichment columns appended by the pipeline.
const (
	ColMetalMolecularWeight   = "Total molecular weight (metal)"
	ColMetalIonicRadius       = "Average ionic radius (metal)"
	ColMetalElectronegativity = "Average electronegativity (metal)"
	ColSaltMolarMass          = "Молярка_соли"
	ColAcidMolarMass          = "Молярка_кислоты"
	ColSolventMolWt           = "MolWt"
	ColSolventLogP            = "LogP"
	ColSolventHDonors         = "NumHDonors"
	ColSolventHAcceptors      = "NumHAcceptors"
	ColSaltMass               = "m (соли), г"
	ColSaltMoles              = "n_соли"
	ColAcidMass               = "m(кис-ты), г"
	ColAcidMoles              = "n_кислоты"
	ColSynthesisVolume        = "Vсин. (р-ля), мл"
	ColSynthesisTemp          = "Т.син., °С"
	ColDryingTemp             = "Т суш., °С"
)

// One-hot prefixes. A one-hot column is prefix + "_" + label.
const (
	MetalOneHotPrefix   = "Металл"
	LigandOneHotPrefix  = "Лиганд"
	SolventOneHotPrefix = "Растворитель"
)

// BaseFeatures are the nine raw-or-derived measurement columns followed by
// the nine composite features, in training order.
var BaseFeatures = []string{
	ColMicroporeVolume,
	ColBenzeneEnergy,
	ColPoreHalfWidth,
	ColLimitingAdsorption,
	ColNitrogenEnergy,
	ColSurfaceArea,
	ColTotalPoreVolume,
	ColMesoporeSurface,
	ColMesoporeVolume,
	ColAdsorptionPotential,
	ColCapacityDensity,
	ColKEquilibrium,
	ColDeltaG,
	ColSurfaceMicroVolRatio,
	ColAdsorptionEnergyRatio,
	ColSBETxE,
	ColX0W0,
	ColBMicropore,
}

// MetalOneHotColumns is the metal vocabulary seen in training.
var MetalOneHotColumns = []string{
	"Металл_Al",
	"Металл_Cu",
	"Металл_Fe",
	"Металл_La",
	"Металл_Zn",
	"Металл_Zr",
}

// MetalDescriptorColumns are the metal descriptors merged after the metal
// stage.
var MetalDescriptorColumns = []string{
	ColMetalMolecularWeight,
	ColMetalIonicRadius,
	ColMetalElectronegativity,
}

// LigandOneHotColumns is the ligand vocabulary seen in training.
var LigandOneHotColumns = []string{
	"Лиганд_BDC",
	"Лиганд_BTB",
	"Лиганд_BTC",
}

// LigandDescriptorColumns are the ligand descriptors merged after the ligand
// stage.
var LigandDescriptorColumns = []string{
	"carboxyl_groups (ligand)",
	"aromatic_rings (ligand)",
	"carbon_atoms (ligand)",
	"oxygen_atoms (ligand)",
	"nitrogen_atoms (ligand)",
	"molecular_weight (ligand)",
	"amino_groups (ligand)",
	"logP (ligand)",
	"TPSA (ligand)",
	"h_bond_acceptors (ligand)",
	"h_bond_donors (ligand)",
}

// SolventOneHotColumns is the solvent vocabulary seen in training.
var SolventOneHotColumns = []string{
	"Растворитель_ДМФА",
	"Растворитель_ДМФА/Этанол/Вода",
}

// SolventDescriptorColumns are the solvent descriptors merged after the
// solvent stage.
var SolventDescriptorColumns = []string{
	ColSolventMolWt,
	ColSolventLogP,
	ColSolventHDonors,
	ColSolventHAcceptors,
}
