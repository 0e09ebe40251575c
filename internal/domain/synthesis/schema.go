package synthesis

import (
	"fmt"
	"strings"
)

// Stage identifies one step of the prediction pipeline.
type Stage string

const (
	StageMetalBinary Stage = "metal_binary"
	StageMajorMetal  Stage = "major_metal"
	StageMinorMetal  Stage = "minor_metal"
	StageLigand      Stage = "ligand"
	StageSolvent     Stage = "solvent"
	StageSaltMass    Stage = "salt_mass"
	StageAcidMass    Stage = "acid_mass"
	StageVsyn        Stage = "vsyn"
	StageTsyn        Stage = "tsyn"
	StageTdry        Stage = "tdry"
	StageTreg        Stage = "treg"
)

func (s Stage) String() string { return string(s) }

// ParseStage accepts a stage identifier case-insensitively.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := schemas[st]; !ok {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// Task is the kind of output a stage model produces.
type Task int

const (
	TaskBinary Task = iota
	TaskClassification
	TaskRegression
)

func (t Task) String() string {
	switch t {
	case TaskBinary:
		return "binary"
	case TaskClassification:
		return "classification"
	case TaskRegression:
		return "regression"
	default:
		return fmt.Sprintf("Task(%d)", int(t))
	}
}

// StageSchema binds a stage to its ordered input columns and the artifact
// keys of its model, scaler and encoder. EncoderKey is empty for the binary
// and regression stages.
type StageSchema struct {
	Stage       Stage
	Task        Task
	Features    []string
	Categorical []string
	ModelKey    string
	ScalerKey   string
	EncoderKey  string
}

// NumericFeatures returns Features minus Categorical, in schema order.
func (s StageSchema) NumericFeatures() []string {
	cat := make(map[string]struct{}, len(s.Categorical))
	for _, c := range s.Categorical {
		cat[c] = struct{}{}
	}
	out := make([]string, 0, len(s.Features))
	for _, f := range s.Features {
		if _, ok := cat[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// IsCategorical reports whether column is passed to the model unscaled.
func (s StageSchema) IsCategorical(column string) bool {
	for _, c := range s.Categorical {
		if c == column {
			return true
		}
	}
	return false
}

// CacheType is the stage type name used to select a result-cache TTL.
func (s StageSchema) CacheType() string {
	switch s.Stage {
	case StageMetalBinary, StageMajorMetal, StageMinorMetal:
		return "MetalClassifier"
	case StageLigand:
		return "LigandClassifier"
	case StageSolvent:
		return "SolventClassifier"
	case StageSaltMass:
		return "SaltMassRegressor"
	case StageAcidMass:
		return "AcidMassRegressor"
	case StageVsyn:
		return "VsynRegressor"
	case StageTsyn:
		return "TsynClassifier"
	case StageTdry:
		return "TdryClassifier"
	case StageTreg:
		return "TregClassifier"
	}
	return "default"
}

// IsClassifier reports whether the stage resolves a categorical label.
func (s StageSchema) IsClassifier() bool { return s.Task != TaskRegression }

func (s StageSchema) clone() StageSchema {
	s.Features = append([]string(nil), s.Features...)
	s.Categorical = append([]string(nil), s.Categorical...)
	return s
}

// concat builds a fresh slice so schemas never share backing arrays.
func concat(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	metalFeatures   = concat(BaseFeatures)
	ligandFeatures  = concat(metalFeatures, MetalOneHotColumns, MetalDescriptorColumns)
	solventFeatures = concat(ligandFeatures,
		[]string{ColSaltMolarMass, ColAcidMolarMass},
		LigandOneHotColumns, LigandDescriptorColumns)
	saltFeatures = concat(solventFeatures, SolventOneHotColumns, SolventDescriptorColumns)
	acidFeatures = concat(saltFeatures, []string{ColSaltMass, ColSaltMoles})
	vsynFeatures = concat(acidFeatures, []string{ColAcidMass, ColAcidMoles})
	tsynFeatures = concat(vsynFeatures, []string{ColSynthesisVolume})
	tdryFeatures = concat(tsynFeatures, []string{ColSynthesisTemp})
	tregFeatures = concat(tdryFeatures, []string{ColDryingTemp})

	allOneHot = concat(MetalOneHotColumns, LigandOneHotColumns, SolventOneHotColumns)
)

var schemas = map[Stage]StageSchema{
	StageMetalBinary: {
		Stage:     StageMetalBinary,
		Task:      TaskBinary,
		Features:  metalFeatures,
		ModelKey:  "metal_binary",
		ScalerKey: "binary_metals",
	},
	StageMajorMetal: {
		Stage:      StageMajorMetal,
		Task:       TaskClassification,
		Features:   metalFeatures,
		ModelKey:   "major_metal",
		ScalerKey:  "major_metal",
		EncoderKey: "major_metal",
	},
	StageMinorMetal: {
		Stage:      StageMinorMetal,
		Task:       TaskClassification,
		Features:   metalFeatures,
		ModelKey:   "minor_metal",
		ScalerKey:  "minor_metal",
		EncoderKey: "minor_metal",
	},
	StageLigand: {
		Stage:       StageLigand,
		Task:        TaskClassification,
		Features:    ligandFeatures,
		Categorical: MetalOneHotColumns,
		ModelKey:    "ligand",
		ScalerKey:   "ligand",
		EncoderKey:  "ligand",
	},
	StageSolvent: {
		Stage:       StageSolvent,
		Task:        TaskClassification,
		Features:    solventFeatures,
		Categorical: concat(MetalOneHotColumns, LigandOneHotColumns),
		ModelKey:    "solvent",
		ScalerKey:   "solvent",
		EncoderKey:  "solvent",
	},
	StageSaltMass: {
		Stage:       StageSaltMass,
		Task:        TaskRegression,
		Features:    saltFeatures,
		Categorical: allOneHot,
		ModelKey:    "salt_mass",
		ScalerKey:   "salt_mass",
	},
	StageAcidMass: {
		Stage:       StageAcidMass,
		Task:        TaskRegression,
		Features:    acidFeatures,
		Categorical: allOneHot,
		ModelKey:    "acid_mass",
		ScalerKey:   "acid_mass",
	},
	StageVsyn: {
		Stage:       StageVsyn,
		Task:        TaskRegression,
		Features:    vsynFeatures,
		Categorical: allOneHot,
		ModelKey:    "vsyn",
		ScalerKey:   "vsyn",
	},
	StageTsyn: {
		Stage:       StageTsyn,
		Task:        TaskClassification,
		Features:    tsynFeatures,
		Categorical: allOneHot,
		ModelKey:    "tsyn",
		ScalerKey:   "tsyn",
		EncoderKey:  "tsyn",
	},
	StageTdry: {
		Stage:       StageTdry,
		Task:        TaskClassification,
		Features:    tdryFeatures,
		Categorical: allOneHot,
		ModelKey:    "tdry",
		ScalerKey:   "tdry",
		EncoderKey:  "tdry",
	},
	StageTreg: {
		Stage:       StageTreg,
		Task:        TaskClassification,
		Features:    tregFeatures,
		Categorical: allOneHot,
		ModelKey:    "treg",
		ScalerKey:   "treg",
		EncoderKey:  "treg",
	},
}

// Schema returns a copy of the schema for stage.
func Schema(stage Stage) (StageSchema, bool) {
	s, ok := schemas[stage]
	if !ok {
		return StageSchema{}, false
	}
	return s.clone(), true
}

// MustSchema is Schema for the built-in stages; it panics on an unknown one.
func MustSchema(stage Stage) StageSchema {
	s, ok := Schema(stage)
	if !ok {
		panic(fmt.Sprintf("synthesis: no schema for stage %q", stage))
	}
	return s
}

// PipelineOrder is the fixed execution order after the metal stages.
// The binary stage and one of the two branch stages always run first.
var PipelineOrder = []Stage{
	StageLigand, StageSolvent, StageSaltMass, StageAcidMass, StageVsyn,
	StageTsyn, StageTdry, StageTreg,
}

// AllStages lists every stage in execution order.
func AllStages() []Stage {
	return append([]Stage{StageMetalBinary, StageMajorMetal, StageMinorMetal}, PipelineOrder...)
}

// ModelKeys, ScalerKeys and EncoderKeys list the artifact keys referenced by
// the schemas in stage order.
func ModelKeys() []string { return collectKeys(func(s StageSchema) string { return s.ModelKey }) }
func ScalerKeys() []string { return collectKeys(func(s StageSchema) string { return s.ScalerKey }) }
func EncoderKeys() []string { return collectKeys(func(s StageSchema) string { return s.EncoderKey }) }

func collectKeys(pick func(StageSchema) string) []string {
	var out []string
	for _, st := range AllStages() {
		if k := pick(schemas[st]); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// OneHotColumn returns prefix_label.
func OneHotColumn(prefix, label string) string { return prefix + "_" + label }
