package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
)

// ManifestName is where ArtifactSet places its manifest.
const ManifestName = "manifest.yaml"

// ArtifactSet is an in-memory artifact directory whose models ignore their
// input and always produce the same output. The defaults predict
//
//	Cu-Al-Fe / Cu, BTC, ДМФА, salt 1.234 g, acid 0.846 g, 30 ml,
//	Tsyn 120, Tdry 100, Treg 150
//
// Scalers are identity standard scalers over each stage's numeric columns.
type ArtifactSet struct {
	Version  string
	Models   map[string]interface{}
	Scalers  map[string]*common.Scaler
	Encoders map[string][]string
}

// Default fixture outputs.
const (
	FixtureSaltMass = 1.234
	FixtureAcidMass = 0.846
	FixtureVolume   = 30.0
)

// NewArtifactSet returns the default fixture.
func NewArtifactSet(version string) *ArtifactSet {
	a := &ArtifactSet{
		Version:  version,
		Models:   make(map[string]interface{}),
		Scalers:  make(map[string]*common.Scaler),
		Encoders: make(map[string][]string),
	}
	for _, st := range synthesis.AllStages() {
		s := synthesis.MustSchema(st)
		names := s.NumericFeatures()
		mean := make([]float64, len(names))
		scale := make([]float64, len(names))
		for i := range scale {
			scale[i] = 1
		}
		a.Scalers[s.ScalerKey] = &common.Scaler{
			Kind:         common.ScalerStandard,
			FeatureNames: names,
			Mean:         mean,
			Scale:        scale,
		}
	}

	width := len(synthesis.MustSchema(synthesis.StageMetalBinary).Features)
	a.Models["metal_binary"] = common.MLPSpec{
		Kind:   common.ModelKindMLP,
		Output: common.OutputLogits,
		Layers: []common.DenseLayer{{
			Weights: [][]float64{make([]float64, width)},
			Bias:    []float64{2},
		}},
	}
	a.SetClassifier(synthesis.StageMajorMetal, []string{"Al", "Cu", "Fe"}, 0, 2, 0.5)
	a.SetClassifier(synthesis.StageMinorMetal, []string{"La", "Zn", "Zr"}, 0, 2, 1)
	a.SetClassifier(synthesis.StageSolvent, []string{"ДМФА", "ДМФА/Этанол/Вода"}, 1.5, 0)
	a.SetClassifier(synthesis.StageTsyn, []string{"85", "100", "120"}, 0, 0, 3)
	a.SetClassifier(synthesis.StageTdry, []string{"60", "100", "150"}, 0, 3, 0)
	a.SetClassifier(synthesis.StageTreg, []string{"150", "200"}, 1, 0)

	ligand := synthesis.MustSchema(synthesis.StageLigand)
	a.Encoders[ligand.EncoderKey] = []string{"BDC", "BTB", "BTC", "NH2-BDC"}
	a.Models[ligand.ModelKey] = softprobTrees(len(ligand.Features), 0.1, 0, 2, 0)

	salt := synthesis.MustSchema(synthesis.StageSaltMass)
	leaf := 1.2344
	a.Models[salt.ModelKey] = common.TreeEnsembleSpec{
		Kind:        common.ModelKindTreeEnsemble,
		Objective:   common.ObjectiveSquaredError,
		NumFeatures: len(salt.Features),
		Trees:       []common.Tree{{Nodes: []common.TreeNode{{Leaf: &leaf}}}},
	}
	a.SetScalar(synthesis.StageAcidMass, 0.8456)
	a.SetScalar(synthesis.StageVsyn, 30.0004)
	return a
}

func softprobTrees(features int, leaves ...float64) common.TreeEnsembleSpec {
	spec := common.TreeEnsembleSpec{
		Kind:        common.ModelKindTreeEnsemble,
		Objective:   common.ObjectiveSoftprob,
		NumClass:    len(leaves),
		NumFeatures: features,
	}
	for i := range leaves {
		v := leaves[i]
		spec.Trees = append(spec.Trees, common.Tree{Class: i, Nodes: []common.TreeNode{{Leaf: &v}}})
	}
	return spec
}

func constantLinear(features int, output common.OutputKind, link string, intercept []float64) common.LinearSpec {
	coef := make([][]float64, len(intercept))
	for i := range coef {
		coef[i] = make([]float64, features)
	}
	return common.LinearSpec{
		Kind:      common.ModelKindLinear,
		Output:    output,
		Link:      link,
		Coef:      coef,
		Intercept: intercept,
	}
}

// SetClassifier replaces a classifier stage with constant logits over
// classes.
func (a *ArtifactSet) SetClassifier(stage synthesis.Stage, classes []string, logits ...float64) *ArtifactSet {
	s := synthesis.MustSchema(stage)
	a.Encoders[s.EncoderKey] = classes
	a.Models[s.ModelKey] = constantLinear(len(s.Features), common.OutputLogits, common.LinkIdentity, logits)
	return a
}

// SetBinaryLogit replaces the metal-group model with a constant logit.
// Positive values select Cu-Al-Fe.
func (a *ArtifactSet) SetBinaryLogit(z float64) *ArtifactSet {
	s := synthesis.MustSchema(synthesis.StageMetalBinary)
	a.Models[s.ModelKey] = constantLinear(len(s.Features), common.OutputLogits, common.LinkIdentity, []float64{z})
	return a
}

// SetScalar replaces a regression stage with a constant output.
func (a *ArtifactSet) SetScalar(stage synthesis.Stage, v float64) *ArtifactSet {
	s := synthesis.MustSchema(stage)
	a.Models[s.ModelKey] = constantLinear(len(s.Features), common.OutputScalar, common.LinkIdentity, []float64{v})
	return a
}

// Manifest returns the standard manifest for the set.
func (a *ArtifactSet) Manifest() *common.Manifest {
	return predictor.StandardManifest(a.Version)
}

// Files renders every artifact and the manifest keyed by relative path.
func (a *ArtifactSet) Files(t testing.TB) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	put := func(name string, v interface{}) {
		data, err := json.Marshal(v)
		require.NoError(t, err, name)
		out[name] = data
	}
	for k, m := range a.Models {
		put(common.ModelFile(k), m)
	}
	for k, s := range a.Scalers {
		put(common.ScalerFile(k), s)
	}
	for k, classes := range a.Encoders {
		put(common.EncoderFile(k), common.LabelEncoder{Classes: classes})
	}
	var buf bytes.Buffer
	require.NoError(t, a.Manifest().Encode(&buf))
	out[ManifestName] = buf.Bytes()
	return out
}

// FS returns the set as an in-memory file system.
func (a *ArtifactSet) FS(t testing.TB) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, data := range a.Files(t) {
		fsys[name] = &fstest.MapFile{Data: data}
	}
	return fsys
}

// WriteDir writes the set under dir.
func (a *ArtifactSet) WriteDir(t testing.TB, dir string) {
	t.Helper()
	for name, data := range a.Files(t) {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
}

// Registry loads the set through a StoreLoader.
func (a *ArtifactSet) Registry(t testing.TB) *common.ArtifactRegistry {
	t.Helper()
	loader, err := common.NewStoreLoader(common.NewFSStore(a.FS(t)), a.Manifest())
	require.NoError(t, err)
	reg, err := common.NewArtifactRegistry(loader, nil, nil)
	require.NoError(t, err)
	return reg
}

// SampleMeasurements is a typical microporous sample.
func SampleMeasurements() synthesis.Measurements {
	return synthesis.Measurements{
		SurfaceArea:        1200,
		LimitingAdsorption: 10.5,
		NitrogenEnergy:     6.5,
		TotalPoreVolume:    0.45,
		MesoporeSurface:    200,
	}
}
