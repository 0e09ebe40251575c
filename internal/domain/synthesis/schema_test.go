package synthesis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_FeatureCounts(t *testing.T) {
	cases := map[Stage]int{
		StageMetalBinary: 18,
		StageMajorMetal:  18,
		StageMinorMetal:  18,
		StageLigand:      27,
		StageSolvent:     43,
		StageSaltMass:    49,
		StageAcidMass:    51,
		StageVsyn:        53,
		StageTsyn:        54,
		StageTdry:        55,
		StageTreg:        56,
	}
	for stage, n := range cases {
		s, ok := Schema(stage)
		require.True(t, ok, stage)
		assert.Len(t, s.Features, n, stage)
	}
}

func TestSchema_EachStageExtendsThePrevious(t *testing.T) {
	order := []Stage{StageMetalBinary, StageLigand, StageSolvent, StageSaltMass, StageAcidMass, StageVsyn, StageTsyn, StageTdry, StageTreg}
	for i := 1; i < len(order); i++ {
		prev, cur := MustSchema(order[i-1]), MustSchema(order[i])
		if diff := cmp.Diff(prev.Features, cur.Features[:len(prev.Features)]); diff != "" {
			t.Errorf("%s does not extend %s (-prev +cur):\n%s", cur.Stage, prev.Stage, diff)
		}
	}
}

func TestSchema_ArtifactKeys(t *testing.T) {
	assert.Equal(t, "binary_metals", MustSchema(StageMetalBinary).ScalerKey)
	assert.Empty(t, MustSchema(StageMetalBinary).EncoderKey)
	assert.Empty(t, MustSchema(StageSaltMass).EncoderKey)

	assert.Equal(t, []string{"metal_binary", "major_metal", "minor_metal", "ligand", "solvent",
		"salt_mass", "acid_mass", "vsyn", "tsyn", "tdry", "treg"}, ModelKeys())
	assert.Equal(t, []string{"binary_metals", "major_metal", "minor_metal", "ligand", "solvent",
		"salt_mass", "acid_mass", "vsyn", "tsyn", "tdry", "treg"}, ScalerKeys())
	assert.Equal(t, []string{"major_metal", "minor_metal", "ligand", "solvent", "tsyn", "tdry", "treg"}, EncoderKeys())
}

func TestSchema_ReturnsCopies(t *testing.T) {
	s := MustSchema(StageLigand)
	s.Features[0] = "tampered"
	s.Categorical[0] = "tampered"

	fresh := MustSchema(StageLigand)
	assert.Equal(t, ColMicroporeVolume, fresh.Features[0])
	assert.Equal(t, "Металл_Al", fresh.Categorical[0])
	assert.Equal(t, ColMicroporeVolume, MustSchema(StageSolvent).Features[0])
}

func TestSchema_NumericFeatures(t *testing.T) {
	s := MustSchema(StageSolvent)
	num := s.NumericFeatures()
	assert.Len(t, num, len(s.Features)-9)
	for _, c := range num {
		assert.False(t, s.IsCategorical(c), c)
	}
	assert.Contains(t, num, ColSaltMolarMass)
	assert.NotContains(t, num, "Лиганд_BDC")
}

func TestSchema_CacheType(t *testing.T) {
	assert.Equal(t, "MetalClassifier", MustSchema(StageMinorMetal).CacheType())
	assert.Equal(t, "TdryClassifier", MustSchema(StageTdry).CacheType())
	assert.Equal(t, "VsynRegressor", MustSchema(StageVsyn).CacheType())
	assert.True(t, MustSchema(StageMetalBinary).IsClassifier())
	assert.False(t, MustSchema(StageAcidMass).IsClassifier())
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" Tsyn ")
	require.NoError(t, err)
	assert.Equal(t, StageTsyn, s)

	_, err = ParseStage("pressure")
	assert.Error(t, err)
}

func TestSchema_Unknown(t *testing.T) {
	_, ok := Schema("pressure")
	assert.False(t, ok)
	assert.Panics(t, func() { MustSchema("pressure") })
}
