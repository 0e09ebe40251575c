package predictor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func TestInterpretBinary(t *testing.T) {
	tests := []struct {
		name   string
		kind   common.OutputKind
		out    []float64
		branch string
		prob   float64
	}{
		{"single logit", common.OutputLogits, []float64{0}, "Cu-Al-Fe", 0.5},
		{"negative logit", common.OutputLogits, []float64{-1}, "La-Zn-Zr", common.Sigmoid(-1)},
		{"two logits", common.OutputLogits, []float64{1, 1}, "Cu-Al-Fe", 0.5},
		{"probability", common.OutputProbabilities, []float64{0.49}, "La-Zn-Zr", 0.49},
		{"two probabilities", common.OutputProbabilities, []float64{0.2, 0.8}, "Cu-Al-Fe", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := interpretBinary(synthesis.StageMetalBinary, tt.kind, tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.branch, p.Value)
			assert.InDelta(t, tt.prob, p.Probabilities["Cu-Al-Fe"], 1e-12)
			assert.GreaterOrEqual(t, *p.Confidence, 0.5)
			assert.Nil(t, p.Numeric)
		})
	}

	_, err := interpretBinary(synthesis.StageMetalBinary, common.OutputLogits, []float64{1, 2, 3})
	assert.Equal(t, errors.ErrCodeArtifactShape, errors.GetCode(err))
	_, err = interpretBinary(synthesis.StageMetalBinary, common.OutputScalar, []float64{1})
	assert.Equal(t, errors.ErrCodeArtifactShape, errors.GetCode(err))
	_, err = interpretBinary(synthesis.StageMetalBinary, common.OutputProbabilities, []float64{math.NaN()})
	assert.Equal(t, errors.ErrCodeAIInferenceFailed, errors.GetCode(err))
}

func TestInterpretClassifier(t *testing.T) {
	enc, err := common.NewLabelEncoder([]string{"85", "100", "120", "150"})
	require.NoError(t, err)

	p, err := interpretClassifier(synthesis.StageTsyn, common.OutputProbabilities, []float64{0.1, 0.6, 0.2, 0.1}, enc)
	require.NoError(t, err)
	assert.Equal(t, "100", p.Value)
	require.NotNil(t, p.Numeric)
	assert.Equal(t, 100.0, *p.Numeric)
	assert.Equal(t, 0.6, *p.Confidence)
	assert.Equal(t, []synthesis.Alternative{
		{Label: "100", Probability: 0.6},
		{Label: "120", Probability: 0.2},
		{Label: "150", Probability: 0.1},
	}, p.Alternatives)
	assert.Len(t, p.Probabilities, 4)

	_, err = interpretClassifier(synthesis.StageTsyn, common.OutputLogits, []float64{1, 2}, enc)
	assert.Equal(t, errors.ErrCodeArtifactShape, errors.GetCode(err))
}

func TestInterpretClassifier_SingleOutputBinaryEncoder(t *testing.T) {
	enc, err := common.NewLabelEncoder([]string{"ДМФА", "ДМФА/Этанол/Вода"})
	require.NoError(t, err)

	p, err := interpretClassifier(synthesis.StageSolvent, common.OutputLogits, []float64{2}, enc)
	require.NoError(t, err)
	assert.Equal(t, "ДМФА/Этанол/Вода", p.Value)
	assert.Nil(t, p.Numeric)
	assert.InDelta(t, common.Sigmoid(2), *p.Confidence, 1e-12)
}

func TestInterpretRegression(t *testing.T) {
	p, err := interpretRegression(synthesis.StageSaltMass, []float64{1.23456})
	require.NoError(t, err)
	assert.Equal(t, 1.235, *p.Numeric)
	assert.Equal(t, "1.235", p.Value)
	assert.Nil(t, p.Confidence)

	_, err = interpretRegression(synthesis.StageSaltMass, []float64{1, 2})
	assert.Equal(t, errors.ErrCodeArtifactShape, errors.GetCode(err))
	_, err = interpretRegression(synthesis.StageSaltMass, []float64{math.Inf(1)})
	assert.Equal(t, errors.ErrCodeAIInferenceFailed, errors.GetCode(err))
}

func TestRank_TiesBreakByLabel(t *testing.T) {
	got := rank(map[string]float64{"b": 0.25, "a": 0.25, "c": 0.25, "d": 0.25})
	require.Len(t, got, TopAlternatives)
	assert.Equal(t, "a", got[0].Label)
	assert.Equal(t, "b", got[1].Label)
	assert.Equal(t, "c", got[2].Label)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.846, Round3(0.8456))
	assert.Equal(t, -1.235, Round3(-1.2345001))
	assert.Equal(t, 30.0, Round3(30.0004))
}
