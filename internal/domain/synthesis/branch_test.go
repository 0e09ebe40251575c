package synthesis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchFromProbability(t *testing.T) {
	assert.Equal(t, BranchCuAlFe, BranchFromProbability(0.5))
	assert.Equal(t, BranchCuAlFe, BranchFromProbability(0.97))
	assert.Equal(t, BranchLaZnZr, BranchFromProbability(0.4999))
	assert.Equal(t, BranchLaZnZr, BranchFromProbability(0))
}

func TestBranch_BoundStagesAndVocabularies(t *testing.T) {
	assert.Equal(t, StageMajorMetal, BranchCuAlFe.Stage())
	assert.Equal(t, StageMinorMetal, BranchLaZnZr.Stage())

	for _, m := range BranchCuAlFe.Vocabulary() {
		assert.False(t, BranchLaZnZr.Contains(m), m)
	}
	assert.True(t, BranchCuAlFe.Contains("Fe"))
	assert.True(t, BranchLaZnZr.Contains("Zr"))
}

func TestBranch_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		B MetalBranch `json:"b"`
	}{BranchCuAlFe})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":"Cu-Al-Fe"}`, string(data))

	var b MetalBranch
	require.NoError(t, b.UnmarshalText([]byte("La-Zn-Zr")))
	assert.Equal(t, BranchLaZnZr, b)
	assert.Error(t, b.UnmarshalText([]byte("Mg")))
}
