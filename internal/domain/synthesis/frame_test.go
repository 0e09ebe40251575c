package synthesis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func TestFeatureFrame_OrderAndReplace(t *testing.T) {
	f := NewFeatureFrame().Set("b", 2).Set("a", 1).SetNull("c")
	f.Set("b", 3)

	assert.Equal(t, []string{"b", "a", "c"}, f.Names())
	v, ok := f.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = f.Get("c")
	assert.False(t, ok)
	assert.True(t, f.Has("c"))
	assert.True(t, f.IsNull("c"))
	assert.False(t, f.Has("d"))
}

func TestFeatureFrame_CloneIsDeep(t *testing.T) {
	f := NewFeatureFrame().Set("a", 1)
	c := f.Clone()
	c.Set("a", 2).Set("b", 3)

	v, _ := f.Get("a")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, 2, c.Len())
}

func TestFeatureFrame_SetOneHot(t *testing.T) {
	f := NewFeatureFrame().SetOneHot(MetalOneHotColumns, MetalOneHotPrefix, "Cu")
	for _, col := range MetalOneHotColumns {
		v, ok := f.Get(col)
		require.True(t, ok)
		if col == "Металл_Cu" {
			assert.Equal(t, 1.0, v)
		} else {
			assert.Equal(t, 0.0, v, col)
		}
	}

	// A label outside the trained vocabulary leaves every indicator at 0.
	f.SetOneHot(LigandOneHotColumns, LigandOneHotPrefix, "NH2-BDC")
	for _, col := range LigandOneHotColumns {
		v, _ := f.Get(col)
		assert.Equal(t, 0.0, v)
	}
}

func TestFeatureFrame_Merge(t *testing.T) {
	x := 2.5
	f := NewFeatureFrame().Merge(map[string]*float64{"z": &x, "a": nil})
	assert.Equal(t, []string{"a", "z"}, f.Names())
	assert.True(t, f.IsNull("a"))
}

func TestFeatureFrame_Project(t *testing.T) {
	f := NewFeatureFrame().Set("a", 1).Set("b", 2).SetNull("n").Set("inf", math.Inf(1))

	vals, err := f.Project(StageLigand, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, vals)

	_, err = f.Project(StageLigand, []string{"a", "missing"})
	require.Error(t, err)
	assert.True(t, errors.IsFeatureMissing(err))
	assert.Contains(t, err.Error(), `column="missing"`)

	_, err = f.Project(StageSolvent, []string{"n"})
	assert.True(t, errors.IsFeatureMissing(err))

	_, err = f.Project(StageSolvent, []string{"inf"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNonFiniteFeature))
}

func TestFeatureFrame_JSONKeepsOrderAndNulls(t *testing.T) {
	f := NewFeatureFrame().Set(ColSurfaceArea, 1200).SetNull("TPSA (ligand)").Set(ColBMicropore, math.Inf(1))

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"SБЭТ, м2/г","value":1200},{"name":"TPSA (ligand)","value":null},{"name":"B_micropore","value":null}]`, string(data))

	var back FeatureFrame
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f.Names(), back.Names())
	assert.True(t, back.IsNull("TPSA (ligand)"))
}

func TestFeatureFrame_Map(t *testing.T) {
	f := NewFeatureFrame().Set("a", 1).SetNull("b")
	assert.Equal(t, map[string]float64{"a": 1}, f.Map())
}
