package synthesis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/testutil"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func TestModels_PreloadAndUnload(t *testing.T) {
	f := newFixture(t, testutil.NewArtifactSet("v3"))
	ctx := context.Background()

	info := f.svc.Models(ctx)
	assert.Equal(t, "v3", info.Version)
	assert.Empty(t, info.Loaded)
	assert.Contains(t, info.Required.Models, "metal_binary")
	assert.Contains(t, info.Required.Scalers, "binary_metals")
	assert.NotContains(t, info.Required.Models, "treg")

	info, err := f.svc.PreloadModels(ctx, []string{"ligand", "solvent"})
	require.NoError(t, err)
	require.Len(t, info.Loaded, 6)
	assert.Positive(t, info.MemoryBytes)
	kinds := map[common.ArtifactKind]int{}
	for _, a := range info.Loaded {
		kinds[a.Kind]++
	}
	assert.Equal(t, map[common.ArtifactKind]int{common.KindModel: 2, common.KindScaler: 2, common.KindEncoder: 2}, kinds)

	n, err := f.svc.UnloadModels(ctx, &synthesis.UnloadInput{Keys: []string{"ligand"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.svc.UnloadModels(ctx, &synthesis.UnloadInput{Keys: []string{"ligand"}, Except: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, f.svc.Models(ctx).Loaded)
}

func TestModels_PreloadUnknownKey(t *testing.T) {
	f := newFixture(t, testutil.NewArtifactSet("v1"))

	info, err := f.svc.PreloadModels(context.Background(), []string{"ligand", "nope"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoad))
	require.NotNil(t, info)
	assert.Len(t, info.Loaded, 3)
}

func TestModels_UnloadRequiresKeys(t *testing.T) {
	f := newFixture(t, testutil.NewArtifactSet("v1"))

	_, err := f.svc.UnloadModels(context.Background(), &synthesis.UnloadInput{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
	_, err = f.svc.UnloadModels(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestCache_StatsAndClear(t *testing.T) {
	f := newFixture(t, testutil.NewArtifactSet("v1"))
	ctx := context.Background()

	_, err := f.svc.Predict(ctx, sampleInput())
	require.NoError(t, err)
	_, err = f.svc.Predict(ctx, sampleInput())
	require.NoError(t, err)

	stats, enabled := f.svc.CacheStats(ctx)
	require.True(t, enabled)
	assert.Equal(t, "memory", stats.Backend)
	assert.Positive(t, stats.Hits)
	assert.Positive(t, stats.Entries)

	require.NoError(t, f.svc.ClearCache(ctx))
	stats, _ = f.svc.CacheStats(ctx)
	assert.Zero(t, stats.Entries)
}
