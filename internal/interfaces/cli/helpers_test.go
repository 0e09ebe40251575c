package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/config"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/internal/testutil"
)

// writeTestConfig writes a fixture artifact directory and a config file
// that serves it without any external dependency.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	testutil.NewArtifactSet("test-1").WriteDir(t, artifacts)

	content := fmt.Sprintf(`
server:
  port: 18080
grpc:
  enabled: false
log:
  level: error
  format: console
artifacts:
  source: local
  dir: %q
metrics:
  enabled: false
cache:
  backend: memory
`, artifacts)
	path := filepath.Join(dir, "adsorpnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// withFakeBackend routes every backend-driven command to f.
func withFakeBackend(t *testing.T, f *fakeBackend) {
	t.Helper()
	prev := newBackendFunc
	newBackendFunc = func(context.Context, *CLIContext) (backend, error) { return f, nil }
	t.Cleanup(func() { newBackendFunc = prev })
}

func sampleRecipe() *domain.Recipe {
	treg := "150"
	conf := 0.9
	return &domain.Recipe{
		ID:           "pred-1",
		Branch:       domain.BranchCuAlFe,
		Metal:        "Cu",
		Ligand:       "BTC",
		Solvent:      "ДМФА",
		SaltMass:     1.234,
		AcidMass:     0.846,
		Volume:       30,
		Tsyn:         "120",
		Tdry:         "100",
		Treg:         &treg,
		ModelVersion: "test-1",
		Stages: []domain.StagePrediction{
			{Stage: domain.StageMajorMetal, Value: "Cu", Confidence: &conf},
		},
	}
}

type fakeBackend struct {
	predictIn *app.PredictInput
	batchIn   *app.BatchInput
	listQuery domain.HistoryQuery
	unloadIn  *app.UnloadInput
	preloaded []string
	cleared   bool
	closed    bool
	batchOut  *app.BatchOutput
	stats     predictor.CacheStats
	cacheOn   bool
	err       error
}

func (f *fakeBackend) Predict(_ context.Context, in *app.PredictInput) (*domain.Recipe, error) {
	f.predictIn = in
	if f.err != nil {
		return nil, f.err
	}
	return sampleRecipe(), nil
}

func (f *fakeBackend) PredictBatch(_ context.Context, in *app.BatchInput) (*app.BatchOutput, error) {
	f.batchIn = in
	if f.batchOut != nil {
		return f.batchOut, nil
	}
	out := &app.BatchOutput{Total: len(in.Items), Succeeded: len(in.Items)}
	for i := range in.Items {
		out.Items = append(out.Items, app.BatchItem{Index: i, Status: "ok", Recipe: sampleRecipe()})
	}
	return out, nil
}

func (f *fakeBackend) GetPrediction(_ context.Context, id string) (*domain.Recipe, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := sampleRecipe()
	r.ID = id
	return r, nil
}

func (f *fakeBackend) ListPredictions(_ context.Context, q domain.HistoryQuery) (*app.ListResult, error) {
	f.listQuery = q
	return &app.ListResult{Items: []*domain.Recipe{sampleRecipe()}, Total: 1, Limit: q.Limit, Offset: q.Offset}, nil
}

func (f *fakeBackend) Models(context.Context) (*app.ModelsInfo, error) {
	return &app.ModelsInfo{Version: "test-1"}, nil
}

func (f *fakeBackend) PreloadModels(_ context.Context, keys []string) (*app.ModelsInfo, error) {
	f.preloaded = keys
	return &app.ModelsInfo{Version: "test-1"}, f.err
}

func (f *fakeBackend) UnloadModels(_ context.Context, in *app.UnloadInput) (int, error) {
	f.unloadIn = in
	return len(in.Keys), nil
}

func (f *fakeBackend) CacheStats(context.Context) (predictor.CacheStats, bool, error) {
	return f.stats, f.cacheOn, nil
}

func (f *fakeBackend) ClearCache(context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeBackend) Close(context.Context) error {
	f.closed = true
	return nil
}
