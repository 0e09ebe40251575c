package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func newTestApp(t *testing.T, configPath string) *App {
	t.Helper()
	cfg := loadTestConfig(t, configPath)
	a, err := newApp(context.Background(), cfg, logging.NewNopLogger(), bootstrapOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewApp_LocalStack(t *testing.T) {
	a := newTestApp(t, writeTestConfig(t))

	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Pipeline)
	assert.Nil(t, a.Collector)
	require.Len(t, a.Checkers(), 1)
	assert.Equal(t, "artifacts", a.Checkers()[0].Name())
	assert.NoError(t, a.Checkers()[0].Check(context.Background()))
}

func TestNewApp_MissingManifest(t *testing.T) {
	cfg := loadTestConfig(t, writeTestConfig(t))
	cfg.Artifacts.Dir = t.TempDir()
	_, err := newApp(context.Background(), cfg, logging.NewNopLogger(), bootstrapOptions{})
	require.Error(t, err)
}

func TestApp_ReloadSwapsTTL(t *testing.T) {
	a := newTestApp(t, writeTestConfig(t))

	next := *a.Config
	next.Cache.DefaultTTL = 42
	a.Reload(&next)
	assert.EqualValues(t, 42, a.cacheCfg.Load().DefaultTTL)
}

func TestLocalBackend_Predict(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "", "--config", cfg, "predict",
		"--sbet", "1200", "--a0", "10.5", "--e", "6.5", "--ws", "0.45", "--sme", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "branch Cu-Al-Fe")
	assert.Contains(t, out, "Cu")
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "ДМФА")
}

func TestLocalBackend_HistoryDisabled(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := runCLI(t, "", "--config", cfg, "history", "list")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestBuildRouter_Probes(t *testing.T) {
	a := newTestApp(t, writeTestConfig(t))
	srv := httptest.NewServer(buildRouter(a))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	// Metrics are disabled in the test config.
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoteBackend_AgainstRouter(t *testing.T) {
	cfgPath := writeTestConfig(t)
	a := newTestApp(t, cfgPath)
	srv := httptest.NewServer(buildRouter(a))
	defer srv.Close()

	out, err := runCLI(t, "", "--config", cfgPath, "--server", srv.URL, "predict",
		"--sbet", "1200", "--a0", "10.5", "--e", "6.5", "--ws", "0.45", "--sme", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "branch Cu-Al-Fe")
	assert.Contains(t, out, "BTC")

	out, err = runCLI(t, "sbet,a0,e,sme\n1200,10.5,6.5,200\n", "--config", cfgPath, "--server", srv.URL,
		"batch", "-i", "-", "--approx-ws")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 succeeded")

	out, err = runCLI(t, "", "--config", cfgPath, "--server", srv.URL, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend: memory")

	// Server-side errors come back with their original code.
	_, err = runCLI(t, "", "--config", cfgPath, "--server", srv.URL, "predict",
		"--sbet=-5", "--a0", "10.5", "--e", "6.5", "--ws", "0.45", "--sme", "200")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}
