package cli

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/client"
)

// backend is what prediction, model, cache and history commands run
// against: an in-process service or a remote server.
type backend interface {
	Predict(ctx context.Context, in *app.PredictInput) (*domain.Recipe, error)
	PredictBatch(ctx context.Context, in *app.BatchInput) (*app.BatchOutput, error)
	GetPrediction(ctx context.Context, id string) (*domain.Recipe, error)
	ListPredictions(ctx context.Context, q domain.HistoryQuery) (*app.ListResult, error)
	Models(ctx context.Context) (*app.ModelsInfo, error)
	PreloadModels(ctx context.Context, keys []string) (*app.ModelsInfo, error)
	UnloadModels(ctx context.Context, in *app.UnloadInput) (int, error)
	CacheStats(ctx context.Context) (predictor.CacheStats, bool, error)
	ClearCache(ctx context.Context) error
	Close(ctx context.Context) error
}

// newBackendFunc is swapped in tests.
var newBackendFunc = defaultBackend

// openBackend returns a remote backend when --server is set, else wires
// the local stack from config.
func openBackend(cmd *cobra.Command, cliCtx *CLIContext) (backend, error) {
	return newBackendFunc(cmd.Context(), cliCtx)
}

func defaultBackend(ctx context.Context, cliCtx *CLIContext) (backend, error) {
	if cliCtx.Client != nil {
		return &remoteBackend{c: cliCtx.Client}, nil
	}
	a, err := newApp(ctx, cliCtx.Config, cliCtx.Logger, bootstrapOptions{})
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a}, nil
}

type localBackend struct {
	app *App
}

func (b *localBackend) Predict(ctx context.Context, in *app.PredictInput) (*domain.Recipe, error) {
	return b.app.Service.Predict(ctx, in)
}

func (b *localBackend) PredictBatch(ctx context.Context, in *app.BatchInput) (*app.BatchOutput, error) {
	return b.app.Service.PredictBatch(ctx, in)
}

func (b *localBackend) GetPrediction(ctx context.Context, id string) (*domain.Recipe, error) {
	return b.app.Service.GetPrediction(ctx, id)
}

func (b *localBackend) ListPredictions(ctx context.Context, q domain.HistoryQuery) (*app.ListResult, error) {
	return b.app.Service.ListPredictions(ctx, q)
}

func (b *localBackend) Models(ctx context.Context) (*app.ModelsInfo, error) {
	return b.app.Service.Models(ctx), nil
}

func (b *localBackend) PreloadModels(ctx context.Context, keys []string) (*app.ModelsInfo, error) {
	return b.app.Service.PreloadModels(ctx, keys)
}

func (b *localBackend) UnloadModels(ctx context.Context, in *app.UnloadInput) (int, error) {
	return b.app.Service.UnloadModels(ctx, in)
}

func (b *localBackend) CacheStats(ctx context.Context) (predictor.CacheStats, bool, error) {
	stats, enabled := b.app.Service.CacheStats(ctx)
	return stats, enabled, nil
}

func (b *localBackend) ClearCache(ctx context.Context) error {
	return b.app.Service.ClearCache(ctx)
}

func (b *localBackend) Close(ctx context.Context) error {
	return b.app.Close(ctx)
}

// remoteBackend forwards to a running server. Server errors come back as
// the typed errors the server raised.
type remoteBackend struct {
	c *client.Client
}

func remoteErr(err error) error {
	var apiErr *client.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.AppError()
	}
	return err
}

func toRequest(in *app.PredictInput) *client.PredictRequest {
	if in == nil {
		return nil
	}
	return &client.PredictRequest{
		Measurements:  in.Measurements,
		ApproximateWs: in.ApproximateWs,
		Regeneration:  in.Regeneration,
	}
}

func (b *remoteBackend) Predict(ctx context.Context, in *app.PredictInput) (*domain.Recipe, error) {
	r, err := b.c.Predictions().Predict(ctx, toRequest(in))
	return r, remoteErr(err)
}

func (b *remoteBackend) PredictBatch(ctx context.Context, in *app.BatchInput) (*app.BatchOutput, error) {
	items := make([]*client.PredictRequest, len(in.Items))
	for i, item := range in.Items {
		items[i] = toRequest(item)
	}
	out, err := b.c.Predictions().PredictBatch(ctx, items)
	return out, remoteErr(err)
}

func (b *remoteBackend) GetPrediction(ctx context.Context, id string) (*domain.Recipe, error) {
	r, err := b.c.Predictions().Get(ctx, id)
	return r, remoteErr(err)
}

func (b *remoteBackend) ListPredictions(ctx context.Context, q domain.HistoryQuery) (*app.ListResult, error) {
	res, err := b.c.Predictions().List(ctx, client.ListOptions{
		Metal:  q.Metal,
		Ligand: q.Ligand,
		Since:  q.Since,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	return res, remoteErr(err)
}

func (b *remoteBackend) Models(ctx context.Context) (*app.ModelsInfo, error) {
	info, err := b.c.Models().List(ctx)
	return info, remoteErr(err)
}

func (b *remoteBackend) PreloadModels(ctx context.Context, keys []string) (*app.ModelsInfo, error) {
	info, err := b.c.Models().Preload(ctx, keys)
	return info, remoteErr(err)
}

func (b *remoteBackend) UnloadModels(ctx context.Context, in *app.UnloadInput) (int, error) {
	if in == nil {
		in = &app.UnloadInput{}
	}
	res, err := b.c.Models().Unload(ctx, in.Keys, in.Except)
	if err != nil {
		return 0, remoteErr(err)
	}
	return res.Unloaded, nil
}

func (b *remoteBackend) CacheStats(ctx context.Context) (predictor.CacheStats, bool, error) {
	res, err := b.c.Models().CacheStats(ctx)
	if err != nil {
		return predictor.CacheStats{}, false, remoteErr(err)
	}
	return res.Stats, res.Enabled, nil
}

func (b *remoteBackend) ClearCache(ctx context.Context) error {
	return remoteErr(b.c.Models().ClearCache(ctx))
}

func (b *remoteBackend) Close(context.Context) error { return nil }
