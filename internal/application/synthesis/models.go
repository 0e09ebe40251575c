package synthesis

import (
	"context"

	prom "github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// RequiredArtifacts lists the keys a complete run can touch.
type RequiredArtifacts struct {
	Models   []string `json:"models"`
	Scalers  []string `json:"scalers"`
	Encoders []string `json:"encoders"`
}

// ModelsInfo describes the registry state.
type ModelsInfo struct {
	Version     string                `json:"version"`
	Loaded      []common.ArtifactInfo `json:"loaded"`
	MemoryBytes int64                 `json:"memory_bytes"`
	Required    RequiredArtifacts     `json:"required"`
}

// UnloadInput selects artifacts to release. With Except set, everything
// but Keys is released.
type UnloadInput struct {
	Keys   []string
	Except bool
}

func (s *serviceImpl) Models(_ context.Context) *ModelsInfo {
	models, scalers, encoders := s.pipeline.RequiredArtifacts()
	loaded := s.registry.Loaded()
	if loaded == nil {
		loaded = []common.ArtifactInfo{}
	}

	counts := map[common.ArtifactKind]int{common.KindModel: 0, common.KindScaler: 0, common.KindEncoder: 0}
	for _, a := range loaded {
		counts[a.Kind]++
	}
	for kind, n := range counts {
		prom.SetArtifactsLoaded(s.metrics, kind.String(), n)
	}

	return &ModelsInfo{
		Version:     s.registry.Version(),
		Loaded:      loaded,
		MemoryBytes: s.registry.MemoryFootprint(),
		Required:    RequiredArtifacts{Models: models, Scalers: scalers, Encoders: encoders},
	}
}

// PreloadModels loads keys, or every artifact the manifest lists when keys
// is empty. Artifacts that did load stay loaded when others fail.
func (s *serviceImpl) PreloadModels(ctx context.Context, keys []string) (*ModelsInfo, error) {
	if err := s.registry.Preload(ctx, keys); err != nil {
		return s.Models(ctx), errors.Wrap(err, errors.ErrCodeArtifactLoad, "preload incomplete")
	}
	return s.Models(ctx), nil
}

func (s *serviceImpl) UnloadModels(_ context.Context, input *UnloadInput) (int, error) {
	if input == nil || (len(input.Keys) == 0 && !input.Except) {
		return 0, errors.NewInvalidInputError("no artifact keys given")
	}
	if input.Except {
		return s.registry.UnloadExcept(input.Keys), nil
	}
	return s.registry.Unload(input.Keys...), nil
}

// ClearCache empties the result cache. It is a no-op when caching is off.
func (s *serviceImpl) ClearCache(ctx context.Context) error {
	c := s.pipeline.Cache()
	if c == nil {
		return nil
	}
	if err := c.Clear(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to clear result cache")
	}
	s.logger.Info("result cache cleared")
	return nil
}

func (s *serviceImpl) CacheStats(_ context.Context) (predictor.CacheStats, bool) {
	c := s.pipeline.Cache()
	if c == nil {
		return predictor.CacheStats{}, false
	}
	return c.Stats(), true
}
