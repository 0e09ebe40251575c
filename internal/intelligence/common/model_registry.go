package common

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// ArtifactRegistry lazily loads models, scalers and encoders and keeps them
// for the life of the process. Concurrent first requests for one artifact
// share a single load; failed loads are not remembered and are retried by
// the next caller. Loaded artifacts are immutable.
type ArtifactRegistry struct {
	loader  ArtifactLoader
	metrics IntelligenceMetrics
	logger  logging.Logger

	group singleflight.Group

	mu    sync.RWMutex
	slots map[slotID]*slot
	// gen counts unloads; a load that straddles one is not stored.
	gen   uint64
}

type slotID struct {
	kind ArtifactKind
	key  string
}

func (id slotID) String() string { return id.kind.String() + "/" + id.key }

type slot struct {
	value interface{}
	info  ArtifactInfo
}

// NewArtifactRegistry creates an empty registry over loader.
func NewArtifactRegistry(loader ArtifactLoader, metrics IntelligenceMetrics, logger logging.Logger) (*ArtifactRegistry, error) {
	if loader == nil {
		return nil, errors.NewInvalidInputError("loader cannot be nil")
	}
	if metrics == nil {
		metrics = NewNoopIntelligenceMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ArtifactRegistry{
		loader:  loader,
		metrics: metrics,
		logger:  logger.Named("artifacts"),
		slots:   make(map[slotID]*slot),
	}, nil
}

// Version returns the artifact set version reported by the loader.
func (r *ArtifactRegistry) Version() string { return r.loader.Version() }

// GetModel returns the model for key. For classifiers the encoder is loaded
// first and the model's output width checked against its class count.
func (r *ArtifactRegistry) GetModel(ctx context.Context, key string) (Model, error) {
	v, err := r.get(ctx, slotID{KindModel, key})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// GetScaler returns the scaler for key.
func (r *ArtifactRegistry) GetScaler(ctx context.Context, key string) (*Scaler, error) {
	v, err := r.get(ctx, slotID{KindScaler, key})
	if err != nil {
		return nil, err
	}
	return v.(*Scaler), nil
}

// GetEncoder returns the label encoder for key.
func (r *ArtifactRegistry) GetEncoder(ctx context.Context, key string) (*LabelEncoder, error) {
	v, err := r.get(ctx, slotID{KindEncoder, key})
	if err != nil {
		return nil, err
	}
	return v.(*LabelEncoder), nil
}

func (r *ArtifactRegistry) lookup(id slotID) (*slot, bool) {
	r.mu.RLock()
	s, ok := r.slots[id]
	r.mu.RUnlock()
	return s, ok
}

func (r *ArtifactRegistry) get(ctx context.Context, id slotID) (interface{}, error) {
	if s, ok := r.lookup(id); ok {
		return s.value, nil
	}
	// The shared load outlives any one caller; each caller still gives up
	// on its own context.
	ch := r.group.DoChan(id.String(), func() (interface{}, error) {
		if s, ok := r.lookup(id); ok {
			return s.value, nil
		}
		return r.load(context.WithoutCancel(ctx), id)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *ArtifactRegistry) load(ctx context.Context, id slotID) (interface{}, error) {
	classes := 0
	if id.kind == KindModel {
		if encKey, ok := r.loader.EncoderFor(id.key); ok {
			enc, err := r.GetEncoder(ctx, encKey)
			if err != nil {
				return nil, err
			}
			classes = enc.Len()
		}
	}

	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	start := time.Now()
	value, info, err := r.loader.Load(ctx, id.kind, id.key, classes)
	elapsed := time.Since(start)
	r.metrics.RecordModelLoad(ctx, id.String(), r.loader.Version(), float64(elapsed.Microseconds())/1000.0, err == nil)
	if err != nil {
		r.logger.Warn("artifact load failed",
			logging.String("kind", id.kind.String()),
			logging.String("key", id.key),
			logging.Err(err))
		return nil, err
	}

	info.LoadedAt = time.Now().UTC()
	r.mu.Lock()
	stale := r.gen != gen
	if !stale {
		r.slots[id] = &slot{value: value, info: info}
	}
	r.mu.Unlock()

	if stale {
		r.logger.Debug("artifact unloaded during load, not kept",
			logging.String("kind", id.kind.String()),
			logging.String("key", id.key))
		return value, nil
	}

	r.logger.Info("artifact loaded",
		logging.String("kind", id.kind.String()),
		logging.String("key", id.key),
		logging.String("file", info.File),
		logging.Duration("elapsed", elapsed))
	return value, nil
}

// Preload loads every artifact filed under keys, across all kinds. An empty
// keys loads everything the loader knows. It keeps going after a failure
// and returns the joined errors.
func (r *ArtifactRegistry) Preload(ctx context.Context, keys []string) error {
	byKind := map[ArtifactKind]map[string]bool{}
	for _, kind := range []ArtifactKind{KindEncoder, KindScaler, KindModel} {
		byKind[kind] = map[string]bool{}
		for _, k := range r.loader.Keys(kind) {
			byKind[kind][k] = true
		}
	}
	if len(keys) == 0 {
		seen := map[string]bool{}
		for _, set := range byKind {
			for k := range set {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		sort.Strings(keys)
	}

	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		found := false
		// encoders before models so classifier checks reuse them
		for _, kind := range []ArtifactKind{KindEncoder, KindScaler, KindModel} {
			if !byKind[kind][key] {
				continue
			}
			found = true
			if _, err := r.get(ctx, slotID{kind, key}); err != nil {
				errs = append(errs, err)
			}
		}
		if !found {
			errs = append(errs, errors.ArtifactNotFound("artifact", key))
		}
	}
	r.logger.Info("preload finished",
		logging.Int("requested", len(keys)),
		logging.Int("failed", len(errs)),
		logging.Int("loaded", len(r.Loaded())))
	return stderrors.Join(errs...)
}

// Unload drops every artifact filed under keys and returns how many were
// released. The next Get reloads them.
func (r *ArtifactRegistry) Unload(keys ...string) int {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	return r.unloadWhere(func(id slotID) bool { return drop[id.key] })
}

// UnloadExcept drops every artifact whose key is not in keep.
func (r *ArtifactRegistry) UnloadExcept(keep []string) int {
	retain := make(map[string]bool, len(keep))
	for _, k := range keep {
		retain[k] = true
	}
	return r.unloadWhere(func(id slotID) bool { return !retain[id.key] })
}

func (r *ArtifactRegistry) unloadWhere(match func(slotID) bool) int {
	r.mu.Lock()
	r.gen++
	n := 0
	for id := range r.slots {
		if match(id) {
			delete(r.slots, id)
			n++
		}
	}
	r.mu.Unlock()
	if n > 0 {
		r.logger.Info("artifacts unloaded", logging.Int("count", n))
	}
	return n
}

// Loaded lists loaded artifacts ordered by kind and key.
func (r *ArtifactRegistry) Loaded() []ArtifactInfo {
	r.mu.RLock()
	out := make([]ArtifactInfo, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// MemoryFootprint estimates the bytes held by loaded artifacts.
func (r *ArtifactRegistry) MemoryFootprint() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, s := range r.slots {
		n += s.info.SizeBytes
	}
	return n
}
