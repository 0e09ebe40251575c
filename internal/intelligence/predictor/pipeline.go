// Package predictor runs the sequential synthesis-recipe pipeline: metal
// group, specific metal, ligand, solvent, salt and acid mass, synthesis
// volume, synthesis and drying temperature and optionally the regeneration
// temperature. Each stage's prediction is folded into the feature frame the
// next stage reads.
package predictor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/intelligence/descriptors"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Artifacts is the subset of the artifact registry the pipeline reads.
type Artifacts interface {
	GetModel(ctx context.Context, key string) (common.Model, error)
	GetScaler(ctx context.Context, key string) (*common.Scaler, error)
	GetEncoder(ctx context.Context, key string) (*common.LabelEncoder, error)
	Version() string
}

// TTLFunc picks the cache lifetime of a stage's results.
type TTLFunc func(schema synthesis.StageSchema) time.Duration

// Default cache lifetimes.
const (
	DefaultResultTTL    = time.Hour
	ClassifierResultTTL = 2 * time.Hour
)

// DefaultTTL keeps classifier results for two hours and everything else for
// one.
func DefaultTTL(schema synthesis.StageSchema) time.Duration {
	if strings.HasSuffix(schema.CacheType(), "Classifier") {
		return ClassifierResultTTL
	}
	return DefaultResultTTL
}

// Pipeline is safe for concurrent use; a single Run is sequential.
type Pipeline struct {
	artifacts    Artifacts
	descriptors  descriptors.Provider
	cache        ResultCache
	ttl          TTLFunc
	metrics      common.IntelligenceMetrics
	logger       logging.Logger
	regeneration bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegeneration enables the regeneration-temperature stage.
func WithRegeneration(include bool) Option {
	return func(p *Pipeline) { p.regeneration = include }
}

// WithDescriptors replaces the built-in descriptor tables.
func WithDescriptors(d descriptors.Provider) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.descriptors = d
		}
	}
}

// WithCache enables result caching. A nil ttl uses DefaultTTL.
func WithCache(c ResultCache, ttl TTLFunc) Option {
	return func(p *Pipeline) {
		p.cache = c
		if ttl != nil {
			p.ttl = ttl
		}
	}
}

// WithMetrics injects a metrics collector.
func WithMetrics(m common.IntelligenceMetrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger injects a logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline builds a pipeline over artifacts. Caching is off unless
// WithCache is given.
func NewPipeline(artifacts Artifacts, opts ...Option) (*Pipeline, error) {
	if artifacts == nil {
		return nil, errors.NewInvalidInputError("artifacts cannot be nil")
	}
	p := &Pipeline{
		artifacts:   artifacts,
		descriptors: descriptors.NewStaticProvider(),
		ttl:         DefaultTTL,
		metrics:     common.NewNoopIntelligenceMetrics(),
		logger:      logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p, nil
}

// Regeneration returns a pipeline sharing p's collaborators with the
// regeneration stage switched on or off.
func (p *Pipeline) Regeneration(include bool) *Pipeline {
	cp := *p
	cp.regeneration = include
	return &cp
}

// IncludesRegeneration reports whether Run predicts Treg.
func (p *Pipeline) IncludesRegeneration() bool { return p.regeneration }

// Cache returns the configured result cache, or nil.
func (p *Pipeline) Cache() ResultCache { return p.cache }

// Stages lists the stages Run may execute, in order.
func (p *Pipeline) Stages() []synthesis.Stage {
	all := synthesis.AllStages()
	if p.regeneration {
		return all
	}
	return all[:len(all)-1]
}

// RequiredArtifacts lists the keys a complete run can touch.
func (p *Pipeline) RequiredArtifacts() (models, scalers, encoders []string) {
	for _, st := range p.Stages() {
		s := synthesis.MustSchema(st)
		models = append(models, s.ModelKey)
		scalers = append(scalers, s.ScalerKey)
		if s.EncoderKey != "" {
			encoders = append(encoders, s.EncoderKey)
		}
	}
	return models, scalers, encoders
}

// Run predicts a full recipe from validated measurements. Any stage
// failure aborts the run; no partial recipe is returned.
func (p *Pipeline) Run(ctx context.Context, m synthesis.Measurements) (*synthesis.Recipe, error) {
	start := time.Now()
	r := &synthesis.Recipe{
		ID:           synthesis.NewRecipeID(),
		Inputs:       m,
		Fingerprint:  Fingerprint(m.Inputs()),
		ModelVersion: p.artifacts.Version(),
		StartedAt:    start.UTC(),
	}
	log := p.logger.With(logging.RunID(r.ID))
	frame := synthesis.ComputeDerived(m)

	branch := "unknown"
	err := p.run(ctx, r, frame, log)
	if len(r.Stages) > 0 {
		branch = r.Branch.String()
	}
	elapsed := time.Since(start)
	p.metrics.RecordPipelineRun(ctx, branch, float64(elapsed.Microseconds())/1000.0, err == nil)
	if err != nil {
		log.Warn("pipeline run failed",
			logging.Int("completed_stages", len(r.Stages)),
			logging.Err(err))
		return nil, err
	}

	r.Features = frame
	r.CompletedAt = time.Now().UTC()
	log.Info("pipeline run finished",
		logging.String("branch", branch),
		logging.String("metal", r.Metal),
		logging.String("ligand", r.Ligand),
		logging.String("solvent", r.Solvent),
		logging.Duration("elapsed", elapsed))
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, r *synthesis.Recipe, frame *synthesis.FeatureFrame, log logging.Logger) error {
	step := func(st synthesis.Stage) (*synthesis.StagePrediction, error) {
		pred, err := p.stage(ctx, st, frame, r.Fingerprint, log)
		if err != nil {
			return nil, err
		}
		r.Stages = append(r.Stages, *pred)
		return pred, nil
	}

	bin, err := step(synthesis.StageMetalBinary)
	if err != nil {
		return err
	}
	if err := r.Branch.UnmarshalText([]byte(bin.Value)); err != nil {
		return errors.Wrap(err, errors.ErrCodeArtifactShape, "binary stage returned an unknown group")
	}

	metal, err := step(r.Branch.Stage())
	if err != nil {
		return err
	}
	r.Metal = metal.Value
	frame.SetOneHot(synthesis.MetalOneHotColumns, synthesis.MetalOneHotPrefix, r.Metal)
	frame.Merge(p.descriptors.DescribeMetal(r.Metal))

	ligand, err := step(synthesis.StageLigand)
	if err != nil {
		return err
	}
	r.Ligand = ligand.Value
	saltMolar, err := synthesis.SaltMolarMass(r.Metal)
	if err != nil {
		return err
	}
	acidMolar, err := synthesis.AcidMolarMass(r.Ligand)
	if err != nil {
		return err
	}
	frame.Set(synthesis.ColSaltMolarMass, saltMolar)
	frame.Set(synthesis.ColAcidMolarMass, acidMolar)
	frame.SetOneHot(synthesis.LigandOneHotColumns, synthesis.LigandOneHotPrefix, r.Ligand)
	frame.Merge(p.descriptors.DescribeLigand(r.Ligand))

	solvent, err := step(synthesis.StageSolvent)
	if err != nil {
		return err
	}
	r.Solvent = solvent.Value
	frame.SetOneHot(synthesis.SolventOneHotColumns, synthesis.SolventOneHotPrefix, r.Solvent)
	frame.Merge(p.descriptors.DescribeSolvent(r.Solvent))

	salt, err := step(synthesis.StageSaltMass)
	if err != nil {
		return err
	}
	r.SaltMass = *salt.Numeric
	r.SaltMoles = r.SaltMass / saltMolar
	frame.Set(synthesis.ColSaltMass, r.SaltMass)
	frame.Set(synthesis.ColSaltMoles, r.SaltMoles)

	acid, err := step(synthesis.StageAcidMass)
	if err != nil {
		return err
	}
	r.AcidMass = *acid.Numeric
	r.AcidMoles = r.AcidMass / acidMolar
	frame.Set(synthesis.ColAcidMass, r.AcidMass)
	frame.Set(synthesis.ColAcidMoles, r.AcidMoles)

	vsyn, err := step(synthesis.StageVsyn)
	if err != nil {
		return err
	}
	r.Volume = *vsyn.Numeric
	frame.Set(synthesis.ColSynthesisVolume, r.Volume)

	tsyn, err := step(synthesis.StageTsyn)
	if err != nil {
		return err
	}
	r.Tsyn = tsyn.Value
	if err := setTemperature(frame, synthesis.StageTdry, synthesis.ColSynthesisTemp, tsyn); err != nil {
		return err
	}

	tdry, err := step(synthesis.StageTdry)
	if err != nil {
		return err
	}
	r.Tdry = tdry.Value
	if !p.regeneration {
		return nil
	}
	if err := setTemperature(frame, synthesis.StageTreg, synthesis.ColDryingTemp, tdry); err != nil {
		return err
	}

	treg, err := step(synthesis.StageTreg)
	if err != nil {
		return err
	}
	r.Treg = &treg.Value
	return nil
}

// setTemperature appends a temperature label as a numeric column for the
// next stage. A label that is not a number leaves that stage without its
// input.
func setTemperature(frame *synthesis.FeatureFrame, next synthesis.Stage, column string, pred *synthesis.StagePrediction) error {
	if pred.Numeric == nil {
		return errors.FeatureMissing(next.String(), column).
			WithCause(errors.Newf(errors.ErrCodeInvalidCategorical, "%s label %q is not numeric", pred.Stage, pred.Value))
	}
	frame.Set(column, *pred.Numeric)
	return nil
}

// stage evaluates st, consulting the result cache first.
func (p *Pipeline) stage(ctx context.Context, st synthesis.Stage, frame *synthesis.FeatureFrame, key string, log logging.Logger) (*synthesis.StagePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCancelled, "pipeline cancelled").WithDetail("stage=" + st.String())
	}
	schema := synthesis.MustSchema(st)
	version := p.artifacts.Version()

	if p.cache != nil && key != "" {
		start := time.Now()
		hit, ok := p.cache.Get(ctx, key, st)
		ok = ok && hit.Version == version
		p.metrics.RecordCacheAccess(ctx, ok, st.String())
		if ok {
			pred := hit.Prediction
			pred.Cached = true
			p.record(ctx, schema, version, start, true, true)
			log.Debug("stage served from cache", logging.Stage(st.String()), logging.String("value", pred.Value))
			return &pred, nil
		}
	}

	start := time.Now()
	pred, err := p.evaluate(ctx, schema, frame)
	p.record(ctx, schema, version, start, err == nil, false)
	if err != nil {
		return nil, err
	}
	log.Debug("stage evaluated",
		logging.Stage(st.String()),
		logging.String("value", pred.Value),
		logging.Duration("elapsed", time.Since(start)))

	if p.cache != nil && key != "" {
		p.cache.Put(ctx, key, st, &CachedResult{
			Prediction: *pred,
			Version:    version,
			StoredAt:   time.Now().UTC(),
		}, p.ttl(schema))
	}
	return pred, nil
}

func (p *Pipeline) record(ctx context.Context, schema synthesis.StageSchema, version string, start time.Time, ok, cached bool) {
	p.metrics.RecordInference(ctx, &common.InferenceMetricParams{
		Stage:        schema.Stage.String(),
		ModelKey:     schema.ModelKey,
		ModelVersion: version,
		Task:         schema.Task.String(),
		DurationMs:   float64(time.Since(start).Microseconds()) / 1000.0,
		Success:      ok,
		Cached:       cached,
	})
}

// RunStage evaluates a single stage against a caller-built frame, bypassing
// the cache.
func (p *Pipeline) RunStage(ctx context.Context, stage synthesis.Stage, frame *synthesis.FeatureFrame) (*synthesis.StagePrediction, error) {
	schema, ok := synthesis.Schema(stage)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownStage, "unknown pipeline stage").
			WithDetail(fmt.Sprintf("stage=%q", stage))
	}
	if frame == nil {
		return nil, errors.NewInvalidInputError("frame cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCancelled, "pipeline cancelled")
	}
	start := time.Now()
	pred, err := p.evaluate(ctx, schema, frame)
	p.record(ctx, schema, p.artifacts.Version(), start, err == nil, false)
	return pred, err
}
