// Package synthesis is the application service behind every outer surface
// (CLI, HTTP, gRPC). It validates measurements, runs the prediction
// pipeline, records completed recipes in the history store and publishes
// prediction events.
package synthesis

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// MaxBatchItems bounds a single batch request.
const MaxBatchItems = 1000

const (
	modeSingle = "single"
	modeBatch  = "batch"

	eventCompleted = "prediction.completed"
	eventFailed    = "prediction.failed"
)

// Service defines the prediction application operations.
type Service interface {
	Predict(ctx context.Context, input *PredictInput) (*domain.Recipe, error)
	PredictBatch(ctx context.Context, input *BatchInput) (*BatchOutput, error)
	GetPrediction(ctx context.Context, id string) (*domain.Recipe, error)
	ListPredictions(ctx context.Context, q domain.HistoryQuery) (*ListResult, error)

	Models(ctx context.Context) *ModelsInfo
	PreloadModels(ctx context.Context, keys []string) (*ModelsInfo, error)
	UnloadModels(ctx context.Context, input *UnloadInput) (int, error)
	ClearCache(ctx context.Context) error
	CacheStats(ctx context.Context) (predictor.CacheStats, bool)

	// HistoryEnabled reports whether GetPrediction and ListPredictions are
	// backed by a store.
	HistoryEnabled() bool
	Close(ctx context.Context) error
}

// EventPublisher emits prediction events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, r *domain.Recipe) error
	PublishCompletedBatch(ctx context.Context, recipes []*domain.Recipe) error
	PublishFailed(ctx context.Context, m domain.Measurements, cause error) error
}

// ArtifactManager is the registry surface used for model management.
type ArtifactManager interface {
	Preload(ctx context.Context, keys []string) error
	Unload(keys ...string) int
	UnloadExcept(keep []string) int
	Loaded() []common.ArtifactInfo
	MemoryFootprint() int64
	Version() string
}

// PredictInput is one prediction request.
type PredictInput struct {
	Measurements domain.Measurements
	// ApproximateWs replaces TotalPoreVolume with an estimate derived from
	// the limiting adsorption.
	ApproximateWs bool
	// Regeneration overrides the pipeline's regeneration setting when set.
	Regeneration *bool
}

// BatchInput is a batch prediction request. Source labels the caller in
// metrics ("cli", "http", "grpc").
type BatchInput struct {
	Items  []*PredictInput
	Source string
}

// ErrorInfo is the serialisable form of a failed item.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorInfo classifies err. Context errors map to the timeout and
// cancellation codes.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			code = errors.ErrCodeTimeout
		case stderrors.Is(err, context.Canceled):
			code = errors.ErrCodeCancelled
		default:
			code = errors.ErrCodeInternal
		}
	}
	return &ErrorInfo{Code: code.String(), Message: err.Error()}
}

// BatchItem is the outcome of the input at Index.
type BatchItem struct {
	Index  int            `json:"index"`
	Status string         `json:"status"`
	Recipe *domain.Recipe `json:"recipe,omitempty"`
	Error  *ErrorInfo     `json:"error,omitempty"`
}

// BatchOutput holds per-item outcomes in input order.
type BatchOutput struct {
	Items      []BatchItem `json:"items"`
	Total      int         `json:"total"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	DurationMs float64     `json:"duration_ms"`
}

// ListResult is one page of prediction history.
type ListResult struct {
	Items  []*domain.Recipe `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// Config holds the service tunables.
type Config struct {
	Rules       domain.ValidationRules
	BatchSize   int
	MaxWorkers  int
	ItemTimeout time.Duration
}

// DefaultConfig uses the default validation rules and batch parameters.
func DefaultConfig() Config {
	return Config{
		Rules:       domain.DefaultValidationRules,
		BatchSize:   common.DefaultBatchSize,
		MaxWorkers:  common.DefaultMaxConcurrency,
		ItemTimeout: common.DefaultItemTimeout,
	}
}

// Dependencies are the collaborators of the service. History, Events and
// both metrics sinks are optional.
type Dependencies struct {
	Pipeline     *predictor.Pipeline
	Registry     ArtifactManager
	History      domain.PredictionRepository
	Events       EventPublisher
	Metrics      *prom.AppMetrics
	Intelligence common.IntelligenceMetrics
	Logger       logging.Logger
}

type serviceImpl struct {
	cfg      Config
	pipeline *predictor.Pipeline
	registry ArtifactManager
	history  domain.PredictionRepository
	events   EventPublisher
	metrics  *prom.AppMetrics
	batch    common.BatchProcessor[*PredictInput, *domain.Recipe]
	logger   logging.Logger
}

// NewService creates the prediction application service.
func NewService(cfg Config, deps Dependencies) (Service, error) {
	if deps.Pipeline == nil {
		return nil, errors.NewInvalidInputError("pipeline is required")
	}
	if deps.Registry == nil {
		return nil, errors.NewInvalidInputError("artifact registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	log := deps.Logger.Named("synthesis_service")

	return &serviceImpl{
		cfg:      cfg,
		pipeline: deps.Pipeline,
		registry: deps.Registry,
		history:  deps.History,
		events:   deps.Events,
		metrics:  deps.Metrics,
		batch: common.NewBatchProcessor[*PredictInput, *domain.Recipe](
			common.WithBatchName("predict"),
			common.WithBatchSize(cfg.BatchSize),
			common.WithMaxConcurrency(cfg.MaxWorkers),
			common.WithItemTimeout(cfg.ItemTimeout),
			common.WithBatchMetrics(deps.Intelligence),
			common.WithBatchLogger(log),
		),
		logger: log,
	}, nil
}

func (s *serviceImpl) Predict(ctx context.Context, input *PredictInput) (*domain.Recipe, error) {
	start := time.Now()
	r, err := s.run(ctx, input)
	if err != nil {
		prom.RecordPrediction(s.metrics, modeSingle, "", false, time.Since(start))
		s.publishFailed(ctx, input, err)
		return nil, err
	}
	prom.RecordPrediction(s.metrics, modeSingle, r.Branch.String(), true, time.Since(start))
	s.saveHistory(ctx, r)
	s.publishCompleted(ctx, r)
	return r, nil
}

func (s *serviceImpl) PredictBatch(ctx context.Context, input *BatchInput) (*BatchOutput, error) {
	if input == nil || len(input.Items) == 0 {
		return nil, errors.NewInvalidInputError("batch contains no measurements")
	}
	if len(input.Items) > MaxBatchItems {
		return nil, errors.NewInvalidInputError("batch too large").
			WithDetail("max=" + strconv.Itoa(MaxBatchItems))
	}

	start := time.Now()
	res, err := s.batch.Process(ctx, input.Items, func(ctx context.Context, item *PredictInput) (*domain.Recipe, error) {
		return s.run(ctx, item)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "batch rejected")
	}

	out := &BatchOutput{Items: make([]BatchItem, 0, len(res.Results)), Total: res.TotalCount}
	var completed []*domain.Recipe
	for _, ir := range res.Results {
		item := BatchItem{Index: ir.Index, Status: string(ir.Status)}
		elapsed := time.Duration(ir.DurationMs * float64(time.Millisecond))
		if ir.Error != nil {
			item.Error = NewErrorInfo(ir.Error)
			out.Failed++
			prom.RecordPrediction(s.metrics, modeBatch, "", false, elapsed)
			s.publishFailed(ctx, input.Items[ir.Index], ir.Error)
		} else {
			item.Recipe = ir.Result
			out.Succeeded++
			completed = append(completed, ir.Result)
			prom.RecordPrediction(s.metrics, modeBatch, ir.Result.Branch.String(), true, elapsed)
			s.saveHistory(ctx, ir.Result)
		}
		out.Items = append(out.Items, item)
	}

	if s.events != nil && len(completed) > 0 {
		err := s.events.PublishCompletedBatch(ctx, completed)
		prom.RecordEvent(s.metrics, eventCompleted, err)
		if err != nil {
			s.logger.Warn("failed to publish batch events", logging.Int("count", len(completed)), logging.Err(err))
		}
	}

	prom.RecordBatchSize(s.metrics, input.Source, len(input.Items))
	out.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	s.logger.Info("batch prediction finished",
		logging.String("source", input.Source),
		logging.Int("total", out.Total),
		logging.Int("failed", out.Failed),
		logging.Float64("duration_ms", out.DurationMs))
	return out, nil
}

// run validates and predicts without side effects.
func (s *serviceImpl) run(ctx context.Context, input *PredictInput) (*domain.Recipe, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("prediction input is nil")
	}
	m := input.measurements()
	if err := m.ValidateWith(s.cfg.Rules); err != nil {
		return nil, err
	}
	p := s.pipeline
	if input.Regeneration != nil && *input.Regeneration != p.IncludesRegeneration() {
		p = p.Regeneration(*input.Regeneration)
	}
	return p.Run(ctx, m)
}

func (in *PredictInput) measurements() domain.Measurements {
	m := in.Measurements
	if in.ApproximateWs {
		m.TotalPoreVolume = domain.ApproximateTotalPoreVolume(m.LimitingAdsorption)
	}
	return m
}

func (s *serviceImpl) saveHistory(ctx context.Context, r *domain.Recipe) {
	if s.history == nil {
		return
	}
	start := time.Now()
	err := s.history.Save(ctx, r)
	prom.RecordHistoryWrite(s.metrics, time.Since(start), err)
	if err != nil {
		s.logger.Warn("failed to record prediction history", logging.RunID(r.ID), logging.Err(err))
	}
}

func (s *serviceImpl) publishCompleted(ctx context.Context, r *domain.Recipe) {
	if s.events == nil {
		return
	}
	err := s.events.PublishCompleted(ctx, r)
	prom.RecordEvent(s.metrics, eventCompleted, err)
	if err != nil {
		s.logger.Warn("failed to publish prediction event", logging.RunID(r.ID), logging.Err(err))
	}
}

// publishFailed reports aborted pipeline runs. Rejected input never reached
// the pipeline and is not reported.
func (s *serviceImpl) publishFailed(ctx context.Context, input *PredictInput, cause error) {
	if s.events == nil || input == nil || errors.IsValidation(cause) {
		return
	}
	err := s.events.PublishFailed(ctx, input.measurements(), cause)
	prom.RecordEvent(s.metrics, eventFailed, err)
	if err != nil {
		s.logger.Warn("failed to publish failure event", logging.Err(err))
	}
}

var errHistoryDisabled = errors.New(errors.ErrCodeServiceUnavailable, "prediction history is disabled")

func (s *serviceImpl) HistoryEnabled() bool { return s.history != nil }

func (s *serviceImpl) GetPrediction(ctx context.Context, id string) (*domain.Recipe, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	if id == "" {
		return nil, errors.NewInvalidInputError("prediction id is required")
	}
	return s.history.FindByID(ctx, id)
}

func (s *serviceImpl) ListPredictions(ctx context.Context, q domain.HistoryQuery) (*ListResult, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, errors.NewInvalidInputError("limit and offset must not be negative")
	}
	items, total, err := s.history.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Recipe{}
	}
	return &ListResult{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *serviceImpl) Close(ctx context.Context) error {
	return s.batch.Shutdown(ctx)
}
