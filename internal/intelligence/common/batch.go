package common

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Batch defaults.
const (
	DefaultBatchSize      = 32
	DefaultMaxConcurrency = 4
	DefaultItemTimeout    = 30 * time.Second
	DefaultBatchTimeout   = 10 * time.Minute
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrShutdown is returned by Process after Shutdown was called.
	ErrShutdown = errors.New(errors.ErrCodeServiceUnavailable, "batch processor is shut down")
	// ErrBackpressure is returned when accepting a batch would exceed the
	// configured pending-item threshold.
	ErrBackpressure = errors.New(errors.ErrCodeServiceUnavailable, "batch processor is saturated")
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// ProcessFunc handles one item. The context carries the per-item timeout.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// BatchProcessor runs a function over a slice of items with bounded
// concurrency. One item's failure never affects another.
type BatchProcessor[T, R any] interface {
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error)
	Shutdown(ctx context.Context) error
}

// ItemStatus is the outcome of one item.
type ItemStatus string

const (
	ItemStatusSuccess   ItemStatus = "success"
	ItemStatusFailed    ItemStatus = "failed"
	ItemStatusTimeout   ItemStatus = "timeout"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// ItemResult is the outcome of the item at Index.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result,omitempty"`
	Error      error      `json:"-"`
	Status     ItemStatus `json:"status"`
	DurationMs float64    `json:"duration_ms"`
}

// BatchResult holds per-item results in input order.
type BatchResult[R any] struct {
	Results           []*ItemResult[R] `json:"results"`
	TotalCount        int              `json:"total_count"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	Chunks            int              `json:"chunks"`
	TotalDurationMs   float64          `json:"total_duration_ms"`
	AvgItemDurationMs float64          `json:"avg_item_duration_ms"`
}

// ---------------------------------------------------------------------------
// BatchOption functional options
// ---------------------------------------------------------------------------

type batchConfig struct {
	name                  string
	batchSize             int
	maxConcurrency        int
	itemTimeout           time.Duration
	batchTimeout          time.Duration
	backpressureThreshold int
	progress              func(done, total int)
	metrics               IntelligenceMetrics
	logger                logging.Logger
}

func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		name:           "batch-processor",
		batchSize:      DefaultBatchSize,
		maxConcurrency: DefaultMaxConcurrency,
		itemTimeout:    DefaultItemTimeout,
		batchTimeout:   DefaultBatchTimeout,
	}
}

// BatchOption configures a batch processor.
type BatchOption func(*batchConfig)

// WithBatchName sets the label used in metrics and logs.
func WithBatchName(name string) BatchOption {
	return func(c *batchConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithBatchSize sets how many items are dispatched per chunk. A chunk
// finishes before the next one starts.
func WithBatchSize(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithMaxConcurrency sets the maximum number of items processed concurrently.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout sets the per-item processing timeout.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithBatchTimeout sets the overall batch processing timeout.
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithBackpressureThreshold sets the maximum pending-item count across
// concurrent Process calls. 0 disables back-pressure.
func WithBackpressureThreshold(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.backpressureThreshold = n
		}
	}
}

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn func(done, total int)) BatchOption {
	return func(c *batchConfig) {
		c.progress = fn
	}
}

// WithBatchMetrics injects a metrics collector.
func WithBatchMetrics(m IntelligenceMetrics) BatchOption {
	return func(c *batchConfig) {
		c.metrics = m
	}
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) {
		c.logger = l
	}
}

// ---------------------------------------------------------------------------
// batchProcessor implementation
// ---------------------------------------------------------------------------

type batchProcessor[T, R any] struct {
	cfg     *batchConfig
	metrics IntelligenceMetrics
	logger  logging.Logger

	shutdownOnce sync.Once
	isShutdown   atomic.Bool
	activeWg     sync.WaitGroup

	// number of items currently queued or in flight
	pendingCount atomic.Int64
}

// NewBatchProcessor creates a BatchProcessor with the supplied options.
func NewBatchProcessor[T, R any](opts ...BatchOption) BatchProcessor[T, R] {
	cfg := defaultBatchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewNoopIntelligenceMetrics()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNopLogger()
	}
	return &batchProcessor[T, R]{
		cfg:     cfg,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

func (bp *batchProcessor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.NewInvalidInputError("process function must not be nil")
	}
	if bp.isShutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &BatchResult[R]{Results: []*ItemResult[R]{}}, nil
	}

	if bp.cfg.backpressureThreshold > 0 {
		current := bp.pendingCount.Load()
		if current+int64(n) > int64(bp.cfg.backpressureThreshold) {
			return nil, ErrBackpressure
		}
	}
	bp.pendingCount.Add(int64(n))
	defer bp.pendingCount.Add(-int64(n))

	bp.activeWg.Add(1)
	defer bp.activeWg.Done()

	batchStart := time.Now()
	batchCtx, batchCancel := context.WithTimeout(ctx, bp.cfg.batchTimeout)
	defer batchCancel()

	results := make([]*ItemResult[R], n)
	chunks := 0
	for start := 0; start < n; start += bp.cfg.batchSize {
		end := start + bp.cfg.batchSize
		if end > n {
			end = n
		}

		var g errgroup.Group
		g.SetLimit(bp.cfg.maxConcurrency)
		for i := start; i < end; i++ {
			if err := batchCtx.Err(); err != nil {
				results[i] = &ItemResult[R]{Index: i, Error: err, Status: classifyCtxError(err)}
				continue
			}
			idx, item := i, items[i]
			g.Go(func() error {
				results[idx] = bp.processOneItem(batchCtx, idx, item, fn)
				return nil
			})
		}
		_ = g.Wait() // errors are captured per item
		chunks++

		bp.logger.Debug("batch chunk finished",
			logging.String("batch", bp.cfg.name),
			logging.Int("done", end),
			logging.Int("total", n))
		if bp.cfg.progress != nil {
			bp.cfg.progress(end, n)
		}
	}

	br := bp.buildBatchResult(results, chunks, time.Since(batchStart))
	bp.recordMetrics(ctx, br)
	return br, nil
}

func (bp *batchProcessor[T, R]) Shutdown(ctx context.Context) error {
	bp.shutdownOnce.Do(func() {
		bp.isShutdown.Store(true)
	})

	done := make(chan struct{})
	go func() {
		bp.activeWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processOneItem runs fn under the per-item timeout and converts panics into
// item failures.
func (bp *batchProcessor[T, R]) processOneItem(batchCtx context.Context, idx int, item T, fn ProcessFunc[T, R]) (ir *ItemResult[R]) {
	itemStart := time.Now()
	itemCtx, cancel := context.WithTimeout(batchCtx, bp.cfg.itemTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			bp.logger.Error("batch item panicked",
				logging.String("batch", bp.cfg.name),
				logging.Int("index", idx),
				logging.Any("panic", rec))
			ir = &ItemResult[R]{
				Index:      idx,
				Error:      errors.Newf(errors.ErrCodeInternal, "item %d panicked: %v", idx, rec),
				Status:     ItemStatusFailed,
				DurationMs: msSince(itemStart),
			}
		}
	}()

	result, err := fn(itemCtx, item)
	if err == nil {
		return &ItemResult[R]{
			Index:      idx,
			Result:     result,
			Status:     ItemStatusSuccess,
			DurationMs: msSince(itemStart),
		}
	}
	return &ItemResult[R]{
		Index:      idx,
		Error:      err,
		Status:     classifyError(itemCtx, err),
		DurationMs: msSince(itemStart),
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (bp *batchProcessor[T, R]) buildBatchResult(results []*ItemResult[R], chunks int, total time.Duration) *BatchResult[R] {
	br := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(results),
		Chunks:          chunks,
		TotalDurationMs: float64(total.Microseconds()) / 1000.0,
	}
	var sumItemMs float64
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
		sumItemMs += r.DurationMs
	}
	if br.TotalCount > 0 {
		br.AvgItemDurationMs = sumItemMs / float64(br.TotalCount)
	}
	return br
}

func (bp *batchProcessor[T, R]) recordMetrics(ctx context.Context, br *BatchResult[R]) {
	p := &BatchMetricParams{
		BatchName:         bp.cfg.name,
		TotalItems:        br.TotalCount,
		SuccessItems:      br.SuccessCount,
		Chunks:            br.Chunks,
		TotalDurationMs:   br.TotalDurationMs,
		AvgItemDurationMs: br.AvgItemDurationMs,
		MaxConcurrency:    bp.cfg.maxConcurrency,
	}
	for _, r := range br.Results {
		switch r.Status {
		case ItemStatusFailed:
			p.FailedItems++
		case ItemStatusTimeout:
			p.TimeoutItems++
		case ItemStatusCancelled:
			p.CancelledItems++
		}
	}
	bp.metrics.RecordBatchProcessing(ctx, p)
	bp.logger.Info("batch finished",
		logging.String("batch", bp.cfg.name),
		logging.Int("total", br.TotalCount),
		logging.Int("succeeded", br.SuccessCount),
		logging.Int("failed", br.FailureCount),
		logging.Float64("duration_ms", br.TotalDurationMs))
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ItemStatusTimeout
	}
	return ItemStatusCancelled
}

func classifyError(itemCtx context.Context, err error) ItemStatus {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stderrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	}
	// the function may swallow the context error; trust the context itself
	switch itemCtx.Err() {
	case context.DeadlineExceeded:
		return ItemStatusTimeout
	case context.Canceled:
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
