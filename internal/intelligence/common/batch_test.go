package common

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchProcessor_Defaults(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	require.NotNil(t, bp)

	impl := bp.(*batchProcessor[string, string])
	assert.Equal(t, DefaultBatchSize, impl.cfg.batchSize)
	assert.Equal(t, DefaultMaxConcurrency, impl.cfg.maxConcurrency)
	assert.Equal(t, DefaultItemTimeout, impl.cfg.itemTimeout)

	// non-positive values keep the defaults
	impl = NewBatchProcessor[string, string](WithBatchSize(0), WithMaxConcurrency(-1)).(*batchProcessor[string, string])
	assert.Equal(t, DefaultBatchSize, impl.cfg.batchSize)
	assert.Equal(t, DefaultMaxConcurrency, impl.cfg.maxConcurrency)
}

func TestProcess_AllSuccess(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	items := []string{"a", "b", "c"}
	fn := func(ctx context.Context, item string) (string, error) {
		return item + "_processed", nil
	}

	res, err := bp.Process(context.Background(), items, fn)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 3, res.SuccessCount)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, ItemStatusSuccess, r.Status)
		assert.Equal(t, items[i]+"_processed", r.Result)
	}
}

func TestProcess_FailureIsIsolated(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	fn := func(ctx context.Context, item int) (int, error) {
		if item%2 == 1 {
			return 0, errors.New("odd")
		}
		return item * 10, nil
	}

	res, err := bp.Process(context.Background(), []int{0, 1, 2, 3}, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
	assert.EqualError(t, res.Results[3].Error, "odd")
	assert.Equal(t, 20, res.Results[2].Result)
}

func TestProcess_EmptyAndNilFunc(t *testing.T) {
	bp := NewBatchProcessor[int, int]()

	res, err := bp.Process(context.Background(), nil, func(context.Context, int) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	_, err = bp.Process(context.Background(), []int{1}, nil)
	assert.Error(t, err)
}

func TestProcess_RespectsMaxConcurrency(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(2), WithBatchSize(10))

	var inFlight, peak atomic.Int32
	fn := func(ctx context.Context, item int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return item, nil
	}

	res, err := bp.Process(context.Background(), make([]int, 8), fn)
	require.NoError(t, err)
	assert.Equal(t, 8, res.SuccessCount)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcess_ItemTimeout(t *testing.T) {
	bp := NewBatchProcessor[time.Duration, string](WithItemTimeout(20 * time.Millisecond))
	fn := func(ctx context.Context, d time.Duration) (string, error) {
		select {
		case <-time.After(d):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	res, err := bp.Process(context.Background(), []time.Duration{0, time.Second}, fn)
	require.NoError(t, err)
	assert.Equal(t, ItemStatusSuccess, res.Results[0].Status)
	assert.Equal(t, ItemStatusTimeout, res.Results[1].Status)
}

func TestProcess_ChunksAndProgress(t *testing.T) {
	var mu sync.Mutex
	var reports [][2]int
	metrics := NewInMemoryIntelligenceMetrics()
	bp := NewBatchProcessor[int, int](
		WithBatchName("recipes"),
		WithBatchSize(2),
		WithBatchMetrics(metrics),
		WithProgress(func(done, total int) {
			mu.Lock()
			reports = append(reports, [2]int{done, total})
			mu.Unlock()
		}),
	)

	res, err := bp.Process(context.Background(), []int{1, 2, 3, 4, 5}, func(_ context.Context, i int) (int, error) {
		return i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, reports)

	batches := metrics.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "recipes", batches[0].BatchName)
	assert.Equal(t, 5, batches[0].SuccessItems)
	assert.Equal(t, 3, batches[0].Chunks)
}

func TestProcess_PanicBecomesFailure(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	res, err := bp.Process(context.Background(), []int{1, 2}, func(_ context.Context, i int) (int, error) {
		if i == 2 {
			panic("boom")
		}
		return i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, ItemStatusSuccess, res.Results[0].Status)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
	assert.Contains(t, res.Results[1].Error.Error(), "boom")
}

func TestProcess_CancelledContext(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := bp.Process(ctx, []int{1, 2, 3}, func(_ context.Context, i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, res.FailureCount)
	for _, r := range res.Results {
		assert.Equal(t, ItemStatusCancelled, r.Status)
	}
}

func TestProcess_Backpressure(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithBackpressureThreshold(2))

	_, err := bp.Process(context.Background(), []int{1, 2, 3}, func(_ context.Context, i int) (int, error) { return i, nil })
	assert.ErrorIs(t, err, ErrBackpressure)

	res, err := bp.Process(context.Background(), []int{1, 2}, func(_ context.Context, i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
}

func TestShutdown_RejectsNewBatches(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := bp.Process(context.Background(), []int{1}, func(_ context.Context, i int) (int, error) {
			close(started)
			<-release
			return i, nil
		})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, bp.Shutdown(ctx), "in-flight batch keeps shutdown waiting")

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, bp.Shutdown(context.Background()))

	_, err := bp.Process(context.Background(), []int{1}, func(_ context.Context, i int) (int, error) { return i, nil })
	assert.ErrorIs(t, err, ErrShutdown)
}
