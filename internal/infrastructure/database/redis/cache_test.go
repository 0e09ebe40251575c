package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/AdsorpNET/internal/config"
	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	pkgerrors "github.com/turtacn/AdsorpNET/pkg/errors"
)

func sampleResult() *predictor.CachedResult {
	conf := 0.82
	return &predictor.CachedResult{
		Prediction: synthesis.StagePrediction{
			Stage:         synthesis.StageLigand,
			Value:         "BTC",
			Confidence:    &conf,
			Alternatives:  []synthesis.Alternative{{Label: "BTC", Probability: conf}},
			Probabilities: map[string]float64{"BTC": conf, "BDC": 1 - conf},
		},
		Version:  "v1",
		StoredAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

type ResultCacheSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *ResultCache
}

func (s *ResultCacheSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientFromUniversal(db, config.RedisConfig{KeyPrefix: "test:"}, logging.NewNopLogger())
	s.cache = NewResultCache(client, logging.NewNopLogger())
}

func (s *ResultCacheSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *ResultCacheSuite) TestGet_Hit() {
	data, err := json.Marshal(sampleResult())
	s.Require().NoError(err)
	s.mock.ExpectGet("test:result:ligand:abc").SetVal(string(data))

	got, ok := s.cache.Get(context.Background(), "abc", synthesis.StageLigand)
	s.Require().True(ok)
	s.Equal("BTC", got.Prediction.Value)
	s.Equal(0.82, *got.Prediction.Confidence)
	s.Equal("v1", got.Version)
	s.Equal(int64(1), s.cache.Stats().Hits)
}

func (s *ResultCacheSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:result:tsyn:abc").RedisNil()

	_, ok := s.cache.Get(context.Background(), "abc", synthesis.StageTsyn)
	s.False(ok)
	s.Equal(int64(1), s.cache.Stats().Misses)
	s.Equal(int64(0), s.cache.Errors())
}

func (s *ResultCacheSuite) TestGet_BackendErrorIsAMiss() {
	s.mock.ExpectGet("test:result:vsyn:abc").SetErr(stderrors.New("connection reset"))

	_, ok := s.cache.Get(context.Background(), "abc", synthesis.StageVsyn)
	s.False(ok)
	s.Equal(int64(1), s.cache.Errors())
}

func (s *ResultCacheSuite) TestGet_CorruptEntryIsAMiss() {
	s.mock.ExpectGet("test:result:vsyn:abc").SetVal("{not json")

	_, ok := s.cache.Get(context.Background(), "abc", synthesis.StageVsyn)
	s.False(ok)
	s.Equal(int64(1), s.cache.Errors())
}

func (s *ResultCacheSuite) TestClear_ScansPrefix() {
	s.mock.ExpectScan(0, "test:result:*", scanBatch).SetVal([]string{"test:result:a:1", "test:result:b:1"}, 7)
	s.mock.ExpectDel("test:result:a:1", "test:result:b:1").SetVal(2)
	s.mock.ExpectScan(7, "test:result:*", scanBatch).SetVal([]string{"test:result:c:1"}, 0)
	s.mock.ExpectDel("test:result:c:1").SetVal(1)

	s.NoError(s.cache.Clear(context.Background()))
}

func (s *ResultCacheSuite) TestClear_Failure() {
	s.mock.ExpectScan(0, "test:result:*", scanBatch).SetErr(stderrors.New("LOADING"))

	err := s.cache.Clear(context.Background())
	s.Require().Error(err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestResultCacheSuite(t *testing.T) {
	suite.Run(t, new(ResultCacheSuite))
}

func newMiniredisCache(t *testing.T) (*miniredis.Miniredis, *ResultCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, NewResultCache(client, nil)
}

func TestResultCache_RoundTrip(t *testing.T) {
	mr, c := newMiniredisCache(t)
	ctx := context.Background()

	c.Put(ctx, "fp", synthesis.StageLigand, sampleResult(), 2*time.Hour)
	key := DefaultKeyPrefix + "result:ligand:fp"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Hour, mr.TTL(key))

	got, ok := c.Get(ctx, "fp", synthesis.StageLigand)
	require.True(t, ok)
	assert.Equal(t, sampleResult().Prediction, got.Prediction)
	assert.True(t, sampleResult().StoredAt.Equal(got.StoredAt))

	mr.FastForward(2*time.Hour + time.Second)
	_, ok = c.Get(ctx, "fp", synthesis.StageLigand)
	assert.False(t, ok)
}

func TestResultCache_ClearKeepsForeignKeys(t *testing.T) {
	mr, c := newMiniredisCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("session:1", "x"))

	c.Put(ctx, "a", synthesis.StageLigand, sampleResult(), 0)
	c.Put(ctx, "a", synthesis.StageSolvent, sampleResult(), time.Hour)
	n, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Duration(0), mr.TTL(DefaultKeyPrefix+"result:ligand:a"))

	require.NoError(t, c.Clear(ctx))
	n, err = c.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("session:1"))
}

func TestResultCache_ClosedClientDegradesToMiss(t *testing.T) {
	_, c := newMiniredisCache(t)
	ctx := context.Background()

	c.client.Close()
	c.Put(ctx, "fp", synthesis.StageLigand, sampleResult(), time.Hour)
	_, ok := c.Get(ctx, "fp", synthesis.StageLigand)
	assert.False(t, ok)
	assert.Equal(t, int64(2), c.Errors())
	assert.Equal(t, "redis", c.Stats().Backend)
}
