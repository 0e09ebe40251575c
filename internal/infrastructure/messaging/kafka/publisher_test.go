package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func sampleRecipe(id string) *synthesis.Recipe {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	treg := "200"
	return &synthesis.Recipe{
		ID:           id,
		Inputs:       synthesis.Measurements{SurfaceArea: 1200, LimitingAdsorption: 10.5, NitrogenEnergy: 6.5, TotalPoreVolume: 0.45, MesoporeSurface: 200},
		Fingerprint:  "40493b780ab92b135c33c9bb639624ad",
		Branch:       synthesis.BranchCuAlFe,
		Metal:        "Cu",
		Ligand:       "BTC",
		Solvent:      "ДМФА",
		SaltMass:     1.234,
		AcidMass:     0.846,
		Volume:       30,
		Tsyn:         "120",
		Tdry:         "100",
		Treg:         &treg,
		ModelVersion: "v1",
		StartedAt:    started,
		CompletedAt:  started.Add(250 * time.Millisecond),
	}
}

func capturePublisher(t *testing.T, writeErr error) (*PredictionEventPublisher, *[]kafka.Message) {
	t.Helper()
	var sent []kafka.Message
	producer := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			sent = append(sent, msgs...)
			return writeErr
		},
	})
	return NewPredictionEventPublisher(producer, "adsorpnet.predictions", nil), &sent
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishCompleted(t *testing.T) {
	pub, sent := capturePublisher(t, nil)
	rec := sampleRecipe("run-1")

	require.NoError(t, pub.PublishCompleted(context.Background(), rec))
	require.Len(t, *sent, 1)
	msg := (*sent)[0]
	assert.Equal(t, "adsorpnet.predictions", msg.Topic)
	assert.Equal(t, "run-1", string(msg.Key))
	assert.Equal(t, EventPredictionCompleted, headerValue(msg, "event_type"))

	env, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "v1", env.Metadata["model_version"])

	var payload PredictionCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "Cu-Al-Fe", payload.Branch)
	assert.Equal(t, "BTC", payload.Ligand)
	assert.Equal(t, int64(250), payload.DurationMs)
	require.NotNil(t, payload.Treg)
	assert.Equal(t, "200", *payload.Treg)
}

func TestPublishCompleted_NilRecipe(t *testing.T) {
	pub, sent := capturePublisher(t, nil)
	assert.Error(t, pub.PublishCompleted(context.Background(), nil))
	assert.Empty(t, *sent)
}

func TestPublishCompletedBatch(t *testing.T) {
	pub, sent := capturePublisher(t, nil)
	require.NoError(t, pub.PublishCompletedBatch(context.Background(), []*synthesis.Recipe{sampleRecipe("a"), sampleRecipe("b")}))
	require.Len(t, *sent, 2)
	assert.Equal(t, "a", string((*sent)[0].Key))
	assert.Equal(t, "b", string((*sent)[1].Key))

	assert.NoError(t, pub.PublishCompletedBatch(context.Background(), nil))
}

func TestPublishCompletedBatch_PartialFailure(t *testing.T) {
	pub, _ := capturePublisher(t, kafka.WriteErrors{nil, stderrors.New("leader not available")})
	err := pub.PublishCompletedBatch(context.Background(), []*synthesis.Recipe{sampleRecipe("a"), sampleRecipe("b")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}

func TestPublishFailed(t *testing.T) {
	pub, sent := capturePublisher(t, nil)
	m := sampleRecipe("x").Inputs
	cause := errors.UnknownSubstance("ligand", "XYZ")

	require.NoError(t, pub.PublishFailed(context.Background(), m, cause))
	require.Len(t, *sent, 1)
	msg := (*sent)[0]
	assert.Equal(t, "40493b780ab92b135c33c9bb639624ad", string(msg.Key))
	assert.Equal(t, EventPredictionFailed, headerValue(msg, "event_type"))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	var payload PredictionFailedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, string(errors.ErrCodeUnknownSubstance), payload.Code)
	assert.Equal(t, m, payload.Inputs)
}

func TestPublishFailed_ProducerError(t *testing.T) {
	pub, _ := capturePublisher(t, stderrors.New("broker down"))
	err := pub.PublishFailed(context.Background(), synthesis.Measurements{}, stderrors.New("boom"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}
