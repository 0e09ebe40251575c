package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	closeFunc  func() error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func TestDefaultTopics(t *testing.T) {
	defaults := DefaultTopics("adsorpnet.predictions")
	require.Len(t, defaults, 1)
	assert.Equal(t, "adsorpnet.predictions", defaults[0].Name)
	assert.Positive(t, defaults[0].NumPartitions)
}

func TestCreateTopic_Success(t *testing.T) {
	var created []kafka.TopicConfig
	m := NewTopicManagerWithConn(&mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			created = topics
			return nil
		},
	}, nil)

	err := m.CreateTopic(context.Background(), TopicConfig{Name: "test", NumPartitions: 1, ReplicationFactor: 1, Retention: defaultRetention})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "test", created[0].Topic)
	assert.Equal(t, []kafka.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: "1209600000"}}, created[0].ConfigEntries)
}

func TestCreateTopic_SkipsExisting(t *testing.T) {
	m := NewTopicManagerWithConn(&mockKafkaConn{
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: topics[0], ID: 0}}, nil
		},
		createFunc: func(topics ...kafka.TopicConfig) error {
			t.Fatal("existing topic must not be recreated")
			return nil
		},
	}, nil)
	assert.NoError(t, m.EnsureTopics(context.Background(), DefaultTopics("t")))
}

func TestCreateTopic_Invalid(t *testing.T) {
	m := NewTopicManagerWithConn(&mockKafkaConn{}, nil)
	ctx := context.Background()
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t", ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1}))
}

func TestCreateTopic_BrokerError(t *testing.T) {
	m := NewTopicManagerWithConn(&mockKafkaConn{
		createFunc: func(...kafka.TopicConfig) error { return stderrors.New("not controller") },
	}, nil)
	err := m.CreateTopic(context.Background(), TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}

func TestNewTopicManager_NoBrokers(t *testing.T) {
	_, err := NewTopicManager(nil, nil)
	assert.Error(t, err)
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventPredictionFailed, SourceService, PredictionFailedPayload{Code: "SYN_002"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	msg, err := env.ToMessage("topic", "key")
	require.NoError(t, err)
	assert.Equal(t, EventPredictionFailed, msg.Headers["event_type"])
	assert.Equal(t, "key", string(msg.Key))

	decoded, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	var payload PredictionFailedPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "SYN_002", payload.Code)

	_, err = DecodeEnvelope(nil)
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte("{"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}
