package kafka

import (
	"context"
	"time"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// PredictionCompletedPayload is the event body of a finished run.
type PredictionCompletedPayload struct {
	RunID        string                 `json:"run_id"`
	Fingerprint  string                 `json:"fingerprint"`
	Inputs       synthesis.Measurements `json:"inputs"`
	Branch       string                 `json:"branch"`
	Metal        string                 `json:"metal"`
	Ligand       string                 `json:"ligand"`
	Solvent      string                 `json:"solvent"`
	SaltMass     float64                `json:"salt_mass_g"`
	AcidMass     float64                `json:"acid_mass_g"`
	Volume       float64                `json:"synthesis_volume_ml"`
	Tsyn         string                 `json:"tsyn"`
	Tdry         string                 `json:"tdry"`
	Treg         *string                `json:"treg,omitempty"`
	ModelVersion string                 `json:"model_version,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
	CompletedAt  time.Time              `json:"completed_at"`
}

// PredictionFailedPayload is the event body of an aborted run.
type PredictionFailedPayload struct {
	Fingerprint string                 `json:"fingerprint"`
	Inputs      synthesis.Measurements `json:"inputs"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	FailedAt    time.Time              `json:"failed_at"`
}

// NewCompletedPayload flattens a recipe into its event body.
func NewCompletedPayload(r *synthesis.Recipe) PredictionCompletedPayload {
	return PredictionCompletedPayload{
		RunID:        r.ID,
		Fingerprint:  r.Fingerprint,
		Inputs:       r.Inputs,
		Branch:       r.Branch.String(),
		Metal:        r.Metal,
		Ligand:       r.Ligand,
		Solvent:      r.Solvent,
		SaltMass:     r.SaltMass,
		AcidMass:     r.AcidMass,
		Volume:       r.Volume,
		Tsyn:         r.Tsyn,
		Tdry:         r.Tdry,
		Treg:         r.Treg,
		ModelVersion: r.ModelVersion,
		DurationMs:   r.Duration().Milliseconds(),
		CompletedAt:  r.CompletedAt,
	}
}

// publisher is the subset of Producer used for events.
type publisher interface {
	Publish(ctx context.Context, msg *Message) error
	PublishBatch(ctx context.Context, msgs []*Message) (*BatchPublishResult, error)
}

// PredictionEventPublisher emits one event per pipeline run. Completed
// events are keyed by run ID, failures by input fingerprint.
type PredictionEventPublisher struct {
	producer publisher
	topic    string
	logger   logging.Logger
}

// NewPredictionEventPublisher publishes to topic through producer.
func NewPredictionEventPublisher(producer publisher, topic string, log logging.Logger) *PredictionEventPublisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PredictionEventPublisher{producer: producer, topic: topic, logger: log.Named("prediction_events")}
}

// PublishCompleted emits a prediction.completed event.
func (p *PredictionEventPublisher) PublishCompleted(ctx context.Context, r *synthesis.Recipe) error {
	msg, err := p.completedMessage(r)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// PublishCompletedBatch emits one event per recipe in a single write. It
// returns an error if any event could not be delivered.
func (p *PredictionEventPublisher) PublishCompletedBatch(ctx context.Context, recipes []*synthesis.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	msgs := make([]*Message, 0, len(recipes))
	for _, r := range recipes {
		msg, err := p.completedMessage(r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	res, err := p.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		p.logger.Warn("some prediction events were not delivered",
			logging.Int("failed", res.Failed), logging.Int("succeeded", res.Succeeded))
		return errors.Newf(errors.ErrCodeMessagingError, "%d of %d prediction events failed", res.Failed, len(msgs))
	}
	return nil
}

// PublishFailed emits a prediction.failed event for the inputs of an
// aborted run.
func (p *PredictionEventPublisher) PublishFailed(ctx context.Context, m synthesis.Measurements, cause error) error {
	fp := predictor.Fingerprint(m.Inputs())
	env, err := NewEventEnvelope(EventPredictionFailed, SourceService, PredictionFailedPayload{
		Fingerprint: fp,
		Inputs:      m,
		Code:        errors.GetCode(cause).String(),
		Message:     cause.Error(),
		FailedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, fp)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *PredictionEventPublisher) completedMessage(r *synthesis.Recipe) (*Message, error) {
	if r == nil {
		return nil, errors.NewInvalidInputError("recipe is nil")
	}
	env, err := NewEventEnvelope(EventPredictionCompleted, SourceService, NewCompletedPayload(r))
	if err != nil {
		return nil, err
	}
	env.Metadata = map[string]string{"model_version": r.ModelVersion}
	return env.ToMessage(p.topic, r.ID)
}
