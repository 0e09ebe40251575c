package synthesis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Alternative is one ranked class of a classifier stage.
type Alternative struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// StagePrediction is the immutable result of one stage. Numeric is set for
// regression stages and for classifier labels that parse as numbers
// (temperatures). Confidence, Alternatives and Probabilities are only set
// for classifier stages.
type StagePrediction struct {
	Stage         Stage              `json:"stage"`
	Value         string             `json:"value"`
	Numeric       *float64           `json:"numeric,omitempty"`
	Confidence    *float64           `json:"confidence,omitempty"`
	Alternatives  []Alternative      `json:"alternatives,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Cached        bool               `json:"cached,omitempty"`
}

// Recipe is the terminal aggregate of one pipeline run.
type Recipe struct {
	ID           string            `json:"id"`
	Inputs       Measurements      `json:"inputs"`
	Fingerprint  string            `json:"fingerprint"`
	Features     *FeatureFrame     `json:"features"`
	Branch       MetalBranch       `json:"branch"`
	Metal        string            `json:"metal"`
	Ligand       string            `json:"ligand"`
	Solvent      string            `json:"solvent"`
	SaltMass     float64           `json:"salt_mass_g"`
	AcidMass     float64           `json:"acid_mass_g"`
	SaltMoles    float64           `json:"salt_moles"`
	AcidMoles    float64           `json:"acid_moles"`
	Volume       float64           `json:"synthesis_volume_ml"`
	Tsyn         string            `json:"tsyn"`
	Tdry         string            `json:"tdry"`
	Treg         *string           `json:"treg,omitempty"`
	Stages       []StagePrediction `json:"stages"`
	ModelVersion string            `json:"model_version,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// NewRecipeID returns a random run identifier.
func NewRecipeID() string { return uuid.NewString() }

// StageResult returns the prediction of stage, if it ran.
func (r *Recipe) StageResult(stage Stage) (StagePrediction, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StagePrediction{}, false
}

// Confidence returns the confidence of a classifier stage, or 0.
func (r *Recipe) Confidence(stage Stage) float64 {
	if s, ok := r.StageResult(stage); ok && s.Confidence != nil {
		return *s.Confidence
	}
	return 0
}

// Duration is the wall time of the run.
func (r *Recipe) Duration() time.Duration { return r.CompletedAt.Sub(r.StartedAt) }

// HistoryQuery filters a prediction history listing.
type HistoryQuery struct {
	Metal  string
	Ligand string
	Since  time.Time
	Limit  int
	Offset int
}

// PredictionRepository persists completed recipes.
type PredictionRepository interface {
	// Save stores a completed recipe. Saving the same ID twice is a conflict.
	Save(ctx context.Context, r *Recipe) error

	// FindByID returns ErrCodePredictionNotFound if no recipe has that ID.
	FindByID(ctx context.Context, id string) (*Recipe, error)

	// List returns recipes newest first, and the total matching count.
	List(ctx context.Context, q HistoryQuery) ([]*Recipe, int64, error)
}
