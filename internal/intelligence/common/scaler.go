package common

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Scaler kinds.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// Scaler is a fitted per-column transform. Columns are addressed by name so
// callers can hand over any ordering of the fitted feature set.
//
//	standard: (x - mean) / scale
//	minmax:   x*scale + min
type Scaler struct {
	Kind         string    `json:"kind"`
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean,omitempty"`
	Min          []float64 `json:"min,omitempty"`
	Scale        []float64 `json:"scale"`

	index map[string]int
}

// NewStandardScaler builds a standard scaler in memory.
func NewStandardScaler(names []string, mean, scale []float64) (*Scaler, error) {
	s := &Scaler{Kind: ScalerStandard, FeatureNames: names, Mean: mean, Scale: scale}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMinMaxScaler builds a min-max scaler in memory.
func NewMinMaxScaler(names []string, min, scale []float64) (*Scaler, error) {
	s := &Scaler{Kind: ScalerMinMax, FeatureNames: names, Min: min, Scale: scale}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeScaler reads a JSON scaler artifact.
func DecodeScaler(r io.Reader) (*Scaler, error) {
	var s Scaler
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scaler) init() error {
	n := len(s.FeatureNames)
	if n == 0 {
		return errors.New(errors.ErrCodeArtifactShape, "scaler has no feature_names")
	}
	if len(s.Scale) != n {
		return errors.Newf(errors.ErrCodeArtifactShape, "scaler scale has %d entries for %d features", len(s.Scale), n)
	}
	switch s.Kind {
	case ScalerStandard:
		if len(s.Mean) != n {
			return errors.Newf(errors.ErrCodeArtifactShape, "scaler mean has %d entries for %d features", len(s.Mean), n)
		}
	case ScalerMinMax:
		if len(s.Min) != n {
			return errors.Newf(errors.ErrCodeArtifactShape, "scaler min has %d entries for %d features", len(s.Min), n)
		}
	default:
		return errors.Newf(errors.ErrCodeArtifactShape, "unknown scaler kind %q", s.Kind)
	}
	s.index = make(map[string]int, n)
	for i, name := range s.FeatureNames {
		if _, dup := s.index[name]; dup {
			return errors.Newf(errors.ErrCodeArtifactShape, "duplicate scaler feature %q", name)
		}
		s.index[name] = i
	}
	return nil
}

// Len returns the number of fitted columns.
func (s *Scaler) Len() int { return len(s.FeatureNames) }

// Transform scales values, where values[i] belongs to column names[i]. The
// names must cover the fitted feature set exactly.
func (s *Scaler) Transform(names []string, values []float64) ([]float64, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("scaler: %d names for %d values", len(names), len(values))
	}
	if len(names) != len(s.FeatureNames) {
		return nil, errors.Newf(errors.ErrCodeArtifactShape,
			"scaler fitted on %d features, got %d", len(s.FeatureNames), len(names))
	}
	out := make([]float64, len(values))
	for i, name := range names {
		j, ok := s.index[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeArtifactShape, "column not fitted by scaler").
				WithDetail(fmt.Sprintf("column=%q", name))
		}
		scale := s.Scale[j]
		switch s.Kind {
		case ScalerStandard:
			// zero-variance columns are stored with scale 0 by some exporters
			if scale == 0 {
				scale = 1
			}
			out[i] = (values[i] - s.Mean[j]) / scale
		case ScalerMinMax:
			out[i] = values[i]*scale + s.Min[j]
		}
	}
	return out, nil
}

func (s *Scaler) footprint() int64 {
	var n int64
	for _, name := range s.FeatureNames {
		n += int64(len(name))
	}
	return n + int64(len(s.Mean)+len(s.Min)+len(s.Scale))*8
}
