package synthesis

import (
	"fmt"
	"math"
	"strings"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// ValidationRules are the lower bounds applied to raw measurements.
type ValidationRules struct {
	MinSurfaceArea        float64
	MinLimitingAdsorption float64
	MinNitrogenEnergy     float64
	MinTotalPoreVolume    float64
	MinMesoporeSurface    float64
}

// DefaultValidationRules: SБЭТ ≥ 100, everything else ≥ 0.
var DefaultValidationRules = ValidationRules{MinSurfaceArea: 100}

// Validate checks m against DefaultValidationRules.
func (m Measurements) Validate() error {
	return m.ValidateWith(DefaultValidationRules)
}

// ValidateWith reports every violated rule in a single ErrCodeValidation
// error, or nil.
func (m Measurements) ValidateWith(r ValidationRules) error {
	checks := []struct {
		name string
		v    float64
		min  float64
	}{
		{"sbet", m.SurfaceArea, r.MinSurfaceArea},
		{"a0", m.LimitingAdsorption, r.MinLimitingAdsorption},
		{"e", m.NitrogenEnergy, r.MinNitrogenEnergy},
		{"ws", m.TotalPoreVolume, r.MinTotalPoreVolume},
		{"sme", m.MesoporeSurface, r.MinMesoporeSurface},
	}

	var violations []string
	for _, c := range checks {
		switch {
		case math.IsNaN(c.v) || math.IsInf(c.v, 0):
			violations = append(violations, fmt.Sprintf("%s must be finite", c.name))
		case c.v < c.min:
			violations = append(violations, fmt.Sprintf("%s must be ≥ %g, got %g", c.name, c.min, c.v))
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return errors.ValidationError("invalid measurements").WithDetail(strings.Join(violations, "; "))
}
