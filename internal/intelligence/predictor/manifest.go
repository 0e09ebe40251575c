package predictor

import (
	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
)

// StandardManifest describes a full artifact set at the standard locations:
// one model and scaler per stage and one encoder per classifier.
func StandardManifest(version string) *common.Manifest {
	models := make(map[string]string)
	for _, st := range synthesis.AllStages() {
		s := synthesis.MustSchema(st)
		models[s.ModelKey] = s.EncoderKey
	}
	return common.LayoutManifest(version, models, synthesis.ScalerKeys(), synthesis.EncoderKeys())
}
