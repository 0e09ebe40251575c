package common

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Model kinds accepted by DecodeModel.
const (
	ModelKindMLP          = "mlp"
	ModelKindTreeEnsemble = "tree_ensemble"
	ModelKindLinear       = "linear"
)

// Model is a loaded, immutable inference function over one feature vector.
// Implementations are safe for concurrent use.
type Model interface {
	Kind() string
	Output() OutputKind
	InputWidth() int
	OutputWidth() int
	// Predict returns logits, probabilities or a single scalar, as reported
	// by Output.
	Predict(x []float64) ([]float64, error)
	// ParamCount is the number of stored float parameters.
	ParamCount() int
}

type modelHeader struct {
	Kind string `json:"kind"`
}

// DecodeModel reads a JSON model artifact of any supported kind.
func DecodeModel(r io.Reader) (Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var h modelHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode model header: %w", err)
	}
	switch h.Kind {
	case ModelKindMLP:
		return decodeMLP(data)
	case ModelKindTreeEnsemble:
		return decodeTreeEnsemble(data)
	case ModelKindLinear:
		return decodeLinear(data)
	case "":
		return nil, errors.New(errors.ErrCodeArtifactShape, "model kind missing")
	default:
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "unsupported model kind %q", h.Kind)
	}
}

// CheckClasses verifies that a classifier emits one value per encoder class.
// A single-output binary model is accepted for a two-class encoder.
func CheckClasses(m Model, classes int) error {
	if m.Output() == OutputScalar {
		return errors.Newf(errors.ErrCodeArtifactShape,
			"classifier model has scalar output, encoder has %d classes", classes)
	}
	w := m.OutputWidth()
	if w == classes || (classes == 2 && w == 1) {
		return nil
	}
	return errors.Newf(errors.ErrCodeArtifactShape,
		"model emits %d outputs, encoder has %d classes", w, classes)
}

func checkInput(m Model, x []float64) error {
	if len(x) != m.InputWidth() {
		return errors.Newf(errors.ErrCodeAIInputInvalid,
			"%s model expects %d features, got %d", m.Kind(), m.InputWidth(), len(x))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output transforms
// ---------------------------------------------------------------------------

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Softmax returns the normalised exponentials of z.
func Softmax(z []float64) []float64 {
	out := make([]float64, len(z))
	if len(z) == 0 {
		return out
	}
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value; ties resolve to the lowest
// index. It returns -1 for an empty slice.
func Argmax(v []float64) int {
	best := -1
	for i, x := range v {
		if best < 0 || x > v[best] {
			best = i
		}
	}
	return best
}

// logit is the inverse of Sigmoid for p in (0,1).
func logit(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return math.Log(p / (1 - p))
}
