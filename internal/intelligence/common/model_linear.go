package common

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Link functions for LinearModel.
const (
	LinkIdentity = "identity"
	LinkLogistic = "logistic"
	LinkSoftmax  = "softmax"
)

// LinearSpec is the on-disk form of a LinearModel. Kind is always "linear".
type LinearSpec struct {
	Kind      string      `json:"kind"`
	Output    OutputKind  `json:"output"`
	Link      string      `json:"link,omitempty"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// LinearModel is a (multi-output) linear or logistic regression.
type LinearModel struct {
	output OutputKind
	link   string
	coef   *mat.Dense
	icpt   *mat.VecDense
	in     int
	out    int
}

// NewLinearModel builds a linear model with coef laid out out×in.
func NewLinearModel(output OutputKind, link string, coef [][]float64, intercept []float64) (*LinearModel, error) {
	if !output.valid() {
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "linear: unknown output kind %q", output)
	}
	if link == "" {
		link = LinkIdentity
	}
	switch link {
	case LinkIdentity, LinkLogistic, LinkSoftmax:
	default:
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "linear: unknown link %q", link)
	}
	if output == OutputProbabilities && link == LinkIdentity {
		return nil, errors.New(errors.ErrCodeArtifactShape, "linear: probability output needs a logistic or softmax link")
	}
	rows := len(coef)
	if rows == 0 || len(coef[0]) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactShape, "linear: empty coefficients")
	}
	cols := len(coef[0])
	if len(intercept) != rows {
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "linear: %d intercepts for %d outputs", len(intercept), rows)
	}
	flat := make([]float64, 0, rows*cols)
	for i, r := range coef {
		if len(r) != cols {
			return nil, errors.Newf(errors.ErrCodeArtifactShape, "linear: coefficient row %d is ragged", i)
		}
		flat = append(flat, r...)
	}
	if output == OutputScalar && rows != 1 {
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "linear: scalar output with %d rows", rows)
	}
	return &LinearModel{
		output: output,
		link:   link,
		coef:   mat.NewDense(rows, cols, flat),
		icpt:   mat.NewVecDense(rows, append([]float64(nil), intercept...)),
		in:     cols,
		out:    rows,
	}, nil
}

func decodeLinear(data []byte) (Model, error) {
	var f LinearSpec
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode linear: %w", err)
	}
	m, err := f.Build()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Build validates the definition and returns the model.
func (f LinearSpec) Build() (*LinearModel, error) {
	return NewLinearModel(f.Output, f.Link, f.Coef, f.Intercept)
}

func (m *LinearModel) Kind() string       { return ModelKindLinear }
func (m *LinearModel) Output() OutputKind { return m.output }
func (m *LinearModel) InputWidth() int    { return m.in }
func (m *LinearModel) OutputWidth() int   { return m.out }
func (m *LinearModel) ParamCount() int    { return m.in*m.out + m.out }

// Predict computes coef·x + intercept followed by the link function.
func (m *LinearModel) Predict(x []float64) ([]float64, error) {
	if err := checkInput(m, x); err != nil {
		return nil, err
	}
	y := mat.NewVecDense(m.out, nil)
	y.MulVec(m.coef, mat.NewVecDense(len(x), append([]float64(nil), x...)))
	y.AddVec(y, m.icpt)
	out := make([]float64, m.out)
	for i := range out {
		out[i] = y.AtVec(i)
	}
	switch m.link {
	case LinkLogistic:
		for i, v := range out {
			out[i] = Sigmoid(v)
		}
	case LinkSoftmax:
		out = Softmax(out)
	}
	return out, nil
}
