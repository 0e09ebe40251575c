package common

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Activation names for dense layers.
const (
	ActivationIdentity = "identity"
	ActivationReLU     = "relu"
	ActivationTanh     = "tanh"
	ActivationSigmoid  = "sigmoid"
)

// DenseLayer is one fully connected layer as stored on disk. Weights are
// laid out out×in, one row per output unit.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation,omitempty"`
}

// MLPSpec is the on-disk form of an MLPModel. Kind is always "mlp".
type MLPSpec struct {
	Kind   string       `json:"kind"`
	Output OutputKind   `json:"output"`
	Layers []DenseLayer `json:"layers"`
}

type denseLayer struct {
	w   *mat.Dense
	b   *mat.VecDense
	act func(float64) float64
}

// MLPModel is a feed-forward network evaluated with gonum.
type MLPModel struct {
	output OutputKind
	layers []denseLayer
	in     int
	out    int
	params int
}

// NewMLPModel validates layers and builds the network.
func NewMLPModel(output OutputKind, layers []DenseLayer) (*MLPModel, error) {
	if !output.valid() {
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "mlp: unknown output kind %q", output)
	}
	if len(layers) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactShape, "mlp: no layers")
	}
	m := &MLPModel{output: output}
	prev := 0
	for li, l := range layers {
		rows := len(l.Weights)
		if rows == 0 || len(l.Weights[0]) == 0 {
			return nil, errors.Newf(errors.ErrCodeArtifactShape, "mlp: layer %d has empty weights", li)
		}
		cols := len(l.Weights[0])
		if li > 0 && cols != prev {
			return nil, errors.Newf(errors.ErrCodeArtifactShape,
				"mlp: layer %d expects %d inputs, previous layer emits %d", li, cols, prev)
		}
		if len(l.Bias) != rows {
			return nil, errors.Newf(errors.ErrCodeArtifactShape,
				"mlp: layer %d has %d biases for %d units", li, len(l.Bias), rows)
		}
		flat := make([]float64, 0, rows*cols)
		for ri, row := range l.Weights {
			if len(row) != cols {
				return nil, errors.Newf(errors.ErrCodeArtifactShape, "mlp: layer %d row %d is ragged", li, ri)
			}
			flat = append(flat, row...)
		}
		act, err := activation(l.Activation)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, denseLayer{
			w:   mat.NewDense(rows, cols, flat),
			b:   mat.NewVecDense(rows, append([]float64(nil), l.Bias...)),
			act: act,
		})
		if li == 0 {
			m.in = cols
		}
		m.params += rows*cols + rows
		prev = rows
	}
	m.out = prev
	if output == OutputScalar && m.out != 1 {
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "mlp: scalar output with %d units", m.out)
	}
	return m, nil
}

func decodeMLP(data []byte) (Model, error) {
	var f MLPSpec
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode mlp: %w", err)
	}
	m, err := f.Build()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Build validates the definition and returns the model.
func (f MLPSpec) Build() (*MLPModel, error) { return NewMLPModel(f.Output, f.Layers) }

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "", ActivationIdentity:
		return nil, nil
	case ActivationReLU:
		return func(v float64) float64 { return math.Max(0, v) }, nil
	case ActivationTanh:
		return math.Tanh, nil
	case ActivationSigmoid:
		return Sigmoid, nil
	}
	return nil, errors.Newf(errors.ErrCodeArtifactShape, "mlp: unknown activation %q", name)
}

func (m *MLPModel) Kind() string       { return ModelKindMLP }
func (m *MLPModel) Output() OutputKind { return m.output }
func (m *MLPModel) InputWidth() int    { return m.in }
func (m *MLPModel) OutputWidth() int   { return m.out }
func (m *MLPModel) ParamCount() int    { return m.params }

// Predict runs the forward pass.
func (m *MLPModel) Predict(x []float64) ([]float64, error) {
	if err := checkInput(m, x); err != nil {
		return nil, err
	}
	v := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for _, l := range m.layers {
		r, _ := l.w.Dims()
		next := mat.NewVecDense(r, nil)
		next.MulVec(l.w, v)
		next.AddVec(next, l.b)
		if l.act != nil {
			for i := 0; i < r; i++ {
				next.SetVec(i, l.act(next.AtVec(i)))
			}
		}
		v = next
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out, nil
}
