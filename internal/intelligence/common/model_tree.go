package common

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// Gradient-boosting objectives understood by TreeEnsemble.
const (
	ObjectiveSquaredError = "reg:squarederror"
	ObjectiveSoftprob     = "multi:softprob"
	ObjectiveLogistic     = "binary:logistic"
)

// TreeNode is one node of a regression tree. A node with Leaf set is
// terminal; otherwise samples with x[Feature] < Threshold go Left. Missing
// (NaN) values follow DefaultLeft.
type TreeNode struct {
	Feature     int      `json:"feature,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`
	Left        int      `json:"left,omitempty"`
	Right       int      `json:"right,omitempty"`
	DefaultLeft bool     `json:"default_left,omitempty"`
	Leaf        *float64 `json:"leaf,omitempty"`
}

// Tree is a flat node array rooted at index 0. Class selects the output
// margin the tree contributes to in multi-class ensembles.
type Tree struct {
	Class int        `json:"class,omitempty"`
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsembleSpec is the on-disk form of a TreeEnsemble. Kind is always
// "tree_ensemble".
type TreeEnsembleSpec struct {
	Kind        string  `json:"kind"`
	Objective   string  `json:"objective"`
	NumClass    int     `json:"num_class,omitempty"`
	NumFeatures int     `json:"num_features"`
	BaseScore   float64 `json:"base_score"`
	Trees       []Tree  `json:"trees"`
}

// TreeEnsemble evaluates an xgboost-style boosted tree ensemble.
type TreeEnsemble struct {
	objective string
	classes   int
	features  int
	base      float64
	trees     []Tree
	params    int
}

// NewTreeEnsemble validates the trees and builds the ensemble.
func NewTreeEnsemble(objective string, numClass, numFeatures int, baseScore float64, trees []Tree) (*TreeEnsemble, error) {
	e := &TreeEnsemble{objective: objective, features: numFeatures, trees: trees}
	switch objective {
	case ObjectiveSquaredError:
		e.classes = 1
		e.base = baseScore
	case ObjectiveLogistic:
		e.classes = 1
		e.base = logit(baseScore)
	case ObjectiveSoftprob:
		if numClass < 2 {
			return nil, errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: %s needs num_class >= 2", objective)
		}
		e.classes = numClass
		e.base = baseScore
	default:
		return nil, errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: unsupported objective %q", objective)
	}
	if numFeatures <= 0 {
		return nil, errors.New(errors.ErrCodeArtifactShape, "tree_ensemble: num_features must be positive")
	}
	if len(trees) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactShape, "tree_ensemble: no trees")
	}
	for ti, t := range trees {
		if err := e.validateTree(ti, t); err != nil {
			return nil, err
		}
		e.params += len(t.Nodes) * 2
	}
	return e, nil
}

func (e *TreeEnsemble) validateTree(ti int, t Tree) error {
	if t.Class < 0 || t.Class >= e.classes {
		return errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: tree %d targets class %d of %d", ti, t.Class, e.classes)
	}
	if len(t.Nodes) == 0 {
		return errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: tree %d is empty", ti)
	}
	for ni, n := range t.Nodes {
		if n.Leaf != nil {
			continue
		}
		if n.Feature < 0 || n.Feature >= e.features {
			return errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: tree %d node %d splits on feature %d", ti, ni, n.Feature)
		}
		// children after parents keeps evaluation acyclic
		for _, c := range []int{n.Left, n.Right} {
			if c <= ni || c >= len(t.Nodes) {
				return errors.Newf(errors.ErrCodeArtifactShape, "tree_ensemble: tree %d node %d has child %d", ti, ni, c)
			}
		}
	}
	return nil
}

func decodeTreeEnsemble(data []byte) (Model, error) {
	var f TreeEnsembleSpec
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tree_ensemble: %w", err)
	}
	m, err := f.Build()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Build validates the definition and returns the ensemble.
func (f TreeEnsembleSpec) Build() (*TreeEnsemble, error) {
	return NewTreeEnsemble(f.Objective, f.NumClass, f.NumFeatures, f.BaseScore, f.Trees)
}

func (e *TreeEnsemble) Kind() string    { return ModelKindTreeEnsemble }
func (e *TreeEnsemble) InputWidth() int { return e.features }
func (e *TreeEnsemble) ParamCount() int { return e.params }

func (e *TreeEnsemble) Output() OutputKind {
	if e.objective == ObjectiveSquaredError {
		return OutputScalar
	}
	return OutputProbabilities
}

func (e *TreeEnsemble) OutputWidth() int { return e.classes }

// Predict sums leaf values per class margin and applies the objective's
// link function.
func (e *TreeEnsemble) Predict(x []float64) ([]float64, error) {
	if err := checkInput(e, x); err != nil {
		return nil, err
	}
	margins := make([]float64, e.classes)
	for i := range margins {
		margins[i] = e.base
	}
	for _, t := range e.trees {
		margins[t.Class] += evalTree(t.Nodes, x)
	}
	switch e.objective {
	case ObjectiveSoftprob:
		return Softmax(margins), nil
	case ObjectiveLogistic:
		return []float64{Sigmoid(margins[0])}, nil
	default:
		return margins, nil
	}
}

func evalTree(nodes []TreeNode, x []float64) float64 {
	i := 0
	for {
		n := nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.DefaultLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}
