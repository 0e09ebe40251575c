package predictor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// TopAlternatives is the number of ranked classes kept per classifier stage.
const TopAlternatives = 3

// evaluate runs one stage against frame: project, scale, predict, interpret.
// The projection runs before any artifact is touched so a missing column
// fails without a model call.
func (p *Pipeline) evaluate(ctx context.Context, schema synthesis.StageSchema, frame *synthesis.FeatureFrame) (*synthesis.StagePrediction, error) {
	raw, err := frame.Project(schema.Stage, schema.Features)
	if err != nil {
		return nil, err
	}

	x, err := p.assemble(ctx, schema, raw)
	if err != nil {
		return nil, err
	}

	model, err := p.artifacts.GetModel(ctx, schema.ModelKey)
	if err != nil {
		return nil, err
	}
	out, err := model.Predict(x)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "model prediction failed").
			WithDetail(fmt.Sprintf("stage=%s", schema.Stage))
	}

	switch schema.Task {
	case synthesis.TaskBinary:
		return interpretBinary(schema.Stage, model.Output(), out)
	case synthesis.TaskClassification:
		enc, err := p.artifacts.GetEncoder(ctx, schema.EncoderKey)
		if err != nil {
			return nil, err
		}
		return interpretClassifier(schema.Stage, model.Output(), out, enc)
	default:
		return interpretRegression(schema.Stage, out)
	}
}

// assemble scales the numeric columns by name and passes the one-hot
// columns through, returning the model input in schema order.
func (p *Pipeline) assemble(ctx context.Context, schema synthesis.StageSchema, raw []float64) ([]float64, error) {
	scaler, err := p.artifacts.GetScaler(ctx, schema.ScalerKey)
	if err != nil {
		return nil, err
	}

	categorical := make(map[string]bool, len(schema.Categorical))
	for _, c := range schema.Categorical {
		categorical[c] = true
	}
	names := make([]string, 0, len(schema.Features))
	values := make([]float64, 0, len(schema.Features))
	for i, f := range schema.Features {
		if !categorical[f] {
			names = append(names, f)
			values = append(values, raw[i])
		}
	}
	scaled, err := scaler.Transform(names, values)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "scaler rejected stage input").
			WithDetail(fmt.Sprintf("stage=%s scaler=%s", schema.Stage, schema.ScalerKey))
	}

	x := make([]float64, len(schema.Features))
	j := 0
	for i, f := range schema.Features {
		if categorical[f] {
			x[i] = raw[i]
			continue
		}
		x[i] = scaled[j]
		j++
	}
	return x, nil
}

func shapeError(stage synthesis.Stage, format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeArtifactShape, "unexpected model output").
		WithDetail(fmt.Sprintf("stage=%s: ", stage) + fmt.Sprintf(format, args...))
}

// binaryProbability returns P(class 1), which is the Cu-Al-Fe group.
func binaryProbability(stage synthesis.Stage, kind common.OutputKind, out []float64) (float64, error) {
	switch {
	case kind == common.OutputLogits && len(out) == 1:
		return common.Sigmoid(out[0]), nil
	case kind == common.OutputLogits && len(out) == 2:
		return common.Softmax(out)[1], nil
	case kind == common.OutputProbabilities && len(out) == 1:
		return out[0], nil
	case kind == common.OutputProbabilities && len(out) == 2:
		return out[1], nil
	}
	return 0, shapeError(stage, "binary stage got %d %s outputs", len(out), kind)
}

func interpretBinary(stage synthesis.Stage, kind common.OutputKind, out []float64) (*synthesis.StagePrediction, error) {
	prob, err := binaryProbability(stage, kind, out)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(prob) {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, "model produced NaN").WithDetail("stage=" + stage.String())
	}
	branch := synthesis.BranchFromProbability(prob)
	conf := prob
	if branch == synthesis.BranchLaZnZr {
		conf = 1 - prob
	}
	probs := map[string]float64{
		synthesis.BranchCuAlFe.String(): prob,
		synthesis.BranchLaZnZr.String(): 1 - prob,
	}
	return &synthesis.StagePrediction{
		Stage:         stage,
		Value:         branch.String(),
		Confidence:    &conf,
		Alternatives:  rank(probs),
		Probabilities: probs,
	}, nil
}

// classProbabilities normalises a classifier output to one probability per
// encoder class.
func classProbabilities(stage synthesis.Stage, kind common.OutputKind, out []float64, classes int) ([]float64, error) {
	if classes == 2 && len(out) == 1 {
		var p1 float64
		switch kind {
		case common.OutputLogits:
			p1 = common.Sigmoid(out[0])
		case common.OutputProbabilities:
			p1 = out[0]
		default:
			return nil, shapeError(stage, "classifier has %s output", kind)
		}
		return []float64{1 - p1, p1}, nil
	}
	if len(out) != classes {
		return nil, shapeError(stage, "%d outputs for %d classes", len(out), classes)
	}
	switch kind {
	case common.OutputLogits:
		return common.Softmax(out), nil
	case common.OutputProbabilities:
		return append([]float64(nil), out...), nil
	}
	return nil, shapeError(stage, "classifier has %s output", kind)
}

func interpretClassifier(stage synthesis.Stage, kind common.OutputKind, out []float64, enc *common.LabelEncoder) (*synthesis.StagePrediction, error) {
	probs, err := classProbabilities(stage, kind, out, enc.Len())
	if err != nil {
		return nil, err
	}
	best := common.Argmax(probs)
	if best < 0 || math.IsNaN(probs[best]) {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, "model produced no usable class").WithDetail("stage=" + stage.String())
	}
	label, err := enc.Decode(best)
	if err != nil {
		return nil, err
	}

	byLabel := make(map[string]float64, len(probs))
	for i, p := range probs {
		l, _ := enc.Decode(i)
		byLabel[l] = p
	}
	conf := probs[best]
	pred := &synthesis.StagePrediction{
		Stage:         stage,
		Value:         label,
		Confidence:    &conf,
		Alternatives:  rank(byLabel),
		Probabilities: byLabel,
	}
	if v, err := strconv.ParseFloat(label, 64); err == nil {
		pred.Numeric = &v
	}
	return pred, nil
}

func interpretRegression(stage synthesis.Stage, out []float64) (*synthesis.StagePrediction, error) {
	if len(out) != 1 {
		return nil, shapeError(stage, "regression stage got %d outputs", len(out))
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, "model produced a non-finite value").WithDetail("stage=" + stage.String())
	}
	v := Round3(out[0])
	return &synthesis.StagePrediction{
		Stage:   stage,
		Value:   strconv.FormatFloat(v, 'f', -1, 64),
		Numeric: &v,
	}, nil
}

// rank returns the TopAlternatives most probable labels, highest first;
// ties break by label.
func rank(probs map[string]float64) []synthesis.Alternative {
	alts := make([]synthesis.Alternative, 0, len(probs))
	for l, p := range probs {
		alts = append(alts, synthesis.Alternative{Label: l, Probability: p})
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].Probability != alts[j].Probability {
			return alts[i].Probability > alts[j].Probability
		}
		return alts[i].Label < alts[j].Label
	})
	if len(alts) > TopAlternatives {
		alts = alts[:TopAlternatives]
	}
	return alts
}

// Round3 rounds half away from zero to three decimals.
func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }
