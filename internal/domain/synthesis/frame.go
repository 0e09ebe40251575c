package synthesis

import (
	"encoding/json"
	"math"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// FeatureFrame is a single-row, insertion-ordered mapping from column name to
// value. A nil value is a null column (for example a descriptor the provider
// could not compute). Frames only grow; setting an existing column replaces
// its value in place and keeps its position.
//
// A FeatureFrame is not safe for concurrent mutation.
type FeatureFrame struct {
	names  []string
	values map[string]*float64
}

// NewFeatureFrame returns an empty frame.
func NewFeatureFrame() *FeatureFrame {
	return &FeatureFrame{values: make(map[string]*float64)}
}

// Set stores v under name.
func (f *FeatureFrame) Set(name string, v float64) *FeatureFrame {
	val := v
	f.put(name, &val)
	return f
}

// SetNull stores an explicit null under name.
func (f *FeatureFrame) SetNull(name string) *FeatureFrame {
	f.put(name, nil)
	return f
}

// SetPtr stores v, which may be nil.
func (f *FeatureFrame) SetPtr(name string, v *float64) *FeatureFrame {
	if v == nil {
		return f.SetNull(name)
	}
	return f.Set(name, *v)
}

// Merge copies every entry of cols into the frame in sorted key order so the
// resulting column order is deterministic.
func (f *FeatureFrame) Merge(cols map[string]*float64) *FeatureFrame {
	for _, k := range sortedPtrKeys(cols) {
		f.SetPtr(k, cols[k])
	}
	return f
}

// SetOneHot sets prefix_label to 1 and every other column in siblings to 0.
// The label does not have to be one of siblings: an out-of-vocabulary label
// leaves every sibling at 0.
func (f *FeatureFrame) SetOneHot(siblings []string, prefix, label string) *FeatureFrame {
	hot := OneHotColumn(prefix, label)
	for _, col := range siblings {
		if col == hot {
			f.Set(col, 1)
		} else {
			f.Set(col, 0)
		}
	}
	return f
}

func (f *FeatureFrame) put(name string, v *float64) {
	if f.values == nil {
		f.values = make(map[string]*float64)
	}
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = v
}

// Get returns the value of name. ok is false when the column is absent or
// null.
func (f *FeatureFrame) Get(name string) (v float64, ok bool) {
	p, present := f.values[name]
	if !present || p == nil {
		return 0, false
	}
	return *p, true
}

// Has reports whether the column exists, null or not.
func (f *FeatureFrame) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// IsNull reports whether the column exists and is null.
func (f *FeatureFrame) IsNull(name string) bool {
	p, ok := f.values[name]
	return ok && p == nil
}

// Names returns the column names in insertion order.
func (f *FeatureFrame) Names() []string {
	return append([]string(nil), f.names...)
}

// Len returns the number of columns.
func (f *FeatureFrame) Len() int { return len(f.names) }

// Clone returns a deep copy.
func (f *FeatureFrame) Clone() *FeatureFrame {
	c := &FeatureFrame{
		names:  append([]string(nil), f.names...),
		values: make(map[string]*float64, len(f.values)),
	}
	for k, v := range f.values {
		if v == nil {
			c.values[k] = nil
			continue
		}
		val := *v
		c.values[k] = &val
	}
	return c
}

// Project returns the values of names in the given order. It fails with
// ErrCodeFeatureMissing for the first absent or null column and with
// ErrCodeNonFiniteFeature for NaN or ±Inf, so no model ever sees a coerced
// value.
func (f *FeatureFrame) Project(stage Stage, names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, ok := f.Get(n)
		if !ok {
			return nil, errors.FeatureMissing(stage.String(), n)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New(errors.ErrCodeNonFiniteFeature, "feature value is not finite").
				WithDetail(stage.String() + ": " + n)
		}
		out[i] = v
	}
	return out, nil
}

// Map returns a copy of the frame as a plain map; nulls are omitted.
func (f *FeatureFrame) Map() map[string]float64 {
	out := make(map[string]float64, len(f.names))
	for _, n := range f.names {
		if v, ok := f.Get(n); ok {
			out[n] = v
		}
	}
	return out
}

// Column is one entry of an ordered frame export.
type Column struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

// Columns exports the frame in insertion order.
func (f *FeatureFrame) Columns() []Column {
	out := make([]Column, 0, len(f.names))
	for _, n := range f.names {
		var v *float64
		if p := f.values[n]; p != nil {
			val := *p
			v = &val
		}
		out = append(out, Column{Name: n, Value: v})
	}
	return out
}

// MarshalJSON encodes the frame as an ordered array of columns. Non-finite
// values are encoded as null since JSON has no representation for them.
func (f *FeatureFrame) MarshalJSON() ([]byte, error) {
	cols := f.Columns()
	for i := range cols {
		if cols[i].Value != nil && (math.IsNaN(*cols[i].Value) || math.IsInf(*cols[i].Value, 0)) {
			cols[i].Value = nil
		}
	}
	return json.Marshal(cols)
}

// UnmarshalJSON decodes the ordered array produced by MarshalJSON.
func (f *FeatureFrame) UnmarshalJSON(data []byte) error {
	var cols []Column
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	*f = FeatureFrame{values: make(map[string]*float64, len(cols))}
	for _, c := range cols {
		f.SetPtr(c.Name, c.Value)
	}
	return nil
}

func sortedPtrKeys(m map[string]*float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}
