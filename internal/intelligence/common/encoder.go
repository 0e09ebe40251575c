package common

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// LabelEncoder maps class indices of a classifier to their labels.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

// NewLabelEncoder builds an encoder over classes in index order.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	e := &LabelEncoder{Classes: classes}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeLabelEncoder reads a JSON encoder artifact.
func DecodeLabelEncoder(r io.Reader) (*LabelEncoder, error) {
	var e LabelEncoder
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode encoder: %w", err)
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *LabelEncoder) init() error {
	if len(e.Classes) == 0 {
		return errors.New(errors.ErrCodeArtifactShape, "encoder has no classes")
	}
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		if _, dup := e.index[c]; dup {
			return errors.Newf(errors.ErrCodeArtifactShape, "duplicate encoder class %q", c)
		}
		e.index[c] = i
	}
	return nil
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Decode returns the label of class i.
func (e *LabelEncoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(e.Classes) {
		return "", errors.Newf(errors.ErrCodeArtifactShape, "class index %d out of range [0,%d)", i, len(e.Classes))
	}
	return e.Classes[i], nil
}

// Encode returns the class index of label.
func (e *LabelEncoder) Encode(label string) (int, error) {
	i, ok := e.index[label]
	if !ok {
		return -1, fmt.Errorf("label %q not known to encoder", label)
	}
	return i, nil
}

func (e *LabelEncoder) footprint() int64 {
	var n int64
	for _, c := range e.Classes {
		n += int64(len(c)) + 16
	}
	return n
}
