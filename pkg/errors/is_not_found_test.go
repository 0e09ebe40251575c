package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Generic NotFound", errors.NotFound("not found"), true},
		{"Artifact NotFound", errors.ArtifactNotFound("model", "ligand"), true},
		{"Prediction NotFound", errors.New(errors.ErrCodePredictionNotFound, "no such run"), true},
		{"Internal Error", errors.Internal("internal error"), false},
		{"Wrapped NotFound", errors.Wrap(errors.NotFound("not found"), errors.CodeInternal, "wrapped"), true},
		{"Fmt wrapped NotFound", fmt.Errorf("ctx: %w", errors.NotFound("x")), true},
		{"Plain error", fmt.Errorf("plain error"), false},
		{"Nil error", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}
