package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRepositories(t *testing.T) {
	t.Parallel()

	t.Run("PredictionRepository", func(t *testing.T) {
		repo := NewPredictionRepository(nil, nil)
		assert.NotNil(t, repo)
	})
}
