package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// MemoryHistory is an in-memory PredictionRepository. List returns the
// newest recipes first.
type MemoryHistory struct {
	mu    sync.Mutex
	byID  map[string]*synthesis.Recipe
	order []string

	// SaveErr, when set, fails every Save.
	SaveErr error
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byID: map[string]*synthesis.Recipe{}}
}

func (h *MemoryHistory) Save(_ context.Context, r *synthesis.Recipe) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SaveErr != nil {
		return h.SaveErr
	}
	if _, dup := h.byID[r.ID]; dup {
		return errors.New(errors.ErrCodeConflict, "duplicate prediction")
	}
	h.byID[r.ID] = r
	h.order = append(h.order, r.ID)
	return nil
}

func (h *MemoryHistory) FindByID(_ context.Context, id string) (*synthesis.Recipe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodePredictionNotFound, "prediction not found").WithDetail("id=" + id)
	}
	return r, nil
}

func (h *MemoryHistory) List(_ context.Context, q synthesis.HistoryQuery) ([]*synthesis.Recipe, int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var match []*synthesis.Recipe
	for i := len(h.order) - 1; i >= 0; i-- {
		r := h.byID[h.order[i]]
		if q.Metal != "" && r.Metal != q.Metal {
			continue
		}
		if q.Ligand != "" && r.Ligand != q.Ligand {
			continue
		}
		match = append(match, r)
	}
	total := int64(len(match))
	if q.Offset < len(match) {
		match = match[q.Offset:]
	} else {
		match = nil
	}
	if q.Limit > 0 && q.Limit < len(match) {
		match = match[:q.Limit]
	}
	return match, total, nil
}

// Len returns the number of stored recipes.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}
