package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// PredictRequest is the body of POST /predictions and one element of a
// batch body.
type PredictRequest struct {
	domain.Measurements
	ApproximateWs bool  `json:"approx_ws,omitempty"`
	Regeneration  *bool `json:"regeneration,omitempty"`
}

func (p PredictRequest) input() *app.PredictInput {
	return &app.PredictInput{
		Measurements:  p.Measurements,
		ApproximateWs: p.ApproximateWs,
		Regeneration:  p.Regeneration,
	}
}

// BatchRequest accepts either a bare JSON array of requests or an object
// with an "items" array.
type BatchRequest struct {
	Items []PredictRequest `json:"items"`
}

func (b *BatchRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &b.Items)
	}
	type plain BatchRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = BatchRequest(p)
	return nil
}

// PredictionHandler serves /predictions.
type PredictionHandler struct {
	svc          app.Service
	logger       logging.Logger
	maxBodyBytes int64
}

// NewPredictionHandler creates a PredictionHandler. maxBodyBytes <= 0 uses
// DefaultMaxBodyBytes.
func NewPredictionHandler(svc app.Service, logger logging.Logger, maxBodyBytes int64) *PredictionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PredictionHandler{svc: svc, logger: logger.Named("prediction_handler"), maxBodyBytes: maxBodyBytes}
}

// Predict handles POST /api/v1/predictions.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, err)
		return
	}
	recipe, err := h.svc.Predict(r.Context(), req.input())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// PredictBatch handles POST /api/v1/predictions/batch. Per-item failures
// are reported inside a 200 response.
func (h *PredictionHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, err)
		return
	}
	in := &app.BatchInput{Items: make([]*app.PredictInput, len(req.Items)), Source: "http"}
	for i, item := range req.Items {
		in.Items[i] = item.input()
	}
	out, err := h.svc.PredictBatch(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/predictions/{id}.
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.svc.GetPrediction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// List handles GET /api/v1/predictions?metal=&ligand=&since=&limit=&offset=.
// since is RFC 3339.
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := domain.HistoryQuery{
		Metal:  r.URL.Query().Get("metal"),
		Ligand: r.URL.Query().Get("ligand"),
	}
	q.Limit, q.Offset = parsePagination(r)
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAppError(w, errors.NewInvalidInputError("since must be an RFC 3339 timestamp"))
			return
		}
		q.Since = since
	}

	res, err := h.svc.ListPredictions(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
