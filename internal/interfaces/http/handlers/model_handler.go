package handlers

import (
	"net/http"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
)

// PreloadRequest lists artifact keys to load. An empty list loads all.
type PreloadRequest struct {
	Keys []string `json:"keys"`
}

// UnloadRequest lists artifact keys to release, or to keep when Except is set.
type UnloadRequest struct {
	Keys   []string `json:"keys"`
	Except bool     `json:"except"`
}

// UnloadResponse reports how many artifacts were released.
type UnloadResponse struct {
	Unloaded int             `json:"unloaded"`
	Models   *app.ModelsInfo `json:"models"`
}

// CacheStatsResponse is the body of GET /api/v1/cache.
type CacheStatsResponse struct {
	Enabled bool                 `json:"enabled"`
	Stats   predictor.CacheStats `json:"stats"`
}

// ModelHandler serves artifact and cache management.
type ModelHandler struct {
	svc          app.Service
	logger       logging.Logger
	maxBodyBytes int64
}

func NewModelHandler(svc app.Service, logger logging.Logger, maxBodyBytes int64) *ModelHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ModelHandler{svc: svc, logger: logger.Named("model_handler"), maxBodyBytes: maxBodyBytes}
}

// List handles GET /api/v1/models.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Models(r.Context()))
}

// Preload handles POST /api/v1/models/preload. An empty body loads every
// artifact in the manifest.
func (h *ModelHandler) Preload(w http.ResponseWriter, r *http.Request) {
	var req PreloadRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
			writeAppError(w, err)
			return
		}
	}
	info, err := h.svc.PreloadModels(r.Context(), req.Keys)
	if err != nil {
		h.logger.Warn("preload incomplete", logging.Strings("keys", req.Keys), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Unload handles POST /api/v1/models/unload.
func (h *ModelHandler) Unload(w http.ResponseWriter, r *http.Request) {
	var req UnloadRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, err)
		return
	}
	n, err := h.svc.UnloadModels(r.Context(), &app.UnloadInput{Keys: req.Keys, Except: req.Except})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnloadResponse{Unloaded: n, Models: h.svc.Models(r.Context())})
}

// CacheStats handles GET /api/v1/cache.
func (h *ModelHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, enabled := h.svc.CacheStats(r.Context())
	writeJSON(w, http.StatusOK, CacheStatsResponse{Enabled: enabled, Stats: stats})
}

// ClearCache handles DELETE /api/v1/cache.
func (h *ModelHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCache(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
