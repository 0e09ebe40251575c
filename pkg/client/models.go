package client

import (
	"context"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// UnloadResult is the body returned by POST /api/v1/models/unload.
type UnloadResult struct {
	Unloaded int             `json:"unloaded"`
	Models   *app.ModelsInfo `json:"models"`
}

// CacheStats is the body returned by GET /api/v1/cache.
type CacheStats struct {
	Enabled bool                 `json:"enabled"`
	Stats   predictor.CacheStats `json:"stats"`
}

// ModelsClient covers /api/v1/models and /api/v1/cache.
type ModelsClient struct {
	client *Client
}

// List reports the server's artifact registry.
func (m *ModelsClient) List(ctx context.Context) (*app.ModelsInfo, error) {
	var out app.ModelsInfo
	if err := m.client.get(ctx, "/api/v1/models", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preload loads keys on the server, or everything when keys is empty.
func (m *ModelsClient) Preload(ctx context.Context, keys []string) (*app.ModelsInfo, error) {
	body := struct {
		Keys []string `json:"keys"`
	}{Keys: keys}
	var out app.ModelsInfo
	if err := m.client.post(ctx, "/api/v1/models/preload", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unload releases keys, or everything except keys when except is set.
func (m *ModelsClient) Unload(ctx context.Context, keys []string, except bool) (*UnloadResult, error) {
	if len(keys) == 0 {
		return nil, errors.NewInvalidInputError("at least one artifact key is required")
	}
	body := struct {
		Keys   []string `json:"keys"`
		Except bool     `json:"except"`
	}{Keys: keys, Except: except}
	var out UnloadResult
	if err := m.client.post(ctx, "/api/v1/models/unload", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheStats reports the server's result cache.
func (m *ModelsClient) CacheStats(ctx context.Context) (*CacheStats, error) {
	var out CacheStats
	if err := m.client.get(ctx, "/api/v1/cache", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache drops every cached stage result on the server.
func (m *ModelsClient) ClearCache(ctx context.Context) error {
	return m.client.delete(ctx, "/api/v1/cache")
}
